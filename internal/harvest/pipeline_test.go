package harvest_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	ptestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/meli-harvester/internal/harvest"
	"github.com/donaldgifford/meli-harvester/internal/meli"
	"github.com/donaldgifford/meli-harvester/internal/metrics"
	"github.com/donaldgifford/meli-harvester/internal/sink"
	domain "github.com/donaldgifford/meli-harvester/pkg/types"
)

const accountID = "987654"

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func price(v float64) *float64 { return &v }

type fakeCollector struct {
	ids []string
	err error
}

func (c *fakeCollector) CollectIDs(_ context.Context, _ string) (*meli.CollectResult, error) {
	if c.err != nil {
		return nil, c.err
	}
	return &meli.CollectResult{IDs: c.ids, Pages: 1, StoppedAt: meli.StopShortPage}, nil
}

// mapResolver resolves ids found in records, fails ids found in errs, and
// returns nil for the rest.
type mapResolver struct {
	mu      sync.Mutex
	records map[string]*domain.ProductRecord
	errs    map[string]error
	calls   []string
	hook    func(id string)
}

func (r *mapResolver) Resolve(_ context.Context, id string) (*domain.ProductRecord, error) {
	r.mu.Lock()
	r.calls = append(r.calls, id)
	hook := r.hook
	r.mu.Unlock()
	if hook != nil {
		hook(id)
	}
	if err := r.errs[id]; err != nil {
		return nil, err
	}
	return r.records[id], nil
}

func (r *mapResolver) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

type memorySink struct {
	mu    sync.Mutex
	saved []*domain.ExtractionResult
	err   error
}

func (s *memorySink) Save(_ context.Context, r *domain.ExtractionResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, r)
	return nil
}

func (s *memorySink) Saved() []*domain.ExtractionResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saved
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) SendRunReport(ctx context.Context, r *domain.RunReport) error {
	return m.Called(ctx, r).Error(0)
}

func (m *mockNotifier) SendAuthExpired(ctx context.Context, accountID string, cause error) error {
	return m.Called(ctx, accountID, cause).Error(0)
}

type memoryRecorder struct {
	mu      sync.Mutex
	reports []*domain.RunReport
}

func (r *memoryRecorder) RecordRun(_ context.Context, report *domain.RunReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, report)
	return nil
}

func records(ids ...string) map[string]*domain.ProductRecord {
	m := make(map[string]*domain.ProductRecord, len(ids))
	for i, id := range ids {
		m[id] = &domain.ProductRecord{
			ID:           id,
			Title:        "Item " + id,
			Price:        price(float64(100 * (i + 1))),
			Status:       "active",
			Condition:    "new",
			AccessMethod: domain.AccessAuthenticated,
		}
	}
	return m
}

func newPipeline(
	c harvest.Collector,
	r harvest.Resolver,
	opts ...harvest.PipelineOption,
) *harvest.Pipeline {
	base := []harvest.PipelineOption{
		harvest.WithItemDelay(0),
		harvest.WithLogger(quietLogger()),
	}
	return harvest.NewPipeline(accountID, c, r, append(base, opts...)...)
}

func TestPipeline_RunOutcomes(t *testing.T) {
	t.Parallel()

	expired := &meli.AuthError{Op: "refreshing token", Expired: true, Err: meli.ErrAuthExpired}

	tests := []struct {
		name          string
		collector     *fakeCollector
		records       map[string]*domain.ProductRecord
		sinkErr       error
		wantStatus    domain.OutcomeStatus
		wantReason    domain.FailureReason
		wantRequested int
		wantResolved  int
		wantSkipped   []string
		wantSaved     int
		wantErr       bool
		wantAuthAlert bool
	}{
		{
			name:          "every item resolves",
			collector:     &fakeCollector{ids: []string{"MLA1", "MLA2", "MLA3"}},
			records:       records("MLA1", "MLA2", "MLA3"),
			wantStatus:    domain.OutcomeSuccess,
			wantRequested: 3,
			wantResolved:  3,
			wantSaved:     1,
		},
		{
			name:          "unresolved items are skipped",
			collector:     &fakeCollector{ids: []string{"MLA1", "MLA2", "MLA3", "MLA4"}},
			records:       records("MLA1", "MLA3"),
			wantStatus:    domain.OutcomePartial,
			wantRequested: 4,
			wantResolved:  2,
			wantSkipped:   []string{"MLA2", "MLA4"},
			wantSaved:     1,
		},
		{
			name:          "nothing resolves",
			collector:     &fakeCollector{ids: []string{"MLA1", "MLA2"}},
			records:       records(),
			wantStatus:    domain.OutcomePartial,
			wantRequested: 2,
			wantResolved:  0,
			wantSkipped:   []string{"MLA1", "MLA2"},
			wantSaved:     1,
		},
		{
			name:       "seller without listings",
			collector:  &fakeCollector{},
			records:    records(),
			wantStatus: domain.OutcomeSuccess,
			wantSaved:  1,
		},
		{
			name:          "expired refresh token fails the run",
			collector:     &fakeCollector{err: expired},
			records:       records(),
			wantStatus:    domain.OutcomeFailed,
			wantReason:    domain.ReasonAuthExpired,
			wantErr:       true,
			wantAuthAlert: true,
		},
		{
			name:       "listing failure fails the run",
			collector:  &fakeCollector{err: &meli.APIError{StatusCode: 500, Path: "/users/987654/items/search"}},
			records:    records(),
			wantStatus: domain.OutcomeFailed,
			wantReason: domain.ReasonNetwork,
			wantErr:    true,
		},
		{
			name:          "sink failure fails the run",
			collector:     &fakeCollector{ids: []string{"MLA1"}},
			records:       records("MLA1"),
			sinkErr:       errors.New("disk full"),
			wantStatus:    domain.OutcomeFailed,
			wantReason:    domain.ReasonSink,
			wantRequested: 1,
			wantResolved:  1,
			wantErr:       true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := &memorySink{err: tt.sinkErr}
			rec := &memoryRecorder{}
			n := &mockNotifier{}
			n.On("SendRunReport", mock.Anything, mock.Anything).Return(nil).Once()
			if tt.wantAuthAlert {
				n.On("SendAuthExpired", mock.Anything, accountID, mock.Anything).Return(nil).Once()
			}

			p := newPipeline(tt.collector, &mapResolver{records: tt.records},
				harvest.WithSink(s),
				harvest.WithNotifier(n),
				harvest.WithRunRecorder(rec),
			)

			report, err := p.Run(context.Background())
			require.NotNil(t, report)
			if tt.wantErr {
				require.Error(t, err)
				assert.NotEmpty(t, report.Error)
				assert.Nil(t, report.Result)
			} else {
				require.NoError(t, err)
				require.NotNil(t, report.Result)
				assert.Len(t, report.Result.Products, tt.wantResolved)
			}

			assert.Equal(t, tt.wantStatus, report.Status)
			assert.Equal(t, tt.wantReason, report.Reason)
			assert.Equal(t, tt.wantRequested, report.Requested)
			assert.Equal(t, tt.wantResolved, report.Resolved)
			assert.Equal(t, tt.wantSkipped, report.Skipped)
			assert.Equal(t, tt.wantRequested-tt.wantResolved, report.SkippedCount())
			assert.Len(t, s.Saved(), tt.wantSaved)
			assert.NotEmpty(t, report.RunID)
			assert.False(t, report.FinishedAt.Before(report.StartedAt))

			assert.Same(t, report, p.LastReport())
			assert.Len(t, rec.reports, 1)
			n.AssertExpectations(t)
		})
	}
}

func TestPipeline_PreservesDiscoveryOrder(t *testing.T) {
	t.Parallel()

	ids := []string{"MLA9", "MLA3", "MLA7", "MLA1"}
	s := &memorySink{}
	p := newPipeline(&fakeCollector{ids: ids}, &mapResolver{records: records(ids...)}, harvest.WithSink(s))

	report, err := p.Run(context.Background())
	require.NoError(t, err)

	var got []string
	for _, rec := range report.Result.Products {
		got = append(got, rec.ID)
	}
	assert.Equal(t, ids, got)
	require.Len(t, s.Saved(), 1)
	assert.Same(t, report.Result, s.Saved()[0])
}

func TestPipeline_SummaryOverResolvedSet(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 3, 0, 0, 0, time.UTC)
	recs := map[string]*domain.ProductRecord{
		"MLA1": {ID: "MLA1", Price: price(100), Status: "active", Condition: "new"},
		"MLA2": {ID: "MLA2", Price: price(300), Status: "paused", Condition: "used"},
		"MLA3": {ID: "MLA3", Price: price(200), Status: "active", Condition: "new"},
	}
	p := newPipeline(
		&fakeCollector{ids: []string{"MLA1", "MLA2", "MLA3", "MLA4"}},
		&mapResolver{records: recs},
		harvest.WithNowFunc(func() time.Time { return now }),
	)

	report, err := p.Run(context.Background())
	require.NoError(t, err)

	s := report.Result.Summary
	assert.Equal(t, now, s.Timestamp)
	assert.Equal(t, accountID, s.AccountID)
	assert.Equal(t, 3, s.TotalCount)
	assert.Equal(t, map[string]int{"active": 2, "paused": 1}, s.CountsByStatus)
	assert.Equal(t, domain.PriceRange{Min: 100, Max: 300, Average: 200}, s.PriceRange)
}

func TestPipeline_CancelStopsBeforeNextItem(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	resolver := &mapResolver{
		records: records("MLA1", "MLA2", "MLA3"),
		hook: func(id string) {
			if id == "MLA1" {
				cancel()
			}
		},
	}
	s := &memorySink{}
	n := &mockNotifier{}

	p := newPipeline(&fakeCollector{ids: []string{"MLA1", "MLA2", "MLA3"}}, resolver,
		harvest.WithSink(s),
		harvest.WithNotifier(n),
	)

	report, err := p.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, domain.OutcomeFailed, report.Status)
	assert.Equal(t, domain.ReasonCanceled, report.Reason)
	assert.Equal(t, []string{"MLA1"}, resolver.Calls())
	assert.Empty(t, s.Saved(), "canceled run persists nothing")
	n.AssertNotCalled(t, "SendRunReport", mock.Anything, mock.Anything)
}

func TestPipeline_CancelAfterLastItemPersistsNothing(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	resolver := &mapResolver{
		records: records("MLA1"),
		hook:    func(string) { cancel() },
	}
	s := &memorySink{}

	p := newPipeline(&fakeCollector{ids: []string{"MLA1"}}, resolver, harvest.WithSink(s))

	report, err := p.Run(ctx)
	require.Error(t, err)
	assert.Equal(t, domain.ReasonCanceled, report.Reason)
	assert.Empty(t, s.Saved())
}

func TestPipeline_RunInProgress(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	release := make(chan struct{})
	resolver := &mapResolver{
		records: records("MLA1"),
		hook: func(string) {
			close(started)
			<-release
		},
	}
	p := newPipeline(&fakeCollector{ids: []string{"MLA1"}}, resolver)

	done := make(chan error, 1)
	go func() {
		_, err := p.Run(context.Background())
		done <- err
	}()

	<-started
	assert.True(t, p.Running())

	report, err := p.Run(context.Background())
	assert.Nil(t, report)
	require.ErrorIs(t, err, harvest.ErrRunInProgress)

	close(release)
	require.NoError(t, <-done)
	assert.False(t, p.Running())
	assert.Equal(t, domain.OutcomeSuccess, p.LastReport().Status)
}

func TestPipeline_NotificationFailureDoesNotFailRun(t *testing.T) {
	t.Parallel()

	n := &mockNotifier{}
	n.On("SendRunReport", mock.Anything, mock.Anything).Return(errors.New("discord returned 500"))

	before := ptestutil.ToFloat64(metrics.NotificationFailuresTotal)

	p := newPipeline(&fakeCollector{ids: []string{"MLA1"}}, &mapResolver{records: records("MLA1")},
		harvest.WithNotifier(n),
	)
	report, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeSuccess, report.Status)

	after := ptestutil.ToFloat64(metrics.NotificationFailuresTotal)
	assert.GreaterOrEqual(t, after-before, 1.0)
}

func TestPipeline_LastReportNilBeforeFirstRun(t *testing.T) {
	t.Parallel()

	p := newPipeline(&fakeCollector{}, &mapResolver{})
	assert.Nil(t, p.LastReport())
	assert.False(t, p.Running())
}

func TestPipeline_LatestKeepsLastGoodResult(t *testing.T) {
	t.Parallel()

	collector := &fakeCollector{ids: []string{"MLA1"}}
	p := newPipeline(collector, &mapResolver{records: records("MLA1")})

	_, err := p.Latest(context.Background())
	require.ErrorIs(t, err, sink.ErrNoResult)

	_, err = p.Run(context.Background())
	require.NoError(t, err)

	collector.err = errors.New("connection reset")
	report, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, domain.OutcomeFailed, report.Status)

	result, err := p.Latest(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Products, 1)
	assert.Equal(t, "MLA1", result.Products[0].ID)
}

func TestPipeline_CredentialLossDuringItemsFailsRun(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantReason domain.FailureReason
		wantAlert  bool
	}{
		{
			name:       "refresh token revoked",
			err:        &meli.AuthError{Op: "refreshing token", Expired: true, Err: meli.ErrAuthExpired},
			wantReason: domain.ReasonAuthExpired,
			wantAlert:  true,
		},
		{
			name:       "token endpoint unreachable",
			err:        &meli.AuthError{Op: "executing token request", Err: errors.New("connection refused")},
			wantReason: domain.ReasonAuth,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			resolver := &mapResolver{
				records: records("MLA1", "MLA3"),
				errs:    map[string]error{"MLA2": tt.err},
			}
			s := &memorySink{}
			n := &mockNotifier{}
			n.On("SendRunReport", mock.Anything, mock.Anything).Return(nil)
			if tt.wantAlert {
				n.On("SendAuthExpired", mock.Anything, accountID, mock.Anything).Return(nil)
			}

			p := newPipeline(&fakeCollector{ids: []string{"MLA1", "MLA2", "MLA3"}}, resolver,
				harvest.WithSink(s),
				harvest.WithNotifier(n),
			)

			report, err := p.Run(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, domain.OutcomeFailed, report.Status)
			assert.Equal(t, tt.wantReason, report.Reason)
			assert.Equal(t, []string{"MLA1", "MLA2"}, resolver.Calls(), "no item after the credential is lost")
			assert.Empty(t, report.Skipped)
			assert.Nil(t, report.Result)
			assert.Empty(t, s.Saved())

			n.AssertExpectations(t)
			if !tt.wantAlert {
				n.AssertNotCalled(t, "SendAuthExpired", mock.Anything, mock.Anything, mock.Anything)
			}
		})
	}
}

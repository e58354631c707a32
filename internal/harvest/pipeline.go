// Package harvest runs the catalog extraction: collect every listed item id,
// resolve each one, summarize the resolved set, and hand the result to the
// configured sinks.
package harvest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/donaldgifford/meli-harvester/internal/meli"
	"github.com/donaldgifford/meli-harvester/internal/metrics"
	"github.com/donaldgifford/meli-harvester/internal/notify"
	"github.com/donaldgifford/meli-harvester/internal/sink"
	domain "github.com/donaldgifford/meli-harvester/pkg/types"
)

const (
	tracerName = "github.com/donaldgifford/meli-harvester/internal/harvest"

	// reportTimeout bounds the post-run bookkeeping, which runs even when
	// the run context was canceled.
	reportTimeout = 10 * time.Second
)

// ErrRunInProgress is returned when Run is called while a run is active.
var ErrRunInProgress = errors.New("extraction already in progress")

// Collector discovers the item ids of one seller account.
type Collector interface {
	CollectIDs(ctx context.Context, accountID string) (*meli.CollectResult, error)
}

// Resolver turns one item id into a product record, or nil when the item
// could not be read. An error means no further item can be read either and
// fails the run.
type Resolver interface {
	Resolve(ctx context.Context, id string) (*domain.ProductRecord, error)
}

// RunRecorder keeps a history of run reports.
type RunRecorder interface {
	RecordRun(ctx context.Context, r *domain.RunReport) error
}

// Pipeline orchestrates one extraction run at a time.
type Pipeline struct {
	accountID string
	collector Collector
	resolver  Resolver
	sink      sink.ResultSink
	notifier  notify.Notifier
	recorder  RunRecorder
	itemDelay time.Duration
	nowFunc   func() time.Time
	log       *slog.Logger
	tracer    trace.Tracer

	running atomic.Bool

	mu         sync.RWMutex
	last       *domain.RunReport
	lastResult *domain.ExtractionResult
}

// PipelineOption configures the Pipeline.
type PipelineOption func(*Pipeline)

// WithSink sets where finished results are written.
func WithSink(s sink.ResultSink) PipelineOption {
	return func(p *Pipeline) {
		p.sink = s
	}
}

// WithNotifier sets the notifier for run reports and auth alerts.
func WithNotifier(n notify.Notifier) PipelineOption {
	return func(p *Pipeline) {
		p.notifier = n
	}
}

// WithRunRecorder sets where run reports are recorded.
func WithRunRecorder(r RunRecorder) PipelineOption {
	return func(p *Pipeline) {
		p.recorder = r
	}
}

// WithItemDelay sets the pause between item requests.
func WithItemDelay(d time.Duration) PipelineOption {
	return func(p *Pipeline) {
		p.itemDelay = d
	}
}

// WithNowFunc overrides the clock.
func WithNowFunc(f func() time.Time) PipelineOption {
	return func(p *Pipeline) {
		p.nowFunc = f
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) PipelineOption {
	return func(p *Pipeline) {
		p.log = l
	}
}

// NewPipeline creates a Pipeline for one seller account.
func NewPipeline(
	accountID string,
	collector Collector,
	resolver Resolver,
	opts ...PipelineOption,
) *Pipeline {
	p := &Pipeline{
		accountID: accountID,
		collector: collector,
		resolver:  resolver,
		sink:      sink.NewMulti(),
		notifier:  notify.NewNoOpNotifier(slog.Default()),
		itemDelay: meli.DefaultItemDelay,
		nowFunc:   time.Now,
		log:       slog.Default(),
		tracer:    otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Running reports whether a run is active.
func (p *Pipeline) Running() bool {
	return p.running.Load()
}

// LastReport returns the report of the most recent finished run, or nil.
func (p *Pipeline) LastReport() *domain.RunReport {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.last
}

// Latest returns the result of the most recent successful or partial run
// in this process, so the pipeline can serve reads when no sink is
// readable.
func (p *Pipeline) Latest(context.Context) (*domain.ExtractionResult, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.lastResult == nil {
		return nil, sink.ErrNoResult
	}
	return p.lastResult, nil
}

// Run executes one extraction. It always returns a report once the run
// started; the error is non-nil only for a failed run. Individual items
// that cannot be read are skipped and never fail the run; losing the
// credential does.
func (p *Pipeline) Run(ctx context.Context) (*domain.RunReport, error) {
	if !p.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer p.running.Store(false)

	report := &domain.RunReport{
		RunID:     uuid.NewString(),
		StartedAt: p.nowFunc(),
	}
	log := p.log.With("run_id", report.RunID, "account_id", p.accountID)

	ctx, span := p.tracer.Start(ctx, "harvest.run", trace.WithAttributes(
		attribute.String("run.id", report.RunID),
		attribute.String("account.id", p.accountID),
	))
	defer span.End()

	log.Info("extraction starting")
	err := p.execute(ctx, report, log)
	report.FinishedAt = p.nowFunc()

	if err != nil {
		report.Status = domain.OutcomeFailed
		report.Reason = Classify(err)
		report.Error = err.Error()
		report.Result = nil
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error("extraction failed", "reason", report.Reason, "error", err)
	} else {
		report.Status = domain.OutcomeSuccess
		if report.Resolved < report.Requested {
			report.Status = domain.OutcomePartial
		}
		log.Info("extraction finished",
			"status", report.Status,
			"requested", report.Requested,
			"resolved", report.Resolved,
			"skipped", report.SkippedCount(),
		)
	}
	span.SetAttributes(
		attribute.String("run.status", string(report.Status)),
		attribute.Int("run.requested", report.Requested),
		attribute.Int("run.resolved", report.Resolved),
	)

	p.finish(ctx, report, err, log)
	return report, err
}

func (p *Pipeline) execute(ctx context.Context, report *domain.RunReport, log *slog.Logger) error {
	collected, err := p.collector.CollectIDs(ctx, p.accountID)
	if err != nil {
		return fmt.Errorf("collecting item ids: %w", err)
	}
	report.Requested = len(collected.IDs)
	report.StoppedAt = string(collected.StoppedAt)
	log.Info("item ids collected",
		"count", len(collected.IDs),
		"pages", collected.Pages,
		"stopped_at", collected.StoppedAt,
	)

	products := make([]domain.ProductRecord, 0, len(collected.IDs))
	for i, id := range collected.IDs {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("resolving item %d of %d: %w", i+1, len(collected.IDs), err)
		}
		if i > 0 {
			if err := meli.Sleep(ctx, p.itemDelay); err != nil {
				return fmt.Errorf("resolving item %d of %d: %w", i+1, len(collected.IDs), err)
			}
		}

		rec, err := p.resolver.Resolve(ctx, id)
		if err != nil {
			return fmt.Errorf("resolving item %s (%d of %d): %w", id, i+1, len(collected.IDs), err)
		}
		if rec == nil {
			report.Skipped = append(report.Skipped, id)
			metrics.ItemsSkippedTotal.Inc()
			log.Warn("item dropped from result", "item_id", id)
			continue
		}
		products = append(products, *rec)
		metrics.ItemsResolvedTotal.Inc()
		log.Debug("item resolved",
			"item_id", id,
			"access", rec.AccessMethod,
			"progress", fmt.Sprintf("%d/%d", i+1, len(collected.IDs)),
		)
	}
	report.Resolved = len(products)

	result := &domain.ExtractionResult{
		Summary:  Summarize(products, p.accountID, p.nowFunc()),
		Products: products,
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("saving result: %w", err)
	}
	if err := p.sink.Save(ctx, result); err != nil {
		return fmt.Errorf("%w: %w", ErrSink, err)
	}
	report.Result = result

	return nil
}

// finish records metrics, stores the report, and sends notifications. It
// uses a context detached from the run so a canceled run is still reported.
func (p *Pipeline) finish(ctx context.Context, report *domain.RunReport, runErr error, log *slog.Logger) {
	metrics.RunsTotal.WithLabelValues(string(report.Status), string(report.Reason)).Inc()
	metrics.RunDuration.Observe(report.FinishedAt.Sub(report.StartedAt).Seconds())
	if report.Result != nil {
		metrics.LastRunProducts.Set(float64(report.Resolved))
		metrics.LastSuccessTimestamp.Set(float64(report.FinishedAt.Unix()))
	}

	p.mu.Lock()
	p.last = report
	if report.Result != nil {
		p.lastResult = report.Result
	}
	p.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reportTimeout)
	defer cancel()

	if p.recorder != nil {
		if err := p.recorder.RecordRun(ctx, report); err != nil {
			log.Warn("recording run report failed", "error", err)
		}
	}

	if report.Reason == domain.ReasonAuthExpired {
		if err := p.notifier.SendAuthExpired(ctx, p.accountID, runErr); err != nil {
			metrics.NotificationFailuresTotal.Inc()
			log.Warn("sending auth expired alert failed", "error", err)
		}
	}

	if report.Reason == domain.ReasonCanceled {
		return
	}
	if err := p.notifier.SendRunReport(ctx, report); err != nil {
		metrics.NotificationFailuresTotal.Inc()
		log.Warn("sending run report failed", "error", err)
	}
}

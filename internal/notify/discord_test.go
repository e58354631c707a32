package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/meli-harvester/internal/metrics"
	domain "github.com/donaldgifford/meli-harvester/pkg/types"
)

func testReport(status domain.OutcomeStatus) *domain.RunReport {
	start := time.Date(2026, 3, 1, 3, 0, 0, 0, time.UTC)
	r := &domain.RunReport{
		RunID:      "run-1",
		StartedAt:  start,
		FinishedAt: start.Add(95 * time.Second),
		Status:     status,
		Requested:  3,
		Resolved:   3,
	}
	switch status {
	case domain.OutcomePartial:
		r.Resolved = 2
		r.Skipped = []string{"MLA3"}
	case domain.OutcomeFailed:
		r.Resolved = 0
		r.Reason = domain.ReasonNetwork
		r.Error = "fetching listing page at offset 0: timeout"
	}
	if status != domain.OutcomeFailed {
		r.Result = &domain.ExtractionResult{Summary: domain.ExtractionSummary{
			PriceRange: domain.PriceRange{Min: 100, Max: 300, Average: 200},
		}}
	}
	return r
}

func fieldMap(e discordEmbed) map[string]string {
	m := make(map[string]string)
	for _, f := range e.Fields {
		m[f.Name] = f.Value
	}
	return m
}

func TestDiscordNotifier_SendRunReport(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		report     *domain.RunReport
		statusCode int
		wantErr    bool
		errMsg     string
		wantColor  int
		wantFields map[string]string
	}{
		{
			name:       "success report is green",
			report:     testReport(domain.OutcomeSuccess),
			statusCode: http.StatusNoContent,
			wantColor:  colorGreen,
			wantFields: map[string]string{
				"Requested":   "3",
				"Resolved":    "3",
				"Skipped":     "0",
				"Duration":    "1m35s",
				"Price range": "100.00 - 300.00 (avg 200.00)",
			},
		},
		{
			name:       "partial report lists skipped ids",
			report:     testReport(domain.OutcomePartial),
			statusCode: http.StatusNoContent,
			wantColor:  colorYellow,
			wantFields: map[string]string{
				"Skipped":       "1",
				"Skipped items": "MLA3",
			},
		},
		{
			name:       "failed report carries reason",
			report:     testReport(domain.OutcomeFailed),
			statusCode: http.StatusNoContent,
			wantColor:  colorRed,
			wantFields: map[string]string{
				"Reason": "network",
			},
		},
		{
			name:       "discord returns 429 rate limited",
			report:     testReport(domain.OutcomeSuccess),
			statusCode: http.StatusTooManyRequests,
			wantErr:    true,
			errMsg:     "rate limited",
		},
		{
			name:       "discord returns 400 error",
			report:     testReport(domain.OutcomeSuccess),
			statusCode: http.StatusBadRequest,
			wantErr:    true,
			errMsg:     "discord returned 400",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var received discordWebhookPayload

			srv := httptest.NewServer(
				http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
					assert.Equal(t, http.MethodPost, r.Method)

					err := json.NewDecoder(r.Body).Decode(&received)
					assert.NoError(t, err)

					w.WriteHeader(tt.statusCode)
				}),
			)
			defer srv.Close()

			d := NewDiscordNotifier(srv.URL)
			err := d.SendRunReport(context.Background(), tt.report)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}

			require.NoError(t, err)
			require.Len(t, received.Embeds, 1)

			embed := received.Embeds[0]
			assert.Equal(t, tt.wantColor, embed.Color)
			assert.Contains(t, embed.Title, string(tt.report.Status))

			fields := fieldMap(embed)
			for k, v := range tt.wantFields {
				assert.Equal(t, v, fields[k], "field %s", k)
			}
		})
	}
}

func TestBuildReportEmbed_TruncatesSkippedList(t *testing.T) {
	t.Parallel()

	r := testReport(domain.OutcomePartial)
	r.Skipped = nil
	for i := range 20 {
		r.Skipped = append(r.Skipped, fmt.Sprintf("MLA%d", i))
	}
	r.Requested = 40
	r.Resolved = 20

	fields := fieldMap(buildReportEmbed(r))
	assert.Contains(t, fields["Skipped items"], "MLA14")
	assert.NotContains(t, fields["Skipped items"], "MLA15")
	assert.Contains(t, fields["Skipped items"], "... and 5 more")
}

func TestDiscordNotifier_SendAuthExpired(t *testing.T) {
	t.Parallel()

	var received discordWebhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := json.NewDecoder(r.Body).Decode(&received)
		assert.NoError(t, err)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := NewDiscordNotifier(srv.URL)
	err := d.SendAuthExpired(context.Background(), "987654", errors.New("invalid_grant"))
	require.NoError(t, err)

	require.Len(t, received.Embeds, 1)
	embed := received.Embeds[0]
	assert.Equal(t, colorRed, embed.Color)
	assert.Contains(t, embed.Title, "authorization expired")
	fields := fieldMap(embed)
	assert.Equal(t, "987654", fields["Account"])
	assert.Equal(t, "invalid_grant", fields["Error"])
}

func TestDiscordNotifier_NetworkError(t *testing.T) {
	t.Parallel()

	d := NewDiscordNotifier("http://127.0.0.1:1") // nothing listening
	err := d.SendRunReport(context.Background(), testReport(domain.OutcomeSuccess))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sending discord webhook")
}

func TestDiscordNotifier_InvalidWebhookURL(t *testing.T) {
	t.Parallel()

	d := NewDiscordNotifier("://not-a-valid-url")
	err := d.SendRunReport(context.Background(), testReport(domain.OutcomeSuccess))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "creating discord request")
}

func TestWithHTTPClient(t *testing.T) {
	t.Parallel()

	custom := &http.Client{}
	d := NewDiscordNotifier("https://example.com", WithHTTPClient(custom))
	assert.Same(t, custom, d.client)
}

func getNotificationHistogramSampleCount() uint64 {
	ch := make(chan prometheus.Metric, 1)
	metrics.NotificationDuration.Collect(ch)
	m := <-ch
	pb := &dto.Metric{}
	_ = m.Write(pb)
	return pb.GetHistogram().GetSampleCount()
}

func TestSendRunReport_ObservesNotificationDuration(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	before := getNotificationHistogramSampleCount()

	d := NewDiscordNotifier(srv.URL)
	require.NoError(t, d.SendRunReport(context.Background(), testReport(domain.OutcomeSuccess)))

	after := getNotificationHistogramSampleCount()
	assert.Greater(t, after, before, "NotificationDuration histogram sample count should increase")
}

// compile-time interface check.
var _ Notifier = (*DiscordNotifier)(nil)

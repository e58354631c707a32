package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRegistered(t *testing.T) {
	t.Parallel()

	// Verify all metrics are non-nil (registered via promauto on package init).
	assert.NotNil(t, HTTPRequestDuration)
	assert.NotNil(t, HTTPRequestsTotal)
	assert.NotNil(t, HealthzUp)
	assert.NotNil(t, ReadyzUp)
	assert.NotNil(t, TokenRefreshesTotal)
	assert.NotNil(t, TokenExpiry)
	assert.NotNil(t, APICallsTotal)
	assert.NotNil(t, AuthRetriesTotal)
	assert.NotNil(t, PublicFallbacksTotal)
	assert.NotNil(t, DailyUsage)
	assert.NotNil(t, DailyLimitHits)
	assert.NotNil(t, RunsTotal)
	assert.NotNil(t, RunDuration)
	assert.NotNil(t, ItemsResolvedTotal)
	assert.NotNil(t, ItemsSkippedTotal)
	assert.NotNil(t, LastRunProducts)
	assert.NotNil(t, LastSuccessTimestamp)
	assert.NotNil(t, SinkFailuresTotal)
	assert.NotNil(t, NotificationFailuresTotal)
	assert.NotNil(t, NotificationDuration)
}

func TestMetricsNamespace(t *testing.T) {
	t.Parallel()

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	var found bool
	for _, mf := range families {
		if mf.GetName() == "mh_last_run_products" {
			found = true
			assert.Equal(t, dto.MetricType_GAUGE, mf.GetType())
		}
	}
	assert.True(t, found, "expected mh_last_run_products to be registered")
}

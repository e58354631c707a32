package main

import "errors"

// KnownMetrics is the set of metric names exported by meli-harvester plus
// recording rule names referenced in dashboards and alerts.
var KnownMetrics = map[string]bool{
	// HTTP metrics.
	"mh_http_request_duration_seconds": true,
	"mh_http_requests_total":           true,

	// Health metrics.
	"mh_healthz_up": true,
	"mh_readyz_up":  true,

	// Token metrics.
	"mh_token_refreshes_total":          true,
	"mh_token_expiry_timestamp_seconds": true,

	// Marketplace API metrics.
	"mh_api_calls_total":            true,
	"mh_auth_retries_total":         true,
	"mh_public_fallbacks_total":     true,
	"mh_api_daily_usage":            true,
	"mh_api_daily_limit_hits_total": true,

	// Harvest metrics.
	"mh_runs_total":                     true,
	"mh_run_duration_seconds":           true,
	"mh_items_resolved_total":           true,
	"mh_items_skipped_total":            true,
	"mh_last_run_products":              true,
	"mh_last_success_timestamp_seconds": true,
	"mh_sink_failures_total":            true,

	// Notification metrics.
	"mh_notification_failures_total":   true,
	"mh_notification_duration_seconds": true,

	// Recording rules.
	"mh:http_requests:rate5m":         true,
	"mh:http_errors:rate5m":           true,
	"mh:api_calls:rate5m":             true,
	"mh:api_errors:rate5m":            true,
	"mh:items_resolved:rate1h":        true,
	"mh:items_skipped:rate1h":         true,
	"mh:notification_duration:p95_5m": true,

	// Standard Prometheus metrics referenced in dashboards.
	"up":                         true,
	"process_start_time_seconds": true,
}

// Config controls which artifacts the generator produces and where they go.
type Config struct {
	OutputDir        string
	DashboardEnabled bool
	RulesEnabled     bool
}

// DefaultConfig returns a Config that generates all artifacts into ../../deploy
// (relative to tools/dashgen/).
func DefaultConfig() Config {
	return Config{
		OutputDir:        "../../deploy",
		DashboardEnabled: true,
		RulesEnabled:     true,
	}
}

// Validate checks that the config is usable.
func (c Config) Validate() error {
	if c.OutputDir == "" {
		return errors.New("output directory must be set")
	}
	if !c.DashboardEnabled && !c.RulesEnabled {
		return errors.New("at least one of dashboard or rules must be enabled")
	}
	return nil
}

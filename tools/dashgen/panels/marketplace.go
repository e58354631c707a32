package panels

import (
	"github.com/grafana/grafana-foundation-sdk/go/common"
	"github.com/grafana/grafana-foundation-sdk/go/stat"
	"github.com/grafana/grafana-foundation-sdk/go/timeseries"
)

// APICallsByStatus returns a timeseries panel showing marketplace API calls
// per second split by response status.
func APICallsByStatus() *timeseries.PanelBuilder {
	return timeseries.NewPanelBuilder().
		Title("API Calls by Status").
		Description("MercadoLibre API calls per second by HTTP status").
		Datasource(DSRef()).
		Height(TSHeight).
		Span(8).
		WithTarget(PromQuery(
			`sum(rate(`+jobSel("mh_api_calls_total")+`[5m])) by (status)`,
			"{{status}}", "A",
		)).
		Unit("reqps").
		FillOpacity(10).
		LineWidth(2).
		Legend(TableLegend("mean", "max")).
		Tooltip(MultiTooltip()).
		Thresholds(ThresholdsGreenOnly()).
		ColorScheme(ColorSchemePaletteClassic()).
		DrawStyle(common.GraphDrawStyleLine)
}

// APIErrorRatio returns a timeseries panel showing the share of marketplace
// calls that failed.
func APIErrorRatio() *timeseries.PanelBuilder {
	return timeseries.NewPanelBuilder().
		Title("API Error %").
		Description("Share of MercadoLibre API calls answered with 4xx/5xx or a transport error").
		Datasource(DSRef()).
		Height(TSHeight).
		Span(8).
		WithTarget(PromQuery(`mh:api_errors:rate5m / mh:api_calls:rate5m * 100`, "error %", "A")).
		Unit("percent").
		FillOpacity(10).
		LineWidth(2).
		Thresholds(ThresholdsGreenYellowRed(5, 20)).
		ColorScheme(ColorSchemeThresholds()).
		DrawStyle(common.GraphDrawStyleLine)
}

// AuthRecovery returns a timeseries panel showing credential retries and
// public read fallbacks.
func AuthRecovery() *timeseries.PanelBuilder {
	return timeseries.NewPanelBuilder().
		Title("Auth Retries / Public Fallbacks").
		Description("Requests retried after a forced token refresh, and item reads served by the public path").
		Datasource(DSRef()).
		Height(TSHeight).
		Span(8).
		WithTarget(PromQuery(`sum(increase(`+jobSel("mh_auth_retries_total")+`[1h]))`, "auth retries", "A")).
		WithTarget(PromQuery(`sum(increase(`+jobSel("mh_public_fallbacks_total")+`[1h]))`, "public fallbacks", "B")).
		FillOpacity(10).
		LineWidth(2).
		Tooltip(MultiTooltip()).
		Thresholds(ThresholdsGreenOnly()).
		ColorScheme(ColorSchemePaletteClassic()).
		DrawStyle(common.GraphDrawStyleLine)
}

// DailyUsage returns a timeseries panel showing the rolling 24h API call
// count.
func DailyUsage() *timeseries.PanelBuilder {
	return timeseries.NewPanelBuilder().
		Title("Daily API Usage").
		Description("Rolling 24h MercadoLibre API call count").
		Datasource(DSRef()).
		Height(TSHeight).
		Span(8).
		WithTarget(PromQuery(jobSel("mh_api_daily_usage"), "usage", "A")).
		FillOpacity(10).
		LineWidth(2).
		Thresholds(ThresholdsGreenOnly()).
		ColorScheme(ColorSchemePaletteClassic()).
		DrawStyle(common.GraphDrawStyleLine)
}

// LimitHits returns a stat panel showing the number of daily limit hits
// in the past 24 hours.
func LimitHits() *stat.PanelBuilder {
	return stat.NewPanelBuilder().
		Title("Limit Hits (24h)").
		Description("Times the configured daily API budget was reached in the last 24 hours").
		Datasource(DSRef()).
		Height(TSHeight).
		Span(8).
		WithTarget(PromQuery(`increase(`+jobSel("mh_api_daily_limit_hits_total")+`[24h])`, "", "A")).
		Thresholds(ThresholdsGreenYellowRed(1, 3)).
		ColorScheme(ColorSchemeThresholds()).
		ColorMode(common.BigValueColorModeBackground).
		GraphMode(common.BigValueGraphModeArea)
}

// TokenExpiry returns a stat panel showing time until the current access
// token expires.
func TokenExpiry() *stat.PanelBuilder {
	return stat.NewPanelBuilder().
		Title("Token Expires In").
		Description("Time until the cached access token expires").
		Datasource(DSRef()).
		Height(TSHeight).
		Span(8).
		WithTarget(PromQuery(jobSel("mh_token_expiry_timestamp_seconds")+` - time()`, "", "A")).
		Unit("s").
		Thresholds(ThresholdsRedGreen(300)).
		ColorScheme(ColorSchemeThresholds()).
		ColorMode(common.BigValueColorModeBackground).
		GraphMode(common.BigValueGraphModeNone)
}

// TokenRefreshes returns a timeseries panel showing token refreshes by
// result.
func TokenRefreshes() *timeseries.PanelBuilder {
	return timeseries.NewPanelBuilder().
		Title("Token Refreshes").
		Description("Access token refreshes per hour by result").
		Datasource(DSRef()).
		Height(TSHeight).
		Span(8).
		WithTarget(PromQuery(
			`sum(increase(`+jobSel("mh_token_refreshes_total")+`[1h])) by (result)`,
			"{{result}}", "A",
		)).
		FillOpacity(10).
		LineWidth(2).
		Tooltip(MultiTooltip()).
		Thresholds(ThresholdsGreenOnly()).
		ColorScheme(ColorSchemePaletteClassic()).
		DrawStyle(common.GraphDrawStyleBars)
}

package panels

import (
	"github.com/grafana/grafana-foundation-sdk/go/bargauge"
	"github.com/grafana/grafana-foundation-sdk/go/common"
	"github.com/grafana/grafana-foundation-sdk/go/stat"
	"github.com/grafana/grafana-foundation-sdk/go/timeseries"
)

// RunDuration returns a timeseries panel showing p50 and p95 extraction
// run durations.
func RunDuration() *timeseries.PanelBuilder {
	return timeseries.NewPanelBuilder().
		Title("Run Duration").
		Description("Extraction run duration percentiles").
		Datasource(DSRef()).
		Height(TSHeight).
		Span(8).
		WithTarget(PromQuery(quantileOver("0.50", "mh_run_duration_seconds", "6h"), "p50", "A")).
		WithTarget(PromQuery(quantileOver("0.95", "mh_run_duration_seconds", "6h"), "p95", "B")).
		Unit("s").
		FillOpacity(10).
		LineWidth(2).
		Legend(TableLegend("mean", "max")).
		Tooltip(MultiTooltip()).
		Thresholds(ThresholdsGreenOnly()).
		ColorScheme(ColorSchemePaletteClassic()).
		DrawStyle(common.GraphDrawStyleLine)
}

// RunOutcomes returns a bar gauge panel showing runs over the last day by
// outcome status and failure reason.
func RunOutcomes() *bargauge.PanelBuilder {
	return bargauge.NewPanelBuilder().
		Title("Run Outcomes (24h)").
		Description("Extraction runs by status and failure reason").
		Datasource(DSRef()).
		Height(TSHeight).
		Span(8).
		WithTarget(PromQuery(
			`sum(increase(`+jobSel("mh_runs_total")+`[24h])) by (status, reason)`,
			"{{status}} {{reason}}", "A",
		)).
		Orientation(common.VizOrientationHorizontal).
		Min(0).
		Thresholds(ThresholdsGreenOnly()).
		ColorScheme(ColorSchemePaletteClassic())
}

// LastRunProducts returns a stat panel showing the product count of the
// latest result.
func LastRunProducts() *stat.PanelBuilder {
	return stat.NewPanelBuilder().
		Title("Products in Catalog").
		Description("Products in the most recent extraction result").
		Datasource(DSRef()).
		Height(TSHeight).
		Span(8).
		WithTarget(PromQuery(jobSel("mh_last_run_products"), "", "A")).
		Thresholds(ThresholdsRedGreen(1)).
		ColorScheme(ColorSchemeThresholds()).
		ColorMode(common.BigValueColorModeValue).
		GraphMode(common.BigValueGraphModeArea)
}

// ItemThroughput returns a timeseries panel showing resolved and skipped
// items per hour.
func ItemThroughput() *timeseries.PanelBuilder {
	return timeseries.NewPanelBuilder().
		Title("Items / hour").
		Description("Items resolved into product records and items skipped").
		Datasource(DSRef()).
		Height(TSHeight).
		Span(TSWidth).
		WithTarget(PromQuery(`mh:items_resolved:rate1h * 3600`, "resolved", "A")).
		WithTarget(PromQuery(`mh:items_skipped:rate1h * 3600`, "skipped", "B")).
		FillOpacity(10).
		LineWidth(2).
		Tooltip(MultiTooltip()).
		Thresholds(ThresholdsGreenOnly()).
		ColorScheme(ColorSchemePaletteClassic()).
		DrawStyle(common.GraphDrawStyleLine)
}

// SinkFailures returns a timeseries panel showing result sink failures by
// sink.
func SinkFailures() *timeseries.PanelBuilder {
	return timeseries.NewPanelBuilder().
		Title("Sink Failures").
		Description("Result sink write failures per hour by sink").
		Datasource(DSRef()).
		Height(TSHeight).
		Span(TSWidth).
		WithTarget(PromQuery(
			`sum(increase(`+jobSel("mh_sink_failures_total")+`[1h])) by (sink)`,
			"{{sink}}", "A",
		)).
		FillOpacity(10).
		LineWidth(2).
		Thresholds(ThresholdsGreenYellowRed(1, 3)).
		ColorScheme(ColorSchemeThresholds()).
		DrawStyle(common.GraphDrawStyleBars)
}

// quantileOver is quantile with a caller-chosen rate window. Runs are rare,
// so a 5m window is mostly empty.
func quantileOver(q, histogram, window string) string {
	return `histogram_quantile(` + q + `, sum(rate(` + jobSel(histogram+"_bucket") + `[` + window + `])) by (le))`
}

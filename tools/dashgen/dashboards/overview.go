// Package dashboards assembles Grafana dashboard definitions from panel builders.
package dashboards

import (
	"github.com/grafana/grafana-foundation-sdk/go/dashboard"

	"github.com/donaldgifford/meli-harvester/tools/dashgen/panels"
)

// BuildOverview constructs the harvester overview dashboard with all metric rows.
func BuildOverview() *dashboard.DashboardBuilder {
	b := dashboard.NewDashboardBuilder("Meli Harvester Overview").
		Uid("mh-overview").
		Tags([]string{"mh", "meli-harvester"}).
		Refresh("1m").
		Time("now-24h", "now").
		Timezone("browser").
		Editable().
		Tooltip(dashboard.DashboardCursorSyncCrosshair).
		WithVariable(datasourceVar())

	// Row 1: Overview.
	b.WithRow(dashboard.NewRowBuilder("Overview").
		WithPanel(panels.HealthzStat()).
		WithPanel(panels.ReadyzStat()).
		WithPanel(panels.LastSuccessStat()).
		WithPanel(panels.UptimeStat()))

	// Row 2: HTTP.
	b.WithRow(dashboard.NewRowBuilder("HTTP").
		WithPanel(panels.RequestRate()).
		WithPanel(panels.LatencyPercentiles()).
		WithPanel(panels.ErrorRate()))

	// Row 3: MercadoLibre API.
	b.WithRow(dashboard.NewRowBuilder("MercadoLibre API").
		WithPanel(panels.APICallsByStatus()).
		WithPanel(panels.APIErrorRatio()).
		WithPanel(panels.AuthRecovery()).
		WithPanel(panels.DailyUsage()).
		WithPanel(panels.LimitHits()))

	// Row 4: Credentials.
	b.WithRow(dashboard.NewRowBuilder("Credentials").
		WithPanel(panels.TokenExpiry()).
		WithPanel(panels.TokenRefreshes()))

	// Row 5: Extraction.
	b.WithRow(dashboard.NewRowBuilder("Extraction").
		WithPanel(panels.RunDuration()).
		WithPanel(panels.RunOutcomes()).
		WithPanel(panels.LastRunProducts()).
		WithPanel(panels.ItemThroughput()).
		WithPanel(panels.SinkFailures()))

	// Row 6: Notifications.
	b.WithRow(dashboard.NewRowBuilder("Notifications").
		WithPanel(panels.NotificationLatency()).
		WithPanel(panels.NotificationFailures()))

	return b
}

func datasourceVar() *dashboard.DatasourceVariableBuilder {
	return dashboard.NewDatasourceVariableBuilder("datasource").
		Label("Datasource").
		Type("prometheus")
}

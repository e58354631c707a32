package rules

// RecordingRules returns a PrometheusRule CR containing pre-computed rate
// expressions used by dashboards and alert rules.
func RecordingRules() PrometheusRule {
	return PrometheusRule{
		APIVersion: "monitoring.coreos.com/v1",
		Kind:       "PrometheusRule",
		Metadata: PrometheusRuleMetadata{
			Name: "mh-recording-rules",
			Labels: map[string]string{
				"prometheus": "system-rules-prometheus",
			},
		},
		Spec: PrometheusRuleSpec{
			Groups: []RuleGroup{
				{
					Name: "mh-recording",
					Rules: []Rule{
						{
							Record: "mh:http_requests:rate5m",
							Expr:   `sum(rate(mh_http_requests_total[5m]))`,
						},
						{
							Record: "mh:http_errors:rate5m",
							Expr:   `sum(rate(mh_http_requests_total{status=~"5.."}[5m]))`,
						},
						{
							Record: "mh:api_calls:rate5m",
							Expr:   `sum(rate(mh_api_calls_total[5m]))`,
						},
						{
							Record: "mh:api_errors:rate5m",
							Expr:   `sum(rate(mh_api_calls_total{status=~"4..|5..|error"}[5m]))`,
						},
						{
							Record: "mh:items_resolved:rate1h",
							Expr:   `sum(rate(mh_items_resolved_total[1h]))`,
						},
						{
							Record: "mh:items_skipped:rate1h",
							Expr:   `sum(rate(mh_items_skipped_total[1h]))`,
						},
						{
							Record: "mh:notification_duration:p95_5m",
							Expr:   `histogram_quantile(0.95, sum(rate(mh_notification_duration_seconds_bucket[5m])) by (le))`,
						},
					},
				},
			},
		},
	}
}

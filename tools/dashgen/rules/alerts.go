package rules

// AlertRules returns a PrometheusRule CR containing alert rules for
// meli-harvester operational monitoring.
func AlertRules() PrometheusRule {
	return PrometheusRule{
		APIVersion: "monitoring.coreos.com/v1",
		Kind:       "PrometheusRule",
		Metadata: PrometheusRuleMetadata{
			Name: "mh-alerts",
			Labels: map[string]string{
				"prometheus": "system-rules-prometheus",
			},
		},
		Spec: PrometheusRuleSpec{
			Groups: []RuleGroup{
				{
					Name: "mh-alerts",
					Rules: []Rule{
						{
							Alert: "MhDown",
							Expr:  `absent(up{job="meli-harvester"})`,
							For:   "2m",
							Labels: map[string]string{
								"severity": "critical",
							},
							Annotations: map[string]string{
								"summary":     "Meli Harvester is down",
								"description": "The meli-harvester job has been absent for more than 2 minutes.",
							},
						},
						{
							Alert: "MhReadinessDown",
							Expr:  `mh_readyz_up == 0`,
							For:   "2m",
							Labels: map[string]string{
								"severity": "critical",
							},
							Annotations: map[string]string{
								"summary":     "Meli Harvester readiness check is failing",
								"description": "The readiness probe has been reporting not-ready for more than 2 minutes.",
							},
						},
						{
							Alert: "MhHighErrorRate",
							Expr:  `mh:http_errors:rate5m / mh:http_requests:rate5m > 0.05`,
							For:   "5m",
							Labels: map[string]string{
								"severity": "warning",
							},
							Annotations: map[string]string{
								"summary":     "High HTTP error rate on Meli Harvester",
								"description": "More than 5% of HTTP requests are returning 5xx errors over the last 5 minutes.",
							},
						},
						{
							Alert: "MhRefreshTokenExpired",
							Expr:  `increase(mh_runs_total{reason="auth_expired"}[1h]) > 0`,
							For:   "0m",
							Labels: map[string]string{
								"severity": "critical",
							},
							Annotations: map[string]string{
								"summary":     "MercadoLibre refresh token expired",
								"description": "An extraction failed because the refresh token is no longer valid. Re-authorize the application and update MERCADOLIBRE_REFRESH_TOKEN.",
							},
						},
						{
							Alert: "MhRunsFailing",
							Expr:  `increase(mh_runs_total{status="failed"}[6h]) > 0`,
							For:   "0m",
							Labels: map[string]string{
								"severity": "warning",
							},
							Annotations: map[string]string{
								"summary":     "Extraction runs are failing",
								"description": "At least one extraction run failed in the last 6 hours. Check the run reports at /api/v1/runs.",
							},
						},
						{
							Alert: "MhNoRecentResult",
							Expr:  `time() - mh_last_success_timestamp_seconds > 172800`,
							For:   "10m",
							Labels: map[string]string{
								"severity": "warning",
							},
							Annotations: map[string]string{
								"summary":     "No extraction result in two days",
								"description": "The catalog snapshot is more than 48 hours old.",
							},
						},
						{
							Alert: "MhSkippedItems",
							Expr:  `mh:items_skipped:rate1h / (mh:items_resolved:rate1h + mh:items_skipped:rate1h) > 0.2`,
							For:   "1h",
							Labels: map[string]string{
								"severity": "warning",
							},
							Annotations: map[string]string{
								"summary":     "Many items are being skipped",
								"description": "More than 20% of requested items could not be resolved over the last hour.",
							},
						},
						{
							Alert: "MhDailyLimitReached",
							Expr:  `increase(mh_api_daily_limit_hits_total[5m]) > 0`,
							For:   "0m",
							Labels: map[string]string{
								"severity": "critical",
							},
							Annotations: map[string]string{
								"summary":     "MercadoLibre API daily budget has been reached",
								"description": "The configured daily call budget is exhausted. Extraction is blocked until the window resets.",
							},
						},
						{
							Alert: "MhSinkFailures",
							Expr:  `increase(mh_sink_failures_total[1h]) > 0`,
							For:   "0m",
							Labels: map[string]string{
								"severity": "warning",
							},
							Annotations: map[string]string{
								"summary":     "Result sink writes are failing",
								"description": "One or more result sinks failed to persist an extraction result in the last hour.",
							},
						},
						{
							Alert: "MhNotificationFailures",
							Expr:  `increase(mh_notification_failures_total[5m]) > 0`,
							For:   "1m",
							Labels: map[string]string{
								"severity": "warning",
							},
							Annotations: map[string]string{
								"summary":     "Notification delivery failures detected",
								"description": "One or more run notifications (Discord webhooks) have failed to send.",
							},
						},
					},
				},
			},
		},
	}
}

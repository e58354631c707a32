// Package middleware provides Echo middleware for the meli-harvester API.
package middleware

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/donaldgifford/meli-harvester/internal/metrics"
)

// probeGauges lists probe and scrape routes. They are kept out of the
// request histogram; a non-nil gauge tracks the probe result instead.
var probeGauges = map[string]prometheus.Gauge{
	"/metrics": nil,
	"/healthz": metrics.HealthzUp,
	"/readyz":  metrics.ReadyzUp,
}

// Metrics returns Echo middleware that records request duration and count
// per method, route template, and status.
func Metrics() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			route := routeOf(c)

			if gauge, probe := probeGauges[route]; probe {
				err := next(c)
				if gauge != nil {
					gauge.Set(upValue(responseStatus(c, err)))
				}
				return err
			}

			start := time.Now()
			err := next(c)

			labels := []string{
				c.Request().Method,
				route,
				strconv.Itoa(responseStatus(c, err)),
			}
			metrics.HTTPRequestDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
			metrics.HTTPRequestsTotal.WithLabelValues(labels...).Inc()

			return err
		}
	}
}

// routeOf prefers the registered route template so ids do not explode the
// label space.
func routeOf(c echo.Context) string {
	if p := c.Path(); p != "" {
		return p
	}
	return c.Request().URL.Path
}

// responseStatus reports the status the client will see, including errors
// that echo has not written yet.
func responseStatus(c echo.Context, err error) int {
	if c.Response().Committed {
		return c.Response().Status
	}
	if he, ok := err.(*echo.HTTPError); ok { //nolint:errorlint // echo returns the concrete type
		return he.Code
	}
	if err != nil {
		return 500
	}
	return c.Response().Status
}

func upValue(status int) float64 {
	if status >= 200 && status < 300 {
		return 1
	}
	return 0
}

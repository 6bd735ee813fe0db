// Package telemetry provides application-level observability for the hibachi
// platform backend.
//
// # Prometheus Metrics Endpoint
//
// All metrics are registered against the default Prometheus registry and are
// automatically available on the side-channel HTTP server started by main.go:
//
//	GET http(s)://<host>:<HIB_TELEMETRY_METRICS_PROMETHEUS_PORT>/metrics
//
// Default port: 9090.  The endpoint returns data in the Prometheus text exposition
// format (Content-Type: text/plain; version=0.0.4) and is intended to be scraped by
// a Prometheus server every 15–60 seconds.  It is NOT served by the Gin router.
//
// # Metric Groups
//
//   - HTTP request counters and latency histograms (labelled by route template, not raw URL)
//   - Soft delete, restore, and purge counters by resource type
//   - Audit trail write and export-shipping counters
//   - Purge job cycle duration histogram
//   - Database connection pool gauge (polled every 30 s)
//
// # Label Cardinality
//
// HTTP metrics use c.FullPath() (route template such as /api/v1/:resource_type/:id)
// rather than the raw request URL to prevent unbounded label cardinality from
// user-supplied path segments such as resource ids. Resource-type labels are
// bounded by the fixed matrix of soft-deletable types.
//
// # Usage
//
// Import the package for side effects so metrics are registered before the HTTP server
// starts listening, or use an exported var directly:
//
//	telemetry.SoftDeletesTotal.WithLabelValues(resourceType).Inc()
package telemetry

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics — labelled by method, route template, and status code.
//
// HTTPRequestsTotal is a CounterVec with labels {method, path, status}.
// The path label holds the Gin route template (e.g. /api/v1/:resource_type/:id),
// NOT the raw URL, to prevent unbounded cardinality.
//
// Example PromQL queries:
//   - Request rate (req/s, 5 m window):  rate(http_requests_total[5m])
//   - Error rate (%):                    sum(rate(http_requests_total{status=~"5.."}[5m])) / sum(rate(http_requests_total[5m])) * 100
//   - Requests by route:                 sum by (path) (rate(http_requests_total[5m]))
//
// HTTPRequestDuration is a HistogramVec with labels {method, path} and exponential-ish
// buckets from 5 ms to 30 s.  Use histogram_quantile to compute latency percentiles.
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)
)

// Destructive-action lifecycle metrics.
//
// SoftDeletesTotal, RestoresTotal, and PurgesTotal are CounterVecs with the
// single label {resource_type}, incremented once per committed operation.
// Ratios between them describe how often deletions are reversed and how much
// soft-deleted data ages out into physical removal.
//
// Example PromQL queries:
//   - Delete rate by type:         sum by (resource_type) (rate(soft_deletes_total[1h]))
//   - Restore ratio (%):           sum(rate(restores_total[24h])) / sum(rate(soft_deletes_total[24h])) * 100
//   - Purge backlog draining:      rate(purges_total[1h])
var (
	SoftDeletesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soft_deletes_total",
			Help: "Total number of committed soft deletes, by resource type.",
		},
		[]string{"resource_type"},
	)

	RestoresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "restores_total",
			Help: "Total number of committed restores of soft-deleted resources, by resource type.",
		},
		[]string{"resource_type"},
	)

	PurgesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purges_total",
			Help: "Total number of soft-deleted resources physically purged, by resource type.",
		},
		[]string{"resource_type"},
	)
)

// Audit trail metrics.
//
// AuditEntriesTotal is a CounterVec with label {action} incremented once per
// committed audit entry.  AuditShipErrorsTotal counts failed deliveries to
// external export destinations; the database row is already committed when
// shipping runs, so this is an export-health signal, not a data-loss one.
//
// Example PromQL queries:
//   - Audit write rate by action:  sum by (action) (rate(audit_entries_total[1h]))
//   - Export failure alert:        increase(audit_ship_errors_total[30m]) > 3
var (
	AuditEntriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_entries_total",
			Help: "Total number of audit trail entries written, by action.",
		},
		[]string{"action"},
	)

	AuditShipErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_ship_errors_total",
			Help: "Total number of failed audit entry deliveries to export destinations.",
		},
	)
)

// PurgeCycleDuration is a Histogram using the default Prometheus buckets.
// Each observation represents one complete purge job cycle across all
// resource types.
//
// Example PromQL queries:
//   - p95 cycle duration:  histogram_quantile(0.95, rate(purge_cycle_duration_seconds_bucket[6h]))
var PurgeCycleDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "purge_cycle_duration_seconds",
		Help:    "Duration of a single purge job cycle.",
		Buckets: prometheus.DefBuckets,
	},
)

// DBOpenConnections is a Gauge that tracks the number of open connections currently
// held by the sql.DB connection pool.  It is sampled every 30 seconds by
// StartDBStatsCollector rather than per-request to avoid the overhead of sql.DB.Stats().
//
// Example PromQL queries:
//   - Pool utilisation (%): db_open_connections / <HIB_DATABASE_MAX_CONNECTIONS> * 100
//   - Alert on near-exhaustion: db_open_connections > 20  (for max_connections=25)
var DBOpenConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "db_open_connections",
		Help: "Current number of open database connections in the pool.",
	},
)

// StartDBStatsCollector launches a background goroutine that samples sql.DB connection
// pool statistics every 30 seconds and updates the DBOpenConnections gauge.
// The goroutine exits cleanly when the database becomes unreachable (db.Ping fails),
// which happens automatically when the application shuts down and defers db.Close().
//
// Call this once, immediately after db.Connect() succeeds in main.go:
//
//	telemetry.StartDBStatsCollector(database)
func StartDBStatsCollector(db *sql.DB) {
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			if err := db.Ping(); err != nil {
				slog.Warn("db stats collector: database unreachable, stopping collector", "error", err)
				return
			}
			DBOpenConnections.Set(float64(db.Stats().OpenConnections))
		}
	}()
}

// Package telemetry provides application-level observability for the navigator.
//
// # Prometheus Metrics Endpoint
//
// All metrics are registered against the default Prometheus registry and are
// served on the side-channel HTTP server started by cmd/server:
//
//	GET http://<host>:<NAV_TELEMETRY_METRICS_PROMETHEUS_PORT>/metrics
//
// Default port: 9090. The endpoint is not served by the Gin router.
//
// # Metric Groups
//
//   - HTTP request counters and latency histograms (labelled by route template, not raw URL)
//   - Catalog size, reloads and searches
//   - Click-through visits and their batched flushes
//   - Avatar placeholder renders
//   - Database connection pool gauge (postgres catalog only)
package telemetry

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics, labelled by method, route template and status code.
//
// The path label holds the Gin route template (e.g. /go/:id), not the raw URL,
// to keep cardinality bounded.
//
// Example PromQL queries:
//   - Request rate (req/s, 5 m window):  rate(http_requests_total[5m])
//   - p99 latency per route:             histogram_quantile(0.99, sum by (path, le) (rate(http_request_duration_seconds_bucket[5m])))
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

// Catalog metrics.
//
// CatalogReloadsTotal is labelled {result} with "success" or "error". A reload is
// triggered by the file watcher (after throttling) or by an admin edit.
//
// Example PromQL queries:
//   - Failed reloads in the last hour:  increase(catalog_reloads_total{result="error"}[1h])
var (
	CatalogSites = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "catalog_sites",
			Help: "Number of site listings currently loaded.",
		},
	)

	CatalogReloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_reloads_total",
			Help: "Total number of catalog reloads, by result.",
		},
		[]string{"result"},
	)

	SearchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_searches_total",
			Help: "Total number of catalog searches, by surface (page or api).",
		},
		[]string{"surface"},
	)
)

// Visit metrics. SiteVisitsTotal counts click-throughs as they happen; the
// repository write is batched, so compare with visit_flushes_total to see how
// well the flush throttle coalesces.
var (
	SiteVisitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "site_visits_total",
			Help: "Total number of click-throughs recorded via /go/:id.",
		},
	)

	VisitFlushesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "visit_flushes_total",
			Help: "Total number of visit batches written to the catalog repository, by result.",
		},
		[]string{"result"},
	)
)

// AvatarRendersTotal counts placeholder renders, labelled {format} with "svg" for
// /avatar/:name and "json" for the API.
var AvatarRendersTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "avatar_renders_total",
		Help: "Total number of avatar placeholders generated, by format.",
	},
	[]string{"format"},
)

// DBOpenConnections tracks the number of open connections held by the sql.DB pool.
// It is sampled every 30 seconds by StartDBStatsCollector.
var DBOpenConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "db_open_connections",
		Help: "Current number of open database connections in the pool.",
	},
)

// ObserveReload records the outcome of a catalog reload.
func ObserveReload(err error) {
	if err != nil {
		CatalogReloadsTotal.WithLabelValues("error").Inc()
		return
	}
	CatalogReloadsTotal.WithLabelValues("success").Inc()
}

// ObserveVisitFlush records the outcome of a visit batch write.
func ObserveVisitFlush(err error) {
	if err != nil {
		VisitFlushesTotal.WithLabelValues("error").Inc()
		return
	}
	VisitFlushesTotal.WithLabelValues("success").Inc()
}

// StartDBStatsCollector samples connection pool statistics every 30 seconds until
// ctx is cancelled or the database becomes unreachable. Run it in its own goroutine:
//
//	safego.Go("db-stats", func() { telemetry.StartDBStatsCollector(ctx, database.DB) })
func StartDBStatsCollector(ctx context.Context, db *sql.DB) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := db.PingContext(ctx); err != nil {
				slog.Warn("db stats collector: database unreachable, stopping collector", "error", err)
				return
			}
			DBOpenConnections.Set(float64(db.Stats().OpenConnections))
		}
	}
}

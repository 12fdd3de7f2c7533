package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Request metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestErrors   *prometheus.CounterVec

	// Cache metrics
	CacheHits          *prometheus.CounterVec
	CacheMisses        *prometheus.CounterVec
	CacheInvalidations *prometheus.CounterVec

	// Sync metrics
	ChangeAppends *prometheus.CounterVec
	RowsReturned  *prometheus.CounterVec
}

// NewMetrics creates and registers Prometheus metrics against reg. Tests pass
// a fresh registry to avoid duplicate registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rowsync_requests_total",
				Help: "Total number of sync requests processed",
			},
			[]string{"operation", "table"},
		),

		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rowsync_request_duration_seconds",
				Help:    "Duration of sync request processing",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		RequestErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rowsync_request_errors_total",
				Help: "Total number of request errors",
			},
			[]string{"operation", "error_code"},
		),

		CacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rowsync_cache_hits_total",
				Help: "Total number of query cache hits",
			},
			[]string{"table"},
		),

		CacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rowsync_cache_misses_total",
				Help: "Total number of query cache misses",
			},
			[]string{"table"},
		),

		CacheInvalidations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rowsync_cache_invalidations_total",
				Help: "Total number of bulk cache invalidations",
			},
			[]string{"table"},
		),

		ChangeAppends: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rowsync_change_appends_total",
				Help: "Total number of change-log entries appended",
			},
			[]string{"table"},
		),

		RowsReturned: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rowsync_rows_returned_total",
				Help: "Total number of rows returned to clients",
			},
			[]string{"table"},
		),
	}
}

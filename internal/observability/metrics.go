package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "gws"

// Metrics holds the Prometheus collectors for pipeline runs and the query
// service.
type Metrics struct {
	FilesProcessed *prometheus.CounterVec   // labels: stage
	FilesSkipped   *prometheus.CounterVec   // labels: stage, reason={io,no_overlap,no_time_overlap}
	StageDuration  *prometheus.HistogramVec // labels: stage
	GridMismatches prometheus.Counter

	QueryRequests *prometheus.CounterVec // labels: endpoint, outcome={ok,bad_request,error}
}

func newMetrics() *Metrics {
	return &Metrics{
		FilesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_processed_total",
			Help:      "Input files processed successfully, by pipeline stage.",
		}, []string{"stage"}),
		FilesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_skipped_total",
			Help:      "Input files skipped after a non-fatal error, by stage and reason.",
		}, []string{"stage", "reason"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time of a complete pipeline stage.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300, 900},
		}, []string{"stage"}),
		GridMismatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grid_mismatch_total",
			Help:      "Regridded files whose grid did not overlap the reference grid.",
		}),
		QueryRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_requests_total",
			Help:      "Product query API requests by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.FilesProcessed,
		m.FilesSkipped,
		m.StageDuration,
		m.GridMismatches,
		m.QueryRequests,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

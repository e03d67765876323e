// Package metrics holds the Prometheus metrics for reconciliation runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds reconciliation run metrics.
type Metrics struct {
	runs          *prometheus.CounterVec
	discrepancies *prometheus.CounterVec
	duration      prometheus.Histogram
}

// New creates and registers the reconciliation metrics.
func New() *Metrics {
	return &Metrics{
		runs: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "attestra_reconciliation_runs_total",
			Help: "Reconciliation runs by outcome",
		}, []string{"outcome"}),
		discrepancies: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "attestra_reconciliation_discrepancies_total",
			Help: "Discrepancies found, by kind",
		}, []string{"kind"}),
		duration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "attestra_reconciliation_duration_seconds",
			Help:    "Reconciliation run latency including the chain fetch",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
	}
}

// ObserveRun records one reconciliation run.
func (m *Metrics) ObserveRun(outcome string, kinds map[string]int, elapsed time.Duration) {
	m.runs.WithLabelValues(outcome).Inc()
	for kind, count := range kinds {
		m.discrepancies.WithLabelValues(kind).Add(float64(count))
	}
	m.duration.Observe(elapsed.Seconds())
}

// Package metrics holds the Prometheus metrics for the verification pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds verification pipeline metrics.
type Metrics struct {
	verifications *prometheus.CounterVec
	failures      *prometheus.CounterVec
	duration      prometheus.Histogram
}

// New creates and registers the verification metrics.
func New() *Metrics {
	return &Metrics{
		verifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "attestra_verifications_total",
			Help: "Verification attempts by outcome",
		}, []string{"outcome"}),
		failures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "attestra_verification_failures_total",
			Help: "Failed verifications by reason",
		}, []string{"reason"}),
		duration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "attestra_verification_duration_seconds",
			Help:    "End-to-end verification pipeline latency",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
	}
}

// ObserveVerification records one verification attempt.
func (m *Metrics) ObserveVerification(outcome, reason string, elapsed time.Duration) {
	m.verifications.WithLabelValues(outcome).Inc()
	if reason != "" {
		m.failures.WithLabelValues(reason).Inc()
	}
	m.duration.Observe(elapsed.Seconds())
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds routing engine instrumentation.
type Metrics struct {
	Transitions        *prometheus.CounterVec
	TransitionFailures *prometheus.CounterVec
	TransitionLatency  *prometheus.HistogramVec
	PublicIDRetries    prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "doctrack_transitions_total",
			Help: "Total number of accepted document transitions",
		}, []string{"action"}),
		TransitionFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "doctrack_transition_failures_total",
			Help: "Total number of rejected document transitions by error code",
		}, []string{"action", "code"}),
		TransitionLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "doctrack_transition_duration_seconds",
			Help:    "Time taken to run one transition unit of work",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 5},
		}, []string{"action"}),
		PublicIDRetries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "doctrack_public_id_retries_total",
			Help: "Total number of public id collisions retried at creation",
		}),
	}
}

func (m *Metrics) IncrementTransition(action string) {
	m.Transitions.WithLabelValues(action).Inc()
}

func (m *Metrics) IncrementFailure(action, code string) {
	m.TransitionFailures.WithLabelValues(action, code).Inc()
}

func (m *Metrics) ObserveLatency(action string, seconds float64) {
	m.TransitionLatency.WithLabelValues(action).Observe(seconds)
}

func (m *Metrics) IncrementPublicIDRetry() {
	m.PublicIDRetries.Inc()
}

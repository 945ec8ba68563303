package outbox

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks relay throughput and backlog.
type Metrics struct {
	Published      prometheus.Counter
	PublishFailed  prometheus.Counter
	Pending        prometheus.Gauge
	PublishLatency prometheus.Histogram
}

func NewMetrics() *Metrics {
	return &Metrics{
		Published: promauto.NewCounter(prometheus.CounterOpts{
			Name: "doctrack_outbox_published_total",
			Help: "Total number of outbox entries published",
		}),
		PublishFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "doctrack_outbox_publish_failures_total",
			Help: "Total number of failed outbox publish attempts",
		}),
		Pending: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "doctrack_outbox_pending",
			Help: "Number of outbox entries waiting to be published",
		}),
		PublishLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "doctrack_outbox_publish_duration_seconds",
			Help:    "Time taken to publish one outbox entry",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

func (m *Metrics) IncrementPublished() {
	m.Published.Inc()
}

func (m *Metrics) IncrementPublishFailed() {
	m.PublishFailed.Inc()
}

func (m *Metrics) SetPending(n int) {
	m.Pending.Set(float64(n))
}

func (m *Metrics) ObservePublishLatency(seconds float64) {
	m.PublishLatency.Observe(seconds)
}

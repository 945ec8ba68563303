package analytics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	CacheHits       prometheus.Counter
	CacheMisses     prometheus.Counter
	ComputeDuration prometheus.Histogram
	EventsScanned   prometheus.Gauge
}

func NewMetrics() *Metrics {
	return &Metrics{
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "doctrack_analytics_cache_hits_total",
			Help: "Total number of bottleneck reports served from cache",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "doctrack_analytics_cache_misses_total",
			Help: "Total number of bottleneck report cache misses",
		}),
		ComputeDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "doctrack_analytics_compute_duration_seconds",
			Help:    "Time taken to scan the audit log and compute the report",
			Buckets: prometheus.DefBuckets,
		}),
		EventsScanned: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "doctrack_analytics_events_scanned",
			Help: "Number of audit events in the last computed report",
		}),
	}
}

func (m *Metrics) IncrementCacheHit() {
	m.CacheHits.Inc()
}

func (m *Metrics) IncrementCacheMiss() {
	m.CacheMisses.Inc()
}

func (m *Metrics) ObserveCompute(seconds float64, events int) {
	m.ComputeDuration.Observe(seconds)
	m.EventsScanned.Set(float64(events))
}

// Package metrics exports engine metrics in Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ansuz"

// Metrics holds the collectors. A nil *Metrics is valid and records nothing,
// so components can take one unconditionally.
type Metrics struct {
	registry *prometheus.Registry

	refreshes      *prometheus.CounterVec
	embedLatency   prometheus.Histogram
	queueDepth     prometheus.Gauge
	searches       *prometheus.CounterVec
	searchLatency  *prometheus.HistogramVec
	graphMutations *prometheus.CounterVec
}

// New creates the collectors on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "embedding",
			Name:      "refreshes_total",
			Help:      "Embedding refreshes by outcome.",
		}, []string{"status"}),
		embedLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "embedding",
			Name:      "provider_latency_seconds",
			Help:      "Embedding provider call latency in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "embedding",
			Name:      "queue_depth",
			Help:      "Paths waiting for an embedding refresh.",
		}),
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "requests_total",
			Help:      "Similarity searches by entry mode and outcome.",
		}, []string{"mode", "status"}),
		searchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "latency_seconds",
			Help:      "Similarity search latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"mode"}),
		graphMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "mutations_total",
			Help:      "Committed note graph mutations by operation.",
		}, []string{"op"}),
	}
	reg.MustRegister(
		m.refreshes, m.embedLatency, m.queueDepth,
		m.searches, m.searchLatency, m.graphMutations,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RefreshDone counts a refresh outcome: "embedded", "unchanged", "removed" or
// "failed".
func (m *Metrics) RefreshDone(status string) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(status).Inc()
}

// ObserveEmbed records one provider call.
func (m *Metrics) ObserveEmbed(d time.Duration) {
	if m == nil {
		return
	}
	m.embedLatency.Observe(d.Seconds())
}

// SetQueueDepth reports the number of pending refreshes.
func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

// ObserveSearch records a search in the given mode ("text" or "note").
func (m *Metrics) ObserveSearch(mode string, d time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.searches.WithLabelValues(mode, status).Inc()
	m.searchLatency.WithLabelValues(mode).Observe(d.Seconds())
}

// GraphMutation counts a committed write by operation name.
func (m *Metrics) GraphMutation(op string) {
	if m == nil {
		return
	}
	m.graphMutations.WithLabelValues(op).Inc()
}

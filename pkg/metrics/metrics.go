// Package metrics provides Prometheus metrics for chatgate.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for chatgate. It owns its registry so
// tests can create as many instances as they like.
type Metrics struct {
	registry *prometheus.Registry

	// Gateway metrics
	OutcomesTotal    *prometheus.CounterVec
	UpstreamDuration *prometheus.HistogramVec
	CacheEntries     prometheus.GaugeFunc

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates a Metrics instance. cacheSize, when non-nil, backs the cache
// entries gauge.
func New(cacheSize func() int) *Metrics {
	if cacheSize == nil {
		cacheSize = func() int { return 0 }
	}
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		OutcomesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatgate",
			Name:      "outcomes_total",
			Help:      "Total number of chat requests by outcome.",
		}, []string{"outcome"}),
		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "chatgate",
			Name:      "upstream_duration_seconds",
			Help:      "Upstream completion latency in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 11), // 50ms to ~51s
		}, []string{"result"}),
		CacheEntries: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "chatgate",
			Name:      "cache_entries",
			Help:      "Entries currently held by the response cache.",
		}, func() float64 { return float64(cacheSize()) }),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatgate",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "chatgate",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.OutcomesTotal,
		m.UpstreamDuration,
		m.CacheEntries,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)

	return m
}

// Handler returns the Prometheus HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveOutcome counts one gateway outcome.
func (m *Metrics) ObserveOutcome(outcome string) {
	m.OutcomesTotal.WithLabelValues(outcome).Inc()
}

// ObserveUpstream records one upstream call; result is "ok" or an error kind.
func (m *Metrics) ObserveUpstream(result string, d time.Duration) {
	m.UpstreamDuration.WithLabelValues(result).Observe(d.Seconds())
}

// RecordHTTPRequest records an HTTP request metric.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration float64) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

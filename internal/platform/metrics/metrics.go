// Package metrics registers and serves the gateway's Prometheus
// instrumentation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the gateway's Prometheus collectors.
type Metrics struct {
	registry         *prometheus.Registry
	requestsTotal    prometheus.Counter
	errorsTotal      prometheus.Counter
	resolutionsTotal *prometheus.CounterVec
	cacheHitsTotal   prometheus.Counter
	cacheMissesTotal prometheus.Counter
	relayBytesTotal  prometheus.Counter
}

// New creates and registers the gateway's metrics on a private
// registry, keeping the default Go runtime collectors out of scrapes.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gateway_requests_total",
		Help: "Total number of HTTP requests received",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gateway_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})
	resolutionsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_resolutions_total",
		Help: "Resolution attempts by winning strategy and outcome",
	}, []string{"strategy", "outcome"})
	cacheHitsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gateway_resolution_cache_hits_total",
		Help: "Resolutions served from the cache",
	})
	cacheMissesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gateway_resolution_cache_misses_total",
		Help: "Resolutions that had to run the strategy chain",
	})
	relayBytesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gateway_relay_bytes_total",
		Help: "Media bytes copied through the stream relay",
	})

	registry.MustRegister(
		requestsTotal,
		errorsTotal,
		resolutionsTotal,
		cacheHitsTotal,
		cacheMissesTotal,
		relayBytesTotal,
	)

	return &Metrics{
		registry:         registry,
		requestsTotal:    requestsTotal,
		errorsTotal:      errorsTotal,
		resolutionsTotal: resolutionsTotal,
		cacheHitsTotal:   cacheHitsTotal,
		cacheMissesTotal: cacheMissesTotal,
		relayBytesTotal:  relayBytesTotal,
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() { m.requestsTotal.Inc() }

// IncErrors increments the error response counter.
func (m *Metrics) IncErrors() { m.errorsTotal.Inc() }

// ObserveResolution records one resolution attempt. strategy is the
// winning strategy name, or the empty string on failure; outcome is
// "ok" or "error".
func (m *Metrics) ObserveResolution(strategy, outcome string) {
	if strategy == "" {
		strategy = "none"
	}
	m.resolutionsTotal.WithLabelValues(strategy, outcome).Inc()
}

// IncCacheHit increments the cache hit counter.
func (m *Metrics) IncCacheHit() { m.cacheHitsTotal.Inc() }

// IncCacheMiss increments the cache miss counter.
func (m *Metrics) IncCacheMiss() { m.cacheMissesTotal.Inc() }

// AddRelayBytes accounts for n media bytes streamed to a client.
func (m *Metrics) AddRelayBytes(n int64) {
	if n > 0 {
		m.relayBytesTotal.Add(float64(n))
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

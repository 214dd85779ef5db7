// Package metrics exposes the process's Prometheus metrics registry,
// covering HTTP request handling, provider calls, cache performance, and
// news ingestion.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every metric this process exports.
type Registry struct {
	RequestDuration *prometheus.HistogramVec
	RequestsTotal   *prometheus.CounterVec

	ProviderRequests *prometheus.CounterVec
	ProviderErrors   *prometheus.CounterVec
	ProviderLatency  *prometheus.HistogramVec

	CircuitState *prometheus.GaugeVec

	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec

	BatchScanDuration *prometheus.HistogramVec
	BatchScanSize     *prometheus.HistogramVec

	NewsItemsIngested *prometheus.CounterVec
	NewsDuplicates    prometheus.Counter

	WebSocketConnections *prometheus.GaugeVec
}

// New builds and registers every metric against reg. Passing
// prometheus.NewRegistry() keeps tests isolated from the global default
// registry; the production composition root (cmd/aggregator) also passes
// its own prometheus.NewRegistry().
func New(reg prometheus.Registerer) *Registry {
	r := &Registry{
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "aggregator_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds by route and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),

		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aggregator_http_requests_total",
			Help: "Total HTTP requests by route and status",
		}, []string{"route", "method", "status"}),

		ProviderRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aggregator_provider_requests_total",
			Help: "Total upstream provider requests by provider and result",
		}, []string{"provider", "result"}),

		ProviderErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aggregator_provider_errors_total",
			Help: "Total upstream provider errors by provider and error kind",
		}, []string{"provider", "kind"}),

		ProviderLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "aggregator_provider_latency_seconds",
			Help:    "Upstream provider call latency in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"provider"}),

		CircuitState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "aggregator_circuit_state",
			Help: "Circuit breaker state by provider (0=closed, 1=half_open, 2=open)",
		}, []string{"provider"}),

		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aggregator_cache_hits_total",
			Help: "Total cache hits by cache name",
		}, []string{"cache"}),

		CacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aggregator_cache_misses_total",
			Help: "Total cache misses by cache name",
		}, []string{"cache"}),

		BatchScanDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "aggregator_batch_scan_duration_seconds",
			Help:    "Batch market scan duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"market"}),

		BatchScanSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "aggregator_batch_scan_symbols",
			Help:    "Number of symbols requested per batch market scan",
			Buckets: []float64{1, 5, 15, 50, 100, 250, 500},
		}, []string{"market"}),

		NewsItemsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aggregator_news_items_ingested_total",
			Help: "Total news items ingested by outcome (inserted, updated, skipped)",
		}, []string{"outcome"}),

		NewsDuplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aggregator_news_duplicates_total",
			Help: "Total duplicate URLs merged during news ingestion",
		}),

		WebSocketConnections: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "aggregator_websocket_connections",
			Help: "Currently open WebSocket connections by stream",
		}, []string{"stream"}),
	}

	reg.MustRegister(
		r.RequestDuration, r.RequestsTotal,
		r.ProviderRequests, r.ProviderErrors, r.ProviderLatency,
		r.CircuitState,
		r.CacheHits, r.CacheMisses,
		r.BatchScanDuration, r.BatchScanSize,
		r.NewsItemsIngested, r.NewsDuplicates,
		r.WebSocketConnections,
	)
	return r
}

// ObserveRequest records one completed HTTP request.
func (r *Registry) ObserveRequest(route, method, status string, d time.Duration) {
	r.RequestDuration.WithLabelValues(route, method, status).Observe(d.Seconds())
	r.RequestsTotal.WithLabelValues(route, method, status).Inc()
}

// ObserveProviderCall records one upstream provider call outcome.
func (r *Registry) ObserveProviderCall(provider, result string, d time.Duration) {
	r.ProviderRequests.WithLabelValues(provider, result).Inc()
	r.ProviderLatency.WithLabelValues(provider).Observe(d.Seconds())
}

// RecordProviderError records a classified provider error.
func (r *Registry) RecordProviderError(provider, kind string) {
	r.ProviderErrors.WithLabelValues(provider, kind).Inc()
}

// SetCircuitState publishes a breaker's current state as a gauge value.
func (r *Registry) SetCircuitState(provider string, value float64) {
	r.CircuitState.WithLabelValues(provider).Set(value)
}

// RecordCacheHit/RecordCacheMiss track per-cache hit ratio inputs.
func (r *Registry) RecordCacheHit(cache string)  { r.CacheHits.WithLabelValues(cache).Inc() }
func (r *Registry) RecordCacheMiss(cache string) { r.CacheMisses.WithLabelValues(cache).Inc() }

// ObserveBatchScan records one batch market scan's duration and symbol count.
func (r *Registry) ObserveBatchScan(market string, symbolCount int, d time.Duration) {
	r.BatchScanDuration.WithLabelValues(market).Observe(d.Seconds())
	r.BatchScanSize.WithLabelValues(market).Observe(float64(symbolCount))
}

// RecordNewsIngest tallies inserted/updated/skipped outcomes and duplicates
// merged during one ingestion batch.
func (r *Registry) RecordNewsIngest(inserted, updated, skipped, duplicates int) {
	r.NewsItemsIngested.WithLabelValues("inserted").Add(float64(inserted))
	r.NewsItemsIngested.WithLabelValues("updated").Add(float64(updated))
	r.NewsItemsIngested.WithLabelValues("skipped").Add(float64(skipped))
	r.NewsDuplicates.Add(float64(duplicates))
}

// SetWebSocketConnections publishes the current connection count for stream.
func (r *Registry) SetWebSocketConnections(stream string, count int) {
	r.WebSocketConnections.WithLabelValues(stream).Set(float64(count))
}

// Handler returns the Prometheus text-exposition HTTP handler.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// CircuitStateClosed/HalfOpen/Open are the gauge values SetCircuitState expects.
const (
	CircuitStateClosed   = 0.0
	CircuitStateHalfOpen = 1.0
	CircuitStateOpen     = 2.0
)

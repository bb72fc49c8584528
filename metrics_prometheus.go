package authgate

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics implements MetricsProvider using Prometheus client library
type PrometheusMetrics struct {
	namespace string
	registry  *prometheus.Registry

	// Authentication metrics
	authAttempts *prometheus.CounterVec
	authLatency  *prometheus.HistogramVec
	authFailures *prometheus.CounterVec

	// Cache metrics
	cacheHits     prometheus.Counter
	cacheMisses   prometheus.Counter
	warmUps       prometheus.Counter
	warmUpLatency prometheus.Histogram
	invalidations *prometheus.CounterVec

	// Resource metrics
	activeKeys prometheus.Gauge
	busEvents  *prometheus.CounterVec
}

// NewPrometheusMetrics creates a new PrometheusMetrics instance with the given namespace.
// If registry is nil, the default registry will be used.
func NewPrometheusMetrics(namespace string, registry *prometheus.Registry) *PrometheusMetrics {
	if namespace == "" {
		namespace = "authgate"
	}

	if registry == nil {
		registry = prometheus.DefaultRegisterer.(*prometheus.Registry)
	}

	factory := promauto.With(registry)

	p := &PrometheusMetrics{
		namespace: namespace,
		registry:  registry,
	}

	p.authAttempts = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_attempts_total",
			Help:      "Total number of authentication attempts",
		},
		[]string{"mode", "outcome"},
	)

	p.authLatency = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "auth_duration_seconds",
			Help:      "Authentication latency in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"mode", "outcome"},
	)

	p.authFailures = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_failures_total",
			Help:      "Total number of authentication failures by category",
		},
		[]string{"category"},
	)

	p.cacheHits = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of key cache hits",
		},
	)

	p.cacheMisses = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of key cache misses",
		},
	)

	p.warmUps = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_warmups_total",
			Help:      "Total number of completed cache warm-ups",
		},
	)

	p.warmUpLatency = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cache_warmup_duration_seconds",
			Help:      "Cache warm-up latency in seconds",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	p.invalidations = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_invalidations_total",
			Help:      "Total number of cache invalidations by source",
		},
		[]string{"source"},
	)

	p.activeKeys = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_keys",
			Help:      "Current number of active API keys in the in-memory index",
		},
	)

	p.busEvents = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bus_events_total",
			Help:      "Total number of bus lifecycle events by type",
		},
		[]string{"event"},
	)

	return p
}

// RecordAuthAttempt records an authentication attempt with outcome and latency
func (p *PrometheusMetrics) RecordAuthAttempt(ctx context.Context, mode string, success bool, latency time.Duration) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	if mode == "" {
		mode = AUTH_MODE_NONE
	}

	p.authAttempts.WithLabelValues(mode, outcome).Inc()
	p.authLatency.WithLabelValues(mode, outcome).Observe(latency.Seconds())
}

// RecordAuthFailure records an authentication failure by category
func (p *PrometheusMetrics) RecordAuthFailure(ctx context.Context, category string) {
	if category == "" {
		category = "unknown"
	}
	p.authFailures.WithLabelValues(category).Inc()
}

// RecordCacheHit records a key-cache hit
func (p *PrometheusMetrics) RecordCacheHit(ctx context.Context) {
	p.cacheHits.Inc()
}

// RecordCacheMiss records a key-cache miss
func (p *PrometheusMetrics) RecordCacheMiss(ctx context.Context) {
	p.cacheMisses.Inc()
}

// RecordWarmUp records a completed warm-up with its duration
func (p *PrometheusMetrics) RecordWarmUp(ctx context.Context, keyCount int, duration time.Duration) {
	p.warmUps.Inc()
	p.warmUpLatency.Observe(duration.Seconds())
	p.activeKeys.Set(float64(keyCount))
}

// RecordInvalidation records a cache invalidation by source
func (p *PrometheusMetrics) RecordInvalidation(ctx context.Context, source string) {
	if source == "" {
		source = "unknown"
	}
	p.invalidations.WithLabelValues(source).Inc()
}

// RecordActiveKeys records the current count of active API keys
func (p *PrometheusMetrics) RecordActiveKeys(ctx context.Context, count int64) {
	p.activeKeys.Set(float64(count))
}

// RecordBusEvent records a bus lifecycle event
func (p *PrometheusMetrics) RecordBusEvent(ctx context.Context, event string) {
	p.busEvents.WithLabelValues(event).Inc()
}

// Handler returns an HTTP handler for the /metrics endpoint
func (p *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the underlying Prometheus registry
func (p *PrometheusMetrics) Registry() *prometheus.Registry {
	return p.registry
}

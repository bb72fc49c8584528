package authgate

import (
	"context"
	"time"
)

// MetricsProvider defines the interface for recording operational metrics.
// Implementations can integrate with Prometheus, OpenTelemetry, or custom backends.
type MetricsProvider interface {
	// RecordAuthAttempt records an authentication attempt with its mode
	// (token/apikey/none), outcome and latency
	RecordAuthAttempt(ctx context.Context, mode string, success bool, latency time.Duration)

	// RecordAuthFailure records an authentication failure by category
	// (token_expired, key_revoked, ...)
	RecordAuthFailure(ctx context.Context, category string)

	// RecordCacheHit records a key-cache hit on the request hot path
	RecordCacheHit(ctx context.Context)

	// RecordCacheMiss records a key-cache miss (store fallback taken)
	RecordCacheMiss(ctx context.Context)

	// RecordWarmUp records a completed cache warm-up/re-warm
	RecordWarmUp(ctx context.Context, keyCount int, duration time.Duration)

	// RecordInvalidation records a cache invalidation by source (local/broadcast)
	RecordInvalidation(ctx context.Context, source string)

	// RecordActiveKeys records the current size of the in-memory index
	RecordActiveKeys(ctx context.Context, count int64)

	// RecordBusEvent records a bus lifecycle event by name
	RecordBusEvent(ctx context.Context, event string)
}

// Invalidation source labels
const (
	INVALIDATION_SOURCE_LOCAL     = "local"
	INVALIDATION_SOURCE_BROADCAST = "broadcast"
)

// NoOpMetricsProvider discards all metrics. Used when no provider is injected
// so that components never need nil checks on the hot path.
type NoOpMetricsProvider struct{}

func (n *NoOpMetricsProvider) RecordAuthAttempt(ctx context.Context, mode string, success bool, latency time.Duration) {
}
func (n *NoOpMetricsProvider) RecordAuthFailure(ctx context.Context, category string)  {}
func (n *NoOpMetricsProvider) RecordCacheHit(ctx context.Context)                      {}
func (n *NoOpMetricsProvider) RecordCacheMiss(ctx context.Context)                     {}
func (n *NoOpMetricsProvider) RecordWarmUp(ctx context.Context, keyCount int, duration time.Duration) {
}
func (n *NoOpMetricsProvider) RecordInvalidation(ctx context.Context, source string) {}
func (n *NoOpMetricsProvider) RecordActiveKeys(ctx context.Context, count int64)     {}
func (n *NoOpMetricsProvider) RecordBusEvent(ctx context.Context, event string)      {}

// ensureMetrics returns a usable provider, substituting the no-op when nil.
func ensureMetrics(metrics MetricsProvider) MetricsProvider {
	if metrics == nil {
		return &NoOpMetricsProvider{}
	}
	return metrics
}

// Package authgate provides dual-mode request authentication (signed session
// tokens and revocable API keys) with a warm in-memory key cache for Go services.
//
// This file defines the rate limiter interface for different implementations.
package authgate

import (
	"context"
)

// RateLimitChecker defines the interface for rate limiting implementations.
// Both the bus-backed RateLimiter and the stub satisfy it.
type RateLimitChecker interface {
	// Allow checks whether a request by the given principal on the given path
	// is within limits.
	Allow(ctx context.Context, path string, principal *Principal) (bool, error)
}

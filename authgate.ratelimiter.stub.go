// Package authgate provides dual-mode request authentication (signed session
// tokens and revocable API keys) with a warm in-memory key cache for Go services.
//
// This file contains a STUB rate limiter that always allows requests.
// Use it when rate limiting is handled by infrastructure (API gateway, Nginx).
package authgate

import (
	"context"

	"go.uber.org/zap"
)

// StubRateLimiter is a placeholder rate limiter that allows every request. It
// logs a single warning at construction so an accidental production deployment
// without limits is at least visible.
type StubRateLimiter struct {
	logger *zap.Logger
}

// NewStubRateLimiter creates a new stub rate limiter
func NewStubRateLimiter(logger *zap.Logger) *StubRateLimiter {
	if logger == nil {
		logger, _ = zap.NewProduction() // Fallback to default logger
	}
	stub := &StubRateLimiter{
		logger: logger.Named(CLASS_RATE_LIMITER),
	}

	stub.logger.Warn("Stub rate limiter active - all requests allowed; use infrastructure-level limits or configure RateLimitRules")

	return stub
}

// Allow always returns true (allows all requests)
func (s *StubRateLimiter) Allow(ctx context.Context, path string, principal *Principal) (bool, error) {
	s.logger.Debug("Rate limiter stub: allowing request",
		zap.String("path", path))

	return true, nil
}

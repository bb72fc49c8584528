// Package authgate provides dual-mode request authentication (signed session
// tokens and revocable API keys) with a warm in-memory key cache for Go services.
//
// This file contains the optional fixed-window rate limiter backed by the
// shared bus. Disabled unless rules are configured.
package authgate

import (
	"context"
	"regexp"
	"time"

	"go.uber.org/zap"
)

// RateLimitTarget selects which part of the authenticated principal a rule
// counts against.
type RateLimitTarget string

const (
	RateLimitTargetKeyID   RateLimitTarget = "key_id"
	RateLimitTargetSubject RateLimitTarget = "subject"
	RateLimitTargetRole    RateLimitTarget = "role"
)

// RateLimitRule limits requests matching a path pattern, counted per target
// within a fixed window.
type RateLimitRule struct {
	// Path is a regular expression matched against the request path.
	Path string

	// Limit is the maximum number of requests per window.
	Limit int

	// Window is the fixed counting window.
	Window time.Duration

	// ApplyTo lists the principal dimensions the rule counts against.
	ApplyTo []RateLimitTarget

	pathRegex *regexp.Regexp
}

// RateLimiter enforces fixed-window limits using shared counters on the bus,
// so limits hold across all instances sharing the bus. When the bus is down
// the limiter degrades to allowing requests: availability over strictness,
// since authentication itself has already passed.
type RateLimiter struct {
	bus    *BusConnection
	rules  []RateLimitRule
	logger *zap.Logger
}

// NewRateLimiter creates a limiter over the shared bus. Invalid path patterns
// are rejected here rather than at request time.
func NewRateLimiter(bus *BusConnection, rules []RateLimitRule, logger *zap.Logger) (*RateLimiter, error) {
	if bus == nil {
		return nil, NewValidationError("bus", "cannot be nil")
	}
	if logger == nil {
		logger, _ = zap.NewProduction() // Fallback to default logger
	}

	for i := range rules {
		rx, err := regexp.Compile(rules[i].Path)
		if err != nil {
			return nil, NewValidationError("rule_path", err.Error())
		}
		rules[i].pathRegex = rx
	}

	return &RateLimiter{
		bus:    bus,
		rules:  rules,
		logger: logger.Named(CLASS_RATE_LIMITER),
	}, nil
}

// Allow checks every rule matching the request path against the principal.
// Returns false only when a counter is confirmed over its limit.
func (r *RateLimiter) Allow(ctx context.Context, path string, principal *Principal) (bool, error) {
	if principal == nil {
		return true, nil
	}

	for _, rule := range r.rules {
		if !rule.pathRegex.MatchString(path) {
			continue
		}

		for _, target := range rule.ApplyTo {
			key := counterKey(principal, target)
			if key == "" {
				continue
			}

			count, err := r.bus.Increment(ctx, key, rule.Window)
			if err != nil {
				// Bus outage: allow rather than reject authenticated
				// traffic on infrastructure failure.
				r.logger.Warn("Rate limit check unavailable - allowing request",
					zap.String("key", key),
					zap.Error(err))
				continue
			}
			if count > int64(rule.Limit) {
				r.logger.Info("Rate limit exceeded",
					zap.String("key", key),
					zap.Int64("count", count),
					zap.Int("limit", rule.Limit))
				return false, nil
			}
		}
	}

	return true, nil
}

// counterKey derives the shared counter key for a principal dimension.
func counterKey(principal *Principal, target RateLimitTarget) string {
	switch target {
	case RateLimitTargetKeyID:
		if principal.Key != nil {
			return string(target) + BUS_KEY_SEPARATOR + formatKeyID(principal.Key.ID)
		}
	case RateLimitTargetSubject:
		if principal.Session != nil {
			return string(target) + BUS_KEY_SEPARATOR + principal.Session.Subject
		}
	case RateLimitTargetRole:
		if principal.Session != nil {
			return string(target) + BUS_KEY_SEPARATOR + principal.Session.Role
		}
	}
	return ""
}

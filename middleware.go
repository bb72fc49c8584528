// Package authgate provides dual-mode request authentication (signed session
// tokens and revocable API keys) with a warm in-memory key cache for Go services.
//
// This file contains the HTTP middleware mounting the gateway on Fiber and
// net/http (gorilla/mux compatible) routers.
package authgate

import (
	"context"
	"encoding/json"
	"net/http"
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// MiddlewareConfig configures the request middleware.
type MiddlewareConfig struct {
	// APIKeyHeader is the header carrying the API key. Defaults to X-API-Key.
	APIKeyHeader string

	// SkipRoutePatterns lists path regular expressions that bypass
	// authentication entirely (health checks, metrics).
	SkipRoutePatterns []string
}

// Middleware authenticates inbound requests through the gateway and attaches
// the resulting principal to the request context. Every failure is answered
// with the same 401 body regardless of cause.
type Middleware struct {
	cfg     MiddlewareConfig
	gateway *AuthGateway
	limiter RateLimitChecker
	logger  *zap.Logger

	skipPatterns []*regexp.Regexp
}

// NewMiddleware creates the middleware. limiter may be nil; rate limiting is
// disabled then.
func NewMiddleware(cfg MiddlewareConfig, gateway *AuthGateway, limiter RateLimitChecker, logger *zap.Logger) (*Middleware, error) {
	if gateway == nil {
		return nil, NewValidationError("gateway", "cannot be nil")
	}
	if logger == nil {
		logger, _ = zap.NewProduction() // Fallback to default logger
	}
	if cfg.APIKeyHeader == "" {
		cfg.APIKeyHeader = DEFAULT_HEADER_API_KEY
	}

	skipPatterns := make([]*regexp.Regexp, 0, len(cfg.SkipRoutePatterns))
	for _, pattern := range cfg.SkipRoutePatterns {
		rx, err := regexp.Compile(pattern)
		if err != nil {
			return nil, NewValidationError("skip_route_pattern", err.Error())
		}
		skipPatterns = append(skipPatterns, rx)
	}

	return &Middleware{
		cfg:          cfg,
		gateway:      gateway,
		limiter:      limiter,
		logger:       logger,
		skipPatterns: skipPatterns,
	}, nil
}

// extractCredentials pulls the bearer token and API key from request headers.
// A malformed Authorization header yields an empty bearer token, which still
// wins precedence only when non-empty.
func (m *Middleware) extractCredentials(framework HTTPFramework, r interface{}) Credentials {
	creds := Credentials{
		APIKey: framework.GetRequestHeader(r, m.cfg.APIKeyHeader),
	}

	authHeader := framework.GetRequestHeader(r, HEADER_AUTHORIZATION)
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], BEARER_SCHEME) {
			creds.BearerToken = strings.TrimSpace(parts[1])
		}
	}

	return creds
}

func (m *Middleware) shouldSkip(path string) bool {
	for _, rx := range m.skipPatterns {
		if rx.MatchString(path) {
			return true
		}
	}
	return false
}

// authenticate runs the shared decision flow for both frameworks. Returns the
// principal or nil after the rejection has already been written.
func (m *Middleware) authenticate(framework HTTPFramework, r interface{}, w interface{}) *Principal {
	ctx := framework.GetRequestContext(r)
	creds := m.extractCredentials(framework, r)

	principal, err := m.gateway.Authenticate(ctx, creds)
	if err != nil {
		m.writeUnauthorized(framework, w)
		return nil
	}

	if m.limiter != nil {
		allowed, err := m.limiter.Allow(ctx, framework.GetRequestPath(r), principal)
		if err == nil && !allowed {
			m.writeRateLimited(framework, w)
			return nil
		}
	}

	return principal
}

func (m *Middleware) writeUnauthorized(framework HTTPFramework, w interface{}) {
	body, _ := json.Marshal(unauthorizedResponse())
	framework.SetResponseHeader(w, HEADER_CONTENT_TYPE, CONTENT_TYPE_JSON)
	_ = framework.WriteResponse(w, http.StatusUnauthorized, body)
}

func (m *Middleware) writeRateLimited(framework HTTPFramework, w interface{}) {
	body, _ := json.Marshal(NewErrorResponse(ErrRateLimitExceeded))
	framework.SetResponseHeader(w, HEADER_CONTENT_TYPE, CONTENT_TYPE_JSON)
	_ = framework.WriteResponse(w, http.StatusTooManyRequests, body)
}

// FiberMiddleware returns a Fiber handler enforcing authentication. The
// principal is stored both in Fiber locals and the request user context.
func (m *Middleware) FiberMiddleware() fiber.Handler {
	framework := &FiberFramework{}

	return func(c *fiber.Ctx) error {
		if m.shouldSkip(c.Path()) {
			return c.Next()
		}

		principal := m.authenticate(framework, c, c)
		if principal == nil {
			return nil
		}

		c.Locals(LOCALS_KEY_PRINCIPAL, principal)
		framework.SetContextValue(c, contextKeyPrincipal, principal)
		return c.Next()
	}
}

// HTTPMiddleware returns a net/http middleware enforcing authentication,
// suitable for gorilla/mux Router.Use. The principal is stored in the request
// context.
func (m *Middleware) HTTPMiddleware(next http.Handler) http.Handler {
	framework := &GorillaMuxFramework{}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.shouldSkip(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		principal := m.authenticate(framework, r, w)
		if principal == nil {
			return
		}

		next.ServeHTTP(w, r.WithContext(
			contextWithPrincipal(r.Context(), principal)))
	})
}

// PrincipalFromFiber returns the authenticated principal attached by
// FiberMiddleware, or nil when the request was not authenticated.
func PrincipalFromFiber(c *fiber.Ctx) *Principal {
	principal, ok := c.Locals(LOCALS_KEY_PRINCIPAL).(*Principal)
	if !ok {
		return nil
	}
	return principal
}

// contextWithPrincipal attaches a principal under the package's private
// context key.
func contextWithPrincipal(ctx context.Context, principal *Principal) context.Context {
	return context.WithValue(ctx, contextKeyPrincipal, principal)
}

// PrincipalFromContext returns the authenticated principal attached by
// HTTPMiddleware, or nil when the request was not authenticated.
func PrincipalFromContext(ctx context.Context) *Principal {
	principal, ok := ctx.Value(contextKeyPrincipal).(*Principal)
	if !ok {
		return nil
	}
	return principal
}

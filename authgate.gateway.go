// Package authgate provides dual-mode request authentication (signed session
// tokens and revocable API keys) with a warm in-memory key cache for Go services.
//
// This file contains the auth gateway: the single decision point that turns a
// request's credentials into an authenticated principal or a uniform rejection.
package authgate

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
)

// tokenCacheTTL bounds how long a verified token result may be served without
// re-verification. Expiry is still re-checked on every cache hit, so this only
// caps how long the cache may hold the parsed claims.
const tokenCacheTTL = time.Minute

// GatewayConfig configures the auth gateway.
type GatewayConfig struct {
	// SigningSecret is the HMAC secret session tokens are verified against.
	SigningSecret string

	// Algorithm restricts accepted token signing algorithms. Defaults to HS256.
	Algorithm string

	// TokenCacheSize bounds the verified-token LRU. Defaults to
	// DEFAULT_TOKEN_CACHE_SIZE.
	TokenCacheSize int

	// TokenExpiry is the lifetime applied by IssueToken. Defaults to
	// DEFAULT_TOKEN_EXPIRY.
	TokenExpiry time.Duration
}

// AuthGateway authenticates requests carrying either a bearer session token or
// an API key. A bearer token always takes precedence over an API key when both
// are present; the key is then ignored entirely, even if the token is invalid.
//
// Every failure, whatever its cause, surfaces as ErrUnauthorized. The specific
// category is logged and counted server-side only, so the rejection never
// tells a caller which part of their credential was wrong.
type AuthGateway struct {
	cfg     GatewayConfig
	cache   *KeyCache
	logger  *zap.Logger
	metrics MetricsProvider
	audit   *AuditLogger

	signingSecret []byte
	tokenCache    *expirable.LRU[string, SessionPrincipal]
}

// NewAuthGateway creates the gateway over a warmed key cache.
func NewAuthGateway(cfg GatewayConfig, cache *KeyCache, logger *zap.Logger, metrics MetricsProvider, audit *AuditLogger) (*AuthGateway, error) {
	if cache == nil {
		return nil, ErrCacheRequired
	}
	if len(cfg.SigningSecret) < MIN_SIGNING_SECRET_LENGTH {
		return nil, ErrSigningSecretRequired
	}
	if logger == nil {
		logger, _ = zap.NewProduction() // Fallback to default logger
	}
	if cfg.Algorithm == "" {
		cfg.Algorithm = DEFAULT_TOKEN_ALGORITHM
	}
	if cfg.TokenCacheSize <= 0 {
		cfg.TokenCacheSize = DEFAULT_TOKEN_CACHE_SIZE
	}
	if cfg.TokenExpiry <= 0 {
		cfg.TokenExpiry = DEFAULT_TOKEN_EXPIRY
	}

	return &AuthGateway{
		cfg:           cfg,
		cache:         cache,
		logger:        logger.Named(CLASS_AUTH_GATEWAY),
		metrics:       ensureMetrics(metrics),
		audit:         audit,
		signingSecret: []byte(cfg.SigningSecret),
		tokenCache:    expirable.NewLRU[string, SessionPrincipal](cfg.TokenCacheSize, nil, tokenCacheTTL),
	}, nil
}

// Authenticate resolves the request credentials to a principal. Bearer token
// first; the API key path is only taken when no bearer token is present at all.
func (g *AuthGateway) Authenticate(ctx context.Context, creds Credentials) (*Principal, error) {
	start := time.Now()

	if creds.BearerToken != "" {
		return g.authenticateToken(ctx, creds.BearerToken, start)
	}
	if creds.APIKey != "" {
		return g.authenticateKey(ctx, creds.APIKey, start)
	}

	return nil, g.reject(ctx, AUTH_MODE_NONE, FAILURE_NO_CREDENTIAL, 0, start)
}

func (g *AuthGateway) authenticateToken(ctx context.Context, tokenString string, start time.Time) (*Principal, error) {
	if session, ok := g.tokenCache.Get(tokenString); ok {
		if time.Now().After(session.ExpiresAt) {
			g.tokenCache.Remove(tokenString)
			return nil, g.reject(ctx, AUTH_MODE_TOKEN, FAILURE_TOKEN_EXPIRED, 0, start)
		}
		return g.acceptToken(ctx, session, start)
	}

	session, category := g.verifyToken(tokenString)
	if category != "" {
		return nil, g.reject(ctx, AUTH_MODE_TOKEN, category, 0, start)
	}

	g.tokenCache.Add(tokenString, *session)
	return g.acceptToken(ctx, *session, start)
}

// verifyToken parses and verifies a session token. Returns the session on
// success, or the failure category on any verification problem.
func (g *AuthGateway) verifyToken(tokenString string) (*SessionPrincipal, string) {
	// A token without an expiry claim would verify forever; sessions are
	// short-lived by contract, so exp is mandatory.
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		return g.signingSecret, nil
	}, jwt.WithValidMethods([]string{g.cfg.Algorithm}), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, FAILURE_TOKEN_EXPIRED
		}
		return nil, FAILURE_TOKEN_MALFORMED
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, FAILURE_TOKEN_MALFORMED
	}

	// All three identity claims are mandatory; a structurally valid token
	// missing any of them is rejected.
	subject, _ := claims[CLAIM_SUBJECT].(string)
	email, _ := claims[CLAIM_EMAIL].(string)
	role, _ := claims[CLAIM_ROLE].(string)
	if subject == "" || email == "" || role == "" {
		return nil, FAILURE_TOKEN_MALFORMED
	}

	session := &SessionPrincipal{
		Subject: subject,
		Email:   email,
		Role:    role,
	}
	if issuedAt, err := claims.GetIssuedAt(); err == nil && issuedAt != nil {
		session.IssuedAt = issuedAt.Time
	}
	expiresAt, err := claims.GetExpirationTime()
	if err != nil || expiresAt == nil {
		return nil, FAILURE_TOKEN_MALFORMED
	}
	session.ExpiresAt = expiresAt.Time

	return session, ""
}

func (g *AuthGateway) acceptToken(ctx context.Context, session SessionPrincipal, start time.Time) (*Principal, error) {
	g.metrics.RecordAuthAttempt(ctx, AUTH_MODE_TOKEN, true, time.Since(start))
	g.audit.LogAuthAttempt(ctx, &AuthAttemptEvent{
		BaseAuditEvent: NewBaseAuditEvent(EventTypeAuthSuccess, OutcomeSuccess),
		Mode:           AUTH_MODE_TOKEN,
		Subject:        session.Subject,
		LatencyMS:      time.Since(start).Milliseconds(),
	})

	return &Principal{
		Kind:    PrincipalKindToken,
		Session: &session,
	}, nil
}

func (g *AuthGateway) authenticateKey(ctx context.Context, presentedSecret string, start time.Time) (*Principal, error) {
	entry, err := g.cache.Lookup(ctx, presentedSecret)
	if err != nil {
		// Lookup folds every negative outcome (unknown, revoked, store
		// failure) into a miss; the distinction is already logged by the
		// cache, so the gateway only sees "no active key".
		return nil, g.reject(ctx, AUTH_MODE_APIKEY, FAILURE_KEY_UNKNOWN, 0, start)
	}

	g.metrics.RecordAuthAttempt(ctx, AUTH_MODE_APIKEY, true, time.Since(start))
	g.audit.LogAuthAttempt(ctx, &AuthAttemptEvent{
		BaseAuditEvent: NewBaseAuditEvent(EventTypeAuthSuccess, OutcomeSuccess),
		Mode:           AUTH_MODE_APIKEY,
		KeyID:          entry.ID,
		LatencyMS:      time.Since(start).Milliseconds(),
	})

	return &Principal{
		Kind: PrincipalKindAPIKey,
		Key:  entry,
	}, nil
}

// reject records the failure server-side and returns the uniform rejection.
func (g *AuthGateway) reject(ctx context.Context, mode string, category string, keyID int64, start time.Time) error {
	g.metrics.RecordAuthAttempt(ctx, mode, false, time.Since(start))
	g.metrics.RecordAuthFailure(ctx, category)
	g.logger.Debug("Authentication rejected",
		zap.String("mode", mode),
		zap.String(LOG_FIELD_REASON, category))
	g.audit.LogAuthAttempt(ctx, &AuthAttemptEvent{
		BaseAuditEvent:  NewBaseAuditEvent(EventTypeAuthFailure, OutcomeFailure),
		Mode:            mode,
		FailureCategory: category,
		KeyID:           keyID,
		LatencyMS:       time.Since(start).Milliseconds(),
	})

	return ErrUnauthorized
}

// IssueToken signs a session token for the given identity using the gateway's
// signing secret and configured expiry. Mostly a convenience for services that
// both mint and verify their own sessions.
func (g *AuthGateway) IssueToken(subject string, email string, role string) (string, error) {
	if subject == "" {
		return "", NewValidationError("subject", "cannot be empty")
	}
	if email == "" {
		return "", NewValidationError("email", "cannot be empty")
	}
	if role == "" {
		return "", NewValidationError("role", "cannot be empty")
	}

	now := nowUTC()
	claims := jwt.MapClaims{
		CLAIM_SUBJECT: subject,
		CLAIM_EMAIL:   email,
		CLAIM_ROLE:    role,
		"iat":         now.Unix(),
		"exp":         now.Add(g.cfg.TokenExpiry).Unix(),
	}

	token := jwt.NewWithClaims(jwt.GetSigningMethod(g.cfg.Algorithm), claims)
	signed, err := token.SignedString(g.signingSecret)
	if err != nil {
		return "", NewInternalError("token_signing", err)
	}
	return signed, nil
}

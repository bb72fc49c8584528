// Package authgate provides dual-mode request authentication (signed session
// tokens and revocable API keys) with a warm in-memory key cache for Go services.
//
// This file contains the top-level manager wiring vault, bus, cache, gateway
// and admin service together for the common embedding case.
package authgate

import (
	"context"

	"go.uber.org/zap"
)

// AuthGate is the assembled subsystem. Construct with New, then call Startup
// before serving protected requests and Shutdown on process termination.
// Components remain individually accessible for callers that need to compose
// them differently.
type AuthGate struct {
	cfg     *Config
	logger  *zap.Logger
	metrics MetricsProvider

	Vault      *SecretVault
	Bus        *BusConnection
	Store      KeyStore
	Cache      *KeyCache
	Gateway    *AuthGateway
	Admin      *KeyAdminService
	Limiter    *RateLimiter
	Middleware *Middleware
	Audit      *AuditLogger
}

// New assembles the subsystem from a validated config and a key store.
// metrics may be nil (no-op). The bus is only created when cfg.BusAddr is set.
func New(cfg *Config, store KeyStore, logger *zap.Logger, metrics MetricsProvider) (*AuthGate, error) {
	if cfg == nil {
		return nil, ErrInvalidConfiguration
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, ErrStoreRequired
	}
	if logger == nil {
		logger, _ = zap.NewProduction() // Fallback to default logger
	}
	metrics = ensureMetrics(metrics)

	vault, err := NewSecretVault(cfg.MasterKey, cfg.IVLength)
	if err != nil {
		return nil, err
	}

	audit := NewAuditLogger(logger)

	var bus *BusConnection
	if cfg.BusAddr != "" {
		bus, err = NewBusConnection(BusConfig{
			Addr:      cfg.BusAddr,
			Password:  cfg.BusPassword,
			Namespace: cfg.BusNamespace,
			DB:        cfg.BusDB,
		}, logger)
		if err != nil {
			return nil, err
		}
		bus.OnEvent(func(event BusEvent, _ error) {
			metrics.RecordBusEvent(context.Background(), string(event))
		})
	}

	cache, err := NewKeyCache(store, bus, KeyCacheConfig{
		RewarmInterval: cfg.RewarmInterval,
		StoreTimeout:   cfg.StoreTimeout,
	}, logger, metrics)
	if err != nil {
		return nil, err
	}

	gateway, err := NewAuthGateway(GatewayConfig{
		SigningSecret: cfg.SigningSecret,
		Algorithm:     cfg.TokenAlgorithm,
		TokenExpiry:   cfg.TokenExpiry,
	}, cache, logger, metrics, audit)
	if err != nil {
		return nil, err
	}

	admin, err := NewKeyAdminService(store, vault, cache, logger, audit, cfg.SecretPrefix, cfg.SecretLength)
	if err != nil {
		return nil, err
	}

	var limiter *RateLimiter
	var limitChecker RateLimitChecker
	if bus != nil && len(cfg.RateLimitRules) > 0 {
		limiter, err = NewRateLimiter(bus, cfg.RateLimitRules, logger)
		if err != nil {
			return nil, err
		}
		limitChecker = limiter
	}

	middleware, err := NewMiddleware(MiddlewareConfig{
		APIKeyHeader:      cfg.APIKeyHeader,
		SkipRoutePatterns: cfg.SkipRoutePatterns,
	}, gateway, limitChecker, logger)
	if err != nil {
		return nil, err
	}

	return &AuthGate{
		cfg:        cfg,
		logger:     logger,
		metrics:    metrics,
		Vault:      vault,
		Bus:        bus,
		Store:      store,
		Cache:      cache,
		Gateway:    gateway,
		Admin:      admin,
		Limiter:    limiter,
		Middleware: middleware,
		Audit:      audit,
	}, nil
}

// Startup connects the bus and warms the key cache. It must complete before
// protected requests are served; a warm-up failure is returned as fatal
// because requests could otherwise only be rejected or served unvalidated.
// A bus connect failure is non-fatal: the watcher keeps reconnecting and the
// cache covers the gap via its store fallback and periodic re-warm.
func (a *AuthGate) Startup(ctx context.Context) error {
	LogVersionInfo(a.logger)

	if a.Bus != nil {
		if err := a.Bus.Connect(ctx); err != nil {
			a.logger.Warn("Bus unavailable at startup - continuing degraded",
				zap.Error(err))
		}
	}

	if err := a.Cache.WarmUp(ctx); err != nil {
		return err
	}

	a.logger.Info("Authgate ready",
		zap.Int("cached_keys", a.Cache.Size()),
		zap.Bool("bus_enabled", a.Bus != nil),
		zap.Bool("rate_limiting", a.Limiter != nil))
	return nil
}

// Shutdown stops background work and closes the bus. Idempotent.
func (a *AuthGate) Shutdown(ctx context.Context) error {
	a.Cache.Close()
	if a.Bus != nil {
		return a.Bus.Shutdown(ctx)
	}
	return nil
}

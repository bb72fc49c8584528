// Package authgate provides dual-mode request authentication (signed session
// tokens and revocable API keys) with a warm in-memory key cache for Go services.
//
// This file contains the top-level configuration, loadable from the
// environment for twelve-factor deployments.
package authgate

import (
	"os"
	"strconv"
	"time"
)

// Config aggregates the configuration of every component. Zero values fall
// back to the package defaults during Validate.
type Config struct {
	// MasterKey is the symmetric master key material for the secret vault.
	MasterKey string

	// IVLength is the vault IV length in bytes. Must equal the AES block size.
	IVLength int

	// SigningSecret is the HMAC secret for session token verification.
	SigningSecret string

	// TokenAlgorithm restricts accepted token signing algorithms.
	TokenAlgorithm string

	// TokenExpiry is the lifetime of tokens minted by IssueToken.
	TokenExpiry time.Duration

	// BusAddr is the address of the shared Redis bus. Empty disables the bus;
	// invalidations then stay local and siblings converge via re-warm.
	BusAddr      string
	BusPassword  string
	BusNamespace string
	BusDB        int

	// RewarmInterval is the period of the cache's full re-warm safety net.
	RewarmInterval time.Duration

	// StoreTimeout bounds the store fallback read on a cache miss.
	StoreTimeout time.Duration

	// SecretPrefix and SecretLength control generated API key secrets.
	SecretPrefix string
	SecretLength int

	// APIKeyHeader is the header the middleware reads the API key from.
	APIKeyHeader string

	// SkipRoutePatterns lists path regexes that bypass authentication.
	SkipRoutePatterns []string

	// RateLimitRules enables the bus-backed rate limiter when non-empty.
	RateLimitRules []RateLimitRule
}

// ConfigFromEnv builds a Config from AUTHGATE_* environment variables.
// Unset variables leave the zero value, resolved to defaults by Validate.
func ConfigFromEnv() *Config {
	cfg := &Config{
		MasterKey:      os.Getenv(ENV_MASTER_KEY),
		SigningSecret:  os.Getenv(ENV_TOKEN_SECRET),
		TokenAlgorithm: os.Getenv(ENV_TOKEN_ALGORITHM),
		BusAddr:        os.Getenv(ENV_BUS_ADDR),
		BusPassword:    os.Getenv(ENV_BUS_PASSWORD),
		BusNamespace:   os.Getenv(ENV_BUS_NAMESPACE),
		SecretPrefix:   os.Getenv(ENV_SECRET_PREFIX),
	}

	cfg.IVLength = envInt(ENV_IV_LENGTH, 0)
	cfg.BusDB = envInt(ENV_BUS_DB, 0)
	cfg.SecretLength = envInt(ENV_SECRET_LENGTH, 0)
	cfg.TokenExpiry = envDuration(ENV_TOKEN_EXPIRY, 0)
	cfg.RewarmInterval = envDuration(ENV_REWARM_INTERVAL, 0)
	cfg.StoreTimeout = envDuration(ENV_STORE_TIMEOUT, 0)

	return cfg
}

func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func envDuration(name string, fallback time.Duration) time.Duration {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return value
}

// Validate checks required settings and resolves defaults in place. Called by
// New; standalone use is fine too.
func (c *Config) Validate() error {
	if len(c.MasterKey) < MIN_MASTER_KEY_LENGTH {
		return ErrMasterKeyRequired
	}
	if len(c.SigningSecret) < MIN_SIGNING_SECRET_LENGTH {
		return ErrSigningSecretRequired
	}

	if c.IVLength <= 0 {
		c.IVLength = DEFAULT_IV_LENGTH
	}
	if c.TokenAlgorithm == "" {
		c.TokenAlgorithm = DEFAULT_TOKEN_ALGORITHM
	}
	if c.TokenExpiry <= 0 {
		c.TokenExpiry = DEFAULT_TOKEN_EXPIRY
	}
	if c.BusNamespace == "" {
		c.BusNamespace = DEFAULT_BUS_NAMESPACE
	}
	if c.RewarmInterval <= 0 {
		c.RewarmInterval = DEFAULT_REWARM_INTERVAL
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = DEFAULT_STORE_TIMEOUT
	}
	if c.SecretPrefix == "" {
		c.SecretPrefix = DEFAULT_SECRET_PREFIX
	}
	if c.SecretLength < MIN_SECRET_LENGTH {
		c.SecretLength = DEFAULT_SECRET_LENGTH
	}
	if c.APIKeyHeader == "" {
		c.APIKeyHeader = DEFAULT_HEADER_API_KEY
	}

	return nil
}

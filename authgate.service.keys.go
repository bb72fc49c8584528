// Package authgate provides dual-mode request authentication (signed session
// tokens and revocable API keys) with a warm in-memory key cache for Go services.
//
// This file contains the administrative service for the API key lifecycle.
// Following clean architecture, this service is independent of HTTP frameworks.
package authgate

import (
	"context"

	"go.uber.org/zap"
)

// KeyAdminService handles the operator-facing key lifecycle: issuance,
// revocation and secret reveal. Unlike the request path, its errors stay
// detailed - these operations are operator-facing and "operation failed,
// explain why" is the right surface.
type KeyAdminService struct {
	store        KeyStore
	vault        *SecretVault
	cache        *KeyCache
	logger       *zap.Logger
	audit        *AuditLogger
	secretPrefix string
	secretLength int
}

// NewKeyAdminService creates a new key admin service.
func NewKeyAdminService(store KeyStore, vault *SecretVault, cache *KeyCache, logger *zap.Logger, audit *AuditLogger, prefix string, length int) (*KeyAdminService, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if vault == nil {
		return nil, ErrVaultRequired
	}
	if cache == nil {
		return nil, ErrCacheRequired
	}
	if logger == nil {
		logger, _ = zap.NewProduction() // Fallback to default logger
	}
	if prefix == "" {
		prefix = DEFAULT_SECRET_PREFIX
	}
	if length < MIN_SECRET_LENGTH {
		length = DEFAULT_SECRET_LENGTH
	}

	return &KeyAdminService{
		store:        store,
		vault:        vault,
		cache:        cache,
		logger:       logger.Named(CLASS_KEY_ADMIN),
		audit:        audit,
		secretPrefix: prefix,
		secretLength: length,
	}, nil
}

// CreateKey issues a new API key. Returns the persisted record and the
// plaintext secret - the only time the plaintext is ever returned. It is
// never persisted or logged; the store holds the vault envelope and the
// lookup digest only.
func (s *KeyAdminService) CreateKey(ctx context.Context, name string, createdBy string) (*APIKeyRecord, string, error) {
	if name == "" {
		return nil, "", ErrNameRequired
	}

	secret, err := GenerateSecret(s.secretPrefix, s.secretLength)
	if err != nil {
		s.logger.Error("Failed to generate secret",
			zap.String(LOG_FIELD_NAME, name),
			zap.Error(err))
		return nil, "", NewInternalError("secret_generation", err)
	}

	lookupKey, err := LookupKeyFromSecret(secret)
	if err != nil {
		return nil, "", NewInternalError("lookup_key_derivation", err)
	}

	digest, err := s.vault.Encrypt(secret)
	if err != nil {
		s.logger.Error("Failed to encrypt secret",
			zap.String(LOG_FIELD_NAME, name),
			zap.Error(err))
		return nil, "", err
	}

	rec := &APIKeyRecord{
		Name:         name,
		Status:       KeyStatusActive,
		SecretDigest: digest,
		SecretHint:   SecretHint(secret),
		LookupKey:    lookupKey,
		CreatedAt:    nowUTC(),
		CreatedBy:    createdBy,
	}

	if err := s.store.Create(ctx, rec); err != nil {
		s.logger.Error("Failed to persist key",
			zap.String(LOG_FIELD_NAME, name),
			zap.Error(err))
		return nil, "", err
	}

	// Serve the new key from this instance immediately; siblings pick it up
	// via their store fallback or next re-warm.
	s.cache.Admit(rec)

	s.logger.Info("API key created",
		zap.Int64(LOG_FIELD_KEY_ID, rec.ID),
		zap.String(LOG_FIELD_NAME, rec.Name),
		zap.String(LOG_FIELD_HINT, rec.SecretHint))
	s.audit.LogKeyCreated(ctx, rec, createdBy)

	return rec, secret, nil
}

// RevokeKey revokes a key: store write first, then synchronous local
// invalidation plus best-effort broadcast. When RevokeKey returns, a lookup
// for this key's secret on the same process is guaranteed to miss.
func (s *KeyAdminService) RevokeKey(ctx context.Context, id int64) (*APIKeyRecord, error) {
	rec, err := s.store.Revoke(ctx, id)
	if err != nil {
		s.logger.Error("Failed to revoke key",
			zap.Int64(LOG_FIELD_KEY_ID, id),
			zap.Error(err))
		return nil, err
	}

	s.cache.Invalidate(ctx, id)

	s.logger.Info("API key revoked",
		zap.Int64(LOG_FIELD_KEY_ID, rec.ID),
		zap.String(LOG_FIELD_NAME, rec.Name))
	s.audit.LogKeyRevoked(ctx, rec)

	return rec, nil
}

// GetKey retrieves a record by id for operator display. The secret digest is
// included as stored (encrypted); use RevealSecret to decrypt it.
func (s *KeyAdminService) GetKey(ctx context.Context, id int64) (*APIKeyRecord, error) {
	return s.store.GetKeyByID(ctx, id)
}

// ListActiveKeys returns all active records for operator display.
func (s *KeyAdminService) ListActiveKeys(ctx context.Context) ([]*APIKeyRecord, error) {
	return s.store.ListActiveKeys(ctx)
}

// RevealSecret decrypts a key's stored secret for operator display. This is
// the reason the digest is held in reversible (vault) form rather than only
// hashed.
func (s *KeyAdminService) RevealSecret(ctx context.Context, id int64) (string, error) {
	rec, err := s.store.GetKeyByID(ctx, id)
	if err != nil {
		return "", err
	}

	secret, err := s.vault.Decrypt(rec.SecretDigest)
	if err != nil {
		s.logger.Error("Failed to decrypt stored secret",
			zap.Int64(LOG_FIELD_KEY_ID, id),
			zap.Error(err))
		return "", err
	}

	s.audit.LogSecretRevealed(ctx, rec)
	return secret, nil
}

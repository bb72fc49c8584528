// Package authgate provides dual-mode request authentication (signed session
// tokens and revocable API keys) with a warm in-memory key cache for Go services.
//
// This file contains the bootstrap service for creating the initial API key.
// SECURITY WARNING: Bootstrap logs the created secret in clear text - use only for initial setup.
package authgate

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
)

// BootstrapConfig configures initial key creation.
type BootstrapConfig struct {
	// KeyName is the label of the bootstrap key.
	KeyName string

	// CreatedBy is recorded as the key's creator.
	CreatedBy string

	// RecoveryPath optionally writes the secret to a file (0600) as well.
	RecoveryPath string

	// IUnderstandSecurityRisks must be set to acknowledge that the plaintext
	// secret is logged.
	IUnderstandSecurityRisks bool
}

// BootstrapService creates an initial API key for a fresh deployment where no
// keys exist yet and no operator can authenticate to create one.
type BootstrapService struct {
	admin  *KeyAdminService
	store  KeyStore
	config *BootstrapConfig
	logger *zap.Logger
}

// NewBootstrapService creates a new bootstrap service
func NewBootstrapService(admin *KeyAdminService, store KeyStore, config *BootstrapConfig, logger *zap.Logger) *BootstrapService {
	if config == nil {
		config = &BootstrapConfig{
			KeyName:   "bootstrap-admin",
			CreatedBy: "bootstrap",
		}
	}
	if logger == nil {
		logger, _ = zap.NewProduction() // Fallback to default logger
	}

	return &BootstrapService{
		admin:  admin,
		store:  store,
		config: config,
		logger: logger.Named(CLASS_BOOTSTRAP),
	}
}

// NeedsBootstrap checks whether any active key already exists.
func (b *BootstrapService) NeedsBootstrap(ctx context.Context) (bool, error) {
	records, err := b.store.ListActiveKeys(ctx)
	if err != nil {
		b.logger.Error("Failed to check if bootstrap is needed",
			zap.Error(err))
		return false, NewInternalError("bootstrap_check", err)
	}

	if len(records) == 0 {
		b.logger.Info("No API keys found - bootstrap needed")
		return true, nil
	}

	return false, nil
}

// Bootstrap creates the initial API key when none exists.
// SECURITY WARNING: This logs the secret in clear text - use only for initial setup!
func (b *BootstrapService) Bootstrap(ctx context.Context) (*APIKeyRecord, error) {
	// Safety check: Require explicit security risk acknowledgment
	if !b.config.IUnderstandSecurityRisks {
		b.logger.Error("Bootstrap blocked: security risk acknowledgment required",
			zap.String("required_field", "IUnderstandSecurityRisks"))
		return nil, NewValidationError("bootstrap_config.i_understand_security_risks",
			"must be true to enable bootstrap - acknowledges that the secret will be logged in plain text")
	}

	needed, err := b.NeedsBootstrap(ctx)
	if err != nil {
		return nil, err
	}
	if !needed {
		b.logger.Info("Bootstrap not needed - keys already exist")
		return nil, NewValidationError("bootstrap", "keys already exist")
	}

	name := b.config.KeyName
	if name == "" {
		name = "bootstrap-admin"
	}

	rec, secret, err := b.admin.CreateKey(ctx, name, b.config.CreatedBy)
	if err != nil {
		b.logger.Error("Failed to create bootstrap key",
			zap.String(LOG_FIELD_NAME, name),
			zap.Error(err))
		return nil, err
	}

	// SECURITY WARNING: the one place a secret reaches the log, loudly.
	b.logger.Warn("BOOTSTRAP KEY CREATED - STORE SECURELY AND DELETE THIS LOG ENTRY",
		zap.Int64(LOG_FIELD_KEY_ID, rec.ID),
		zap.String(LOG_FIELD_NAME, rec.Name),
		zap.String("secret", secret))

	if b.config.RecoveryPath != "" {
		if err := b.saveToRecoveryFile(rec, secret); err != nil {
			b.logger.Warn("Failed to save bootstrap secret to recovery file",
				zap.String("path", b.config.RecoveryPath),
				zap.Error(err))
			// Don't fail bootstrap if recovery file write fails
		}
	}

	b.logger.Info("Bootstrap key created",
		zap.Int64(LOG_FIELD_KEY_ID, rec.ID),
		zap.String(LOG_FIELD_HINT, rec.SecretHint))

	return rec, nil
}

// saveToRecoveryFile writes the bootstrap secret to a file with owner-only
// permissions.
func (b *BootstrapService) saveToRecoveryFile(rec *APIKeyRecord, secret string) error {
	content := fmt.Sprintf(`BOOTSTRAP KEY RECOVERY FILE
SECURITY WARNING: Delete this file after storing the secret securely!

Key ID: %d
Name:   %s
Hint:   %s
Secret: %s
`, rec.ID, rec.Name, rec.SecretHint, secret)

	err := os.WriteFile(b.config.RecoveryPath, []byte(content), 0o600)
	if err != nil {
		return NewInternalError("recovery_file_write", err)
	}

	b.logger.Warn("Bootstrap secret saved to recovery file",
		zap.String("path", b.config.RecoveryPath))

	return nil
}

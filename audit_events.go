package authgate

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Event type constants
const (
	EventTypeAuthSuccess    = "auth.success"
	EventTypeAuthFailure    = "auth.failure"
	EventTypeKeyCreated     = "key.created"
	EventTypeKeyRevoked     = "key.revoked"
	EventTypeSecretRevealed = "key.secret_revealed"
)

// Outcome constants
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// BaseAuditEvent contains fields common to all audit events
type BaseAuditEvent struct {
	// EventID is a unique identifier for this event (UUID v4)
	EventID string `json:"event_id"`

	// EventType categorizes the event (e.g., "auth.failure", "key.created")
	EventType string `json:"event_type"`

	// Timestamp is when the event occurred
	Timestamp time.Time `json:"timestamp"`

	// Outcome indicates the result ("success", "failure")
	Outcome string `json:"outcome"`
}

// AuthAttemptEvent represents an authentication attempt. The failure category
// is recorded here for operators; it is never part of the client response.
type AuthAttemptEvent struct {
	BaseAuditEvent

	// Mode is the authentication path taken ("token", "apikey", "none")
	Mode string `json:"mode"`

	// FailureCategory is the server-side failure classification, empty on success
	FailureCategory string `json:"failure_category,omitempty"`

	// KeyID is the id of the API key involved, if known
	KeyID int64 `json:"key_id,omitempty"`

	// Subject is the token subject, if the token path was taken
	Subject string `json:"subject,omitempty"`

	// LatencyMS is the authentication latency in milliseconds
	LatencyMS int64 `json:"latency_ms"`
}

// KeyLifecycleEvent represents key creation, revocation, or secret reveal.
// Payloads are sanitized: hints and ids only, never plaintext secrets.
type KeyLifecycleEvent struct {
	BaseAuditEvent

	// Operation is the lifecycle operation ("create", "revoke", "reveal")
	Operation string `json:"operation"`

	// KeyID is the record's numeric id
	KeyID int64 `json:"key_id"`

	// Name is the key's human label
	Name string `json:"name"`

	// Hint is the first/last characters of the secret for operator reference
	Hint string `json:"hint,omitempty"`

	// Actor identifies who performed the action, where known
	Actor string `json:"actor,omitempty"`
}

// NewBaseAuditEvent creates a new BaseAuditEvent with common fields initialized
func NewBaseAuditEvent(eventType string, outcome string) BaseAuditEvent {
	return BaseAuditEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
		Outcome:   outcome,
	}
}

// AuditLogger emits structured audit events through zap. All methods are
// nil-safe so components can carry a nil logger when auditing is disabled.
type AuditLogger struct {
	logger *zap.Logger
}

// NewAuditLogger creates an audit logger on top of the given zap logger.
func NewAuditLogger(logger *zap.Logger) *AuditLogger {
	if logger == nil {
		logger, _ = zap.NewProduction() // Fallback to default logger
	}
	return &AuditLogger{
		logger: logger.Named(CLASS_AUDIT_LOGGER),
	}
}

// LogAuthAttempt records an authentication decision.
func (a *AuditLogger) LogAuthAttempt(ctx context.Context, event *AuthAttemptEvent) {
	if a == nil || event == nil {
		return
	}

	fields := []zap.Field{
		zap.String("event_id", event.EventID),
		zap.String("event_type", event.EventType),
		zap.String("outcome", event.Outcome),
		zap.String("mode", event.Mode),
		zap.Int64("latency_ms", event.LatencyMS),
	}
	if event.FailureCategory != "" {
		fields = append(fields, zap.String(LOG_FIELD_REASON, event.FailureCategory))
	}
	if event.KeyID != 0 {
		fields = append(fields, zap.Int64(LOG_FIELD_KEY_ID, event.KeyID))
	}
	if event.Subject != "" {
		fields = append(fields, zap.String(LOG_FIELD_SUBJECT, event.Subject))
	}

	if event.Outcome == OutcomeSuccess {
		a.logger.Info("Authentication succeeded", fields...)
	} else {
		a.logger.Warn("Authentication failed", fields...)
	}
}

func (a *AuditLogger) logLifecycle(message string, event *KeyLifecycleEvent) {
	a.logger.Info(message,
		zap.String("event_id", event.EventID),
		zap.String("event_type", event.EventType),
		zap.String("operation", event.Operation),
		zap.Int64(LOG_FIELD_KEY_ID, event.KeyID),
		zap.String(LOG_FIELD_NAME, event.Name),
		zap.String(LOG_FIELD_HINT, event.Hint),
		zap.String("actor", event.Actor))
}

// LogKeyCreated records a key issuance. The plaintext secret is never logged.
func (a *AuditLogger) LogKeyCreated(ctx context.Context, rec *APIKeyRecord, actor string) {
	if a == nil || rec == nil {
		return
	}

	event := &KeyLifecycleEvent{
		BaseAuditEvent: NewBaseAuditEvent(EventTypeKeyCreated, OutcomeSuccess),
		Operation:      "create",
		KeyID:          rec.ID,
		Name:           rec.Name,
		Hint:           rec.SecretHint,
		Actor:          actor,
	}
	a.logLifecycle("API key created", event)
}

// LogKeyRevoked records a revocation.
func (a *AuditLogger) LogKeyRevoked(ctx context.Context, rec *APIKeyRecord) {
	if a == nil || rec == nil {
		return
	}

	event := &KeyLifecycleEvent{
		BaseAuditEvent: NewBaseAuditEvent(EventTypeKeyRevoked, OutcomeSuccess),
		Operation:      "revoke",
		KeyID:          rec.ID,
		Name:           rec.Name,
		Hint:           rec.SecretHint,
	}
	a.logLifecycle("API key revoked", event)
}

// LogSecretRevealed records an operator decrypting a stored secret.
func (a *AuditLogger) LogSecretRevealed(ctx context.Context, rec *APIKeyRecord) {
	if a == nil || rec == nil {
		return
	}

	event := &KeyLifecycleEvent{
		BaseAuditEvent: NewBaseAuditEvent(EventTypeSecretRevealed, OutcomeSuccess),
		Operation:      "reveal",
		KeyID:          rec.ID,
		Name:           rec.Name,
		Hint:           rec.SecretHint,
	}
	a.logLifecycle("API key secret revealed", event)
}

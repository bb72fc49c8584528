// Package authgate provides dual-mode request authentication (signed session
// tokens and revocable API keys) with a warm in-memory key cache for Go services.
//
// This file contains all constants following CODE_RULES.md principle: NO MAGIC STRINGS.
// Every string literal in the codebase must be defined here as a constant.
package authgate

import "time"

const (
	// Package metadata
	PACKAGE_NAME    = "go-authgate"
	PACKAGE_VERSION = "1.0.0"

	// Default configuration values
	DEFAULT_HEADER_API_KEY      = "X-API-Key"
	DEFAULT_SECRET_PREFIX       = "agk_" // authgate key prefix
	DEFAULT_SECRET_LENGTH       = 32     // Random string length (total with prefix: 36 chars)
	DEFAULT_SECRET_HINT_LENGTH  = 3      // First/last N characters for hint
	DEFAULT_IV_LENGTH           = 16     // AES block size
	DEFAULT_TOKEN_ALGORITHM     = "HS256"
	DEFAULT_TOKEN_EXPIRY        = 24 * time.Hour
	DEFAULT_TOKEN_CACHE_SIZE    = 1024
	DEFAULT_REWARM_INTERVAL     = 5 * time.Minute
	DEFAULT_STORE_TIMEOUT       = 2 * time.Second
	DEFAULT_BUS_DB              = 0
	DEFAULT_BUS_NAMESPACE       = "authgate"
	DEFAULT_BUS_BACKOFF_STEP    = 250 * time.Millisecond
	DEFAULT_BUS_BACKOFF_CEILING = 5 * time.Second

	// HTTP headers
	HEADER_API_KEY       = "X-API-Key"
	HEADER_AUTHORIZATION = "Authorization"
	HEADER_CONTENT_TYPE  = "Content-Type"

	// Authorization scheme
	BEARER_SCHEME = "Bearer"

	// Content types
	CONTENT_TYPE_JSON = "application/json"

	// Fiber locals keys (framework-specific - must be strings for Fiber)
	// Used by Fiber's c.Locals() which requires string keys
	LOCALS_KEY_PRINCIPAL = "authgate:principal"

	// Bus channel/key segments (namespaced by Config.BusNamespace)
	BUS_CHANNEL_INVALIDATE = "invalidate"
	BUS_KEY_SEPARATOR      = ":"
	BUS_KEY_RATELIMIT      = "ratelimit"

	// Vault envelope
	ENVELOPE_DELIMITER = ":"

	// Token claim names required on the token path
	CLAIM_SUBJECT = "sub"
	CLAIM_EMAIL   = "email"
	CLAIM_ROLE    = "role"

	// Error messages (user-facing)
	ERROR_UNAUTHORIZED            = "unauthorized"
	ERROR_MALFORMED_ENVELOPE      = "malformed ciphertext envelope"
	ERROR_DECRYPTION_FAILED       = "decryption failed"
	ERROR_STORE_UNAVAILABLE       = "key store unavailable"
	ERROR_BUS_UNAVAILABLE         = "invalidation bus unavailable"
	ERROR_TOKEN_EXPIRED           = "token expired"
	ERROR_TOKEN_MALFORMED         = "token malformed"
	ERROR_KEY_REVOKED             = "api key revoked"
	ERROR_KEY_UNKNOWN             = "api key unknown"
	ERROR_SECRET_REQUIRED         = "secret is required"
	ERROR_NAME_REQUIRED           = "name is required"
	ERROR_STORE_REQUIRED          = "key store is required"
	ERROR_VAULT_REQUIRED          = "secret vault is required"
	ERROR_CACHE_REQUIRED          = "key cache is required"
	ERROR_MASTER_KEY_REQUIRED     = "master key material is required"
	ERROR_SIGNING_SECRET_REQUIRED = "token signing secret is required"
	ERROR_RATE_LIMIT_EXCEEDED     = "rate limit exceeded"
	ERROR_INVALID_JSON            = "invalid JSON"
	ERROR_NOT_ADMIN               = "admin role required"
	ERROR_INVALID_KEY_ID          = "invalid key id"

	// Log field names (for structured logging)
	LOG_FIELD_KEY_ID     = "key_id"
	LOG_FIELD_LOOKUP_KEY = "lookup_key"
	LOG_FIELD_HINT       = "hint"
	LOG_FIELD_NAME       = "name"
	LOG_FIELD_SUBJECT    = "subject"
	LOG_FIELD_REASON     = "reason"
	LOG_FIELD_CHANNEL    = "channel"
	LOG_FIELD_ATTEMPT    = "attempt"
	LOG_FIELD_ERROR      = "error"

	// Class names for logging (service/component identification)
	CLASS_SECRET_VAULT    = "SecretVault"
	CLASS_BUS_CONNECTION  = "BusConnection"
	CLASS_KEY_CACHE       = "KeyCache"
	CLASS_AUTH_GATEWAY    = "AuthGateway"
	CLASS_KEY_ADMIN       = "KeyAdminService"
	CLASS_RATE_LIMITER    = "RateLimiter"
	CLASS_STORE_ADAPTER   = "StoreAdapter"
	CLASS_AUDIT_LOGGER    = "AuditLogger"
	CLASS_HANDLER_CORE    = "HandlerCore"
	CLASS_BOOTSTRAP       = "BootstrapService"

	// Auth modes (metrics labels, audit events)
	AUTH_MODE_TOKEN  = "token"
	AUTH_MODE_APIKEY = "apikey"
	AUTH_MODE_NONE   = "none"

	// Auth failure categories (logged server-side, never returned to callers)
	FAILURE_TOKEN_EXPIRED   = "token_expired"
	FAILURE_TOKEN_MALFORMED = "token_malformed"
	FAILURE_KEY_UNKNOWN     = "key_unknown"
	FAILURE_KEY_REVOKED     = "key_revoked"
	FAILURE_NO_CREDENTIAL   = "no_credential"
	FAILURE_STORE_ERROR     = "store_error"
	FAILURE_RATE_LIMITED    = "rate_limited"

	// Store identifier segments (for the go-datarepository adapter)
	STORE_KEY_RECORD     = "record"
	STORE_KEY_ID_COUNTER = "id_counter"
	STORE_KEY_ID_INDEX   = "id"

	// Validation constants
	MIN_SECRET_LENGTH         = 10
	MIN_MASTER_KEY_LENGTH     = 16
	MIN_SIGNING_SECRET_LENGTH = 32
	MIN_NAME_LENGTH           = 2
	MAX_NAME_LENGTH           = 100
	MAX_CREATED_BY_LENGTH     = 100

	// Role carrying admin rights on the operator endpoints
	ROLE_ADMIN = "admin"

	// Environment variables
	ENV_MASTER_KEY       = "AUTHGATE_MASTER_KEY"
	ENV_IV_LENGTH        = "AUTHGATE_IV_LENGTH"
	ENV_BUS_ADDR         = "AUTHGATE_BUS_ADDR"
	ENV_BUS_PASSWORD     = "AUTHGATE_BUS_PASSWORD"
	ENV_BUS_NAMESPACE    = "AUTHGATE_BUS_NAMESPACE"
	ENV_BUS_DB           = "AUTHGATE_BUS_DB"
	ENV_TOKEN_SECRET     = "AUTHGATE_TOKEN_SECRET"
	ENV_TOKEN_ALGORITHM  = "AUTHGATE_TOKEN_ALGORITHM"
	ENV_TOKEN_EXPIRY     = "AUTHGATE_TOKEN_EXPIRY"
	ENV_REWARM_INTERVAL  = "AUTHGATE_REWARM_INTERVAL"
	ENV_STORE_TIMEOUT    = "AUTHGATE_STORE_TIMEOUT"
	ENV_SECRET_PREFIX    = "AUTHGATE_SECRET_PREFIX"
	ENV_SECRET_LENGTH    = "AUTHGATE_SECRET_LENGTH"

	// Test/development constants
	TEST_SECRET_PREFIX = "test_"
)

// contextKey is an unexported type for context keys to prevent collisions.
// Using an unexported type ensures only this package can create context keys,
// preventing other middleware from accidentally overwriting our values.
type contextKey string

// Context keys for stdlib context.Context (type-safe to prevent collisions)
var (
	contextKeyPrincipal contextKey = "authgate:principal"
)

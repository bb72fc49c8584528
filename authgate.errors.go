// Package authgate provides dual-mode request authentication (signed session
// tokens and revocable API keys) with a warm in-memory key cache for Go services.
//
// This file defines all error types and sentinel errors using go-cuserr.
// Integrated with go-cuserr v0.3.0 for consistent error handling across vAudience.AI services.
package authgate

import (
	"errors"
	"fmt"

	"github.com/itsatony/go-cuserr"
)

// Sentinel errors using go-cuserr
// These are the base error types that can be wrapped with context
var (
	// ErrNotFound indicates a resource was not found (404, NOT_FOUND)
	ErrNotFound = cuserr.ErrNotFound

	// ErrInvalidInput indicates invalid input data (400, INVALID_ARGUMENT)
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized is the single error surfaced at the request boundary for
	// every authentication failure. The specific category (expired token,
	// unknown key, revoked key) is logged server-side only.
	ErrUnauthorized = errors.New(ERROR_UNAUTHORIZED)

	// ErrInternal indicates an internal error (500, INTERNAL)
	ErrInternal = errors.New("internal error")

	// ErrTimeout indicates a timeout occurred (408, DEADLINE_EXCEEDED)
	ErrTimeout = errors.New("timeout")

	// ErrRateLimit indicates rate limit exceeded (429, RESOURCE_EXHAUSTED)
	ErrRateLimit = errors.New("rate limit exceeded")

	// ErrExternal indicates an external service failure (502, UNAVAILABLE)
	ErrExternal = errors.New("external service error")

	// ErrInvalidConfiguration indicates configuration error
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// Domain-specific sentinel errors
var (
	// Vault errors - decryption always fails closed
	ErrMalformedEnvelope = fmt.Errorf("%w: %s", ErrInvalidInput, ERROR_MALFORMED_ENVELOPE)
	ErrDecryptionFailed  = fmt.Errorf("%w: %s", ErrInternal, ERROR_DECRYPTION_FAILED)

	// Transient infrastructure errors (retried with backoff by callers)
	ErrStoreUnavailable = fmt.Errorf("%w: %s", ErrExternal, ERROR_STORE_UNAVAILABLE)
	ErrBusUnavailable   = fmt.Errorf("%w: %s", ErrExternal, ERROR_BUS_UNAVAILABLE)

	// Auth decision outcomes - all collapsed to ErrUnauthorized at the boundary
	ErrTokenExpired   = fmt.Errorf("%w: %s", ErrUnauthorized, ERROR_TOKEN_EXPIRED)
	ErrTokenMalformed = fmt.Errorf("%w: %s", ErrUnauthorized, ERROR_TOKEN_MALFORMED)
	ErrKeyRevoked     = fmt.Errorf("%w: %s", ErrUnauthorized, ERROR_KEY_REVOKED)
	ErrKeyUnknown     = fmt.Errorf("%w: %s", ErrUnauthorized, ERROR_KEY_UNKNOWN)

	// Key record errors
	ErrKeyNotFound    = fmt.Errorf("%w: %s", ErrNotFound, ERROR_KEY_UNKNOWN)
	ErrSecretRequired = fmt.Errorf("%w: %s", ErrInvalidInput, ERROR_SECRET_REQUIRED)
	ErrNameRequired   = fmt.Errorf("%w: %s", ErrInvalidInput, ERROR_NAME_REQUIRED)

	// Rate limiting errors
	ErrRateLimitExceeded = fmt.Errorf("%w: %s", ErrRateLimit, ERROR_RATE_LIMIT_EXCEEDED)

	// Configuration errors
	ErrStoreRequired         = fmt.Errorf("%w: %s", ErrInvalidConfiguration, ERROR_STORE_REQUIRED)
	ErrVaultRequired         = fmt.Errorf("%w: %s", ErrInvalidConfiguration, ERROR_VAULT_REQUIRED)
	ErrCacheRequired         = fmt.Errorf("%w: %s", ErrInvalidConfiguration, ERROR_CACHE_REQUIRED)
	ErrMasterKeyRequired     = fmt.Errorf("%w: %s", ErrInvalidConfiguration, ERROR_MASTER_KEY_REQUIRED)
	ErrSigningSecretRequired = fmt.Errorf("%w: %s", ErrInvalidConfiguration, ERROR_SIGNING_SECRET_REQUIRED)
)

// ErrCacheMiss is a normal lookup outcome, not a failure. It is distinguished
// from the decision outcomes above so that the gateway can fall through to the
// store before deciding anything.
var ErrCacheMiss = errors.New("cache miss")

// Error checking helpers (compatible with errors.Is)
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsInvalidInputError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

func IsUnauthorizedError(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

func IsInternalError(err error) bool {
	return errors.Is(err, ErrInternal)
}

func IsTimeoutError(err error) bool {
	return errors.Is(err, ErrTimeout)
}

func IsRateLimitError(err error) bool {
	return errors.Is(err, ErrRateLimit)
}

func IsExternalError(err error) bool {
	return errors.Is(err, ErrExternal)
}

func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrInvalidConfiguration)
}

func IsCacheMiss(err error) bool {
	return errors.Is(err, ErrCacheMiss)
}

// NewValidationError creates a validation error with field context using go-cuserr
func NewValidationError(field, message string) error {
	return cuserr.NewValidationError(field, message)
}

// NewInternalError creates an internal error with component context using go-cuserr
func NewInternalError(component string, cause error) error {
	return cuserr.NewInternalError(component, cause)
}

// NewTimeoutError creates a timeout error with operation context using go-cuserr
func NewTimeoutError(operation string, cause error) error {
	return cuserr.NewTimeoutError(operation, cause)
}

// NewExternalError creates an external service error with context using go-cuserr
func NewExternalError(service, operation string, cause error) error {
	return cuserr.NewExternalError(service, operation, cause)
}

// WrapError wraps an error with additional context using go-cuserr
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return cuserr.ErrorWithContext(err, message)
}

// ErrorToHTTPStatus maps errors to HTTP status codes
// This is compatible with go-cuserr pattern
func ErrorToHTTPStatus(err error) int {
	if err == nil {
		return 200
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return 401
	case errors.Is(err, ErrNotFound):
		return 404
	case errors.Is(err, ErrInvalidInput):
		return 400
	case errors.Is(err, ErrTimeout):
		return 408
	case errors.Is(err, ErrRateLimit):
		return 429
	case errors.Is(err, ErrExternal):
		return 502
	case errors.Is(err, ErrInternal):
		return 500
	default:
		return 500
	}
}

// ErrorResponse represents a JSON error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// NewErrorResponse creates a standardized error response
func NewErrorResponse(err error) *ErrorResponse {
	if err == nil {
		return nil
	}

	return &ErrorResponse{
		Error:   err.Error(),
		Message: err.Error(),
		Code:    ErrorToHTTPStatus(err),
	}
}

// unauthorizedResponse is the uniform rejection body sent for every
// authentication failure. Deliberately identical across failure categories so
// that the response does not aid credential guessing.
func unauthorizedResponse() *ErrorResponse {
	return &ErrorResponse{
		Error:   ERROR_UNAUTHORIZED,
		Message: ERROR_UNAUTHORIZED,
		Code:    401,
	}
}

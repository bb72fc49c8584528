// Package authgate provides dual-mode request authentication (signed session
// tokens and revocable API keys) with a warm in-memory key cache for Go services.
//
// This file contains input validation functions following CODE_RULES.md standards.
package authgate

import (
	"fmt"
	"strings"
)

// ValidationErrors represents a collection of validation errors.
// This is used to return multiple validation errors at once.
type ValidationErrors struct {
	Errors []FieldError `json:"errors"`
}

// FieldError represents a single field validation error.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (v *ValidationErrors) Error() string {
	if len(v.Errors) == 0 {
		return "validation failed"
	}
	if len(v.Errors) == 1 {
		return fmt.Sprintf("validation failed: %s %s", v.Errors[0].Field, v.Errors[0].Message)
	}
	return fmt.Sprintf("validation failed: %d errors", len(v.Errors))
}

// Add adds a validation error to the collection.
func (v *ValidationErrors) Add(field, message string) {
	v.Errors = append(v.Errors, FieldError{
		Field:   field,
		Message: message,
	})
}

// HasErrors returns true if there are any validation errors.
func (v *ValidationErrors) HasErrors() bool {
	return len(v.Errors) > 0
}

// ToError returns the ValidationErrors as an error if there are errors, nil otherwise.
func (v *ValidationErrors) ToError() error {
	if !v.HasErrors() {
		return nil
	}
	return v
}

// Unwrap implements error unwrapping for ValidationErrors.
// This allows errors.Is() to recognize ValidationErrors as ErrInvalidInput.
func (v *ValidationErrors) Unwrap() error {
	return ErrInvalidInput
}

// ValidateKeyName validates the human label of an API key.
// Returns nil if valid, error if invalid.
func ValidateKeyName(name string) error {
	if name == "" {
		return ErrNameRequired
	}

	if len(name) < MIN_NAME_LENGTH {
		return NewValidationError("name", fmt.Sprintf("must be at least %d characters", MIN_NAME_LENGTH))
	}

	if len(name) > MAX_NAME_LENGTH {
		return NewValidationError("name", fmt.Sprintf("must be at most %d characters", MAX_NAME_LENGTH))
	}

	return nil
}

// ValidateSecret validates an API key secret string format.
// Returns nil if valid, error if invalid.
func ValidateSecret(secret string) error {
	if secret == "" {
		return ErrSecretRequired
	}

	if !IsSecretFormat(secret) {
		return NewValidationError("secret", "does not match the api key format")
	}

	return nil
}

// ValidateCreateKeyRequest validates the fields of a key creation request.
// Returns nil if valid, ValidationErrors if invalid.
func ValidateCreateKeyRequest(name string, createdBy string) error {
	errors := &ValidationErrors{}

	if name == "" {
		errors.Add("name", "is required")
	} else if len(name) < MIN_NAME_LENGTH {
		errors.Add("name", fmt.Sprintf("must be at least %d characters", MIN_NAME_LENGTH))
	} else if len(name) > MAX_NAME_LENGTH {
		errors.Add("name", fmt.Sprintf("must be at most %d characters", MAX_NAME_LENGTH))
	}

	if len(createdBy) > MAX_CREATED_BY_LENGTH {
		errors.Add("created_by", fmt.Sprintf("must be at most %d characters", MAX_CREATED_BY_LENGTH))
	}

	return errors.ToError()
}

// SanitizeString removes leading/trailing whitespace and limits length.
// This is useful for sanitizing user input before validation.
func SanitizeString(s string, maxLength int) string {
	s = strings.TrimSpace(s)
	if len(s) > maxLength {
		s = s[:maxLength]
	}
	return s
}

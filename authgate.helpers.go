// Package authgate provides dual-mode request authentication (signed session
// tokens and revocable API keys) with a warm in-memory key cache for Go services.
//
// This file contains utility/helper functions for secret generation, lookup-key
// derivation, and format validation.
package authgate

import (
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// nowUTC returns the current time in UTC, the timezone all provenance fields
// are recorded in.
func nowUTC() time.Time {
	return time.Now().UTC()
}

// GenerateSecret generates a new API key secret with the specified prefix and
// length. Returns (secret, error) - never panics.
//
// The generated format is: {prefix}{random_string}
// Example: "agk_6ByTSYmGzT2czT2c9Xd2kPqRs8Vx"
//
// This function is thread-safe and can be called concurrently.
func GenerateSecret(prefix string, length int) (string, error) {
	if prefix == "" {
		return "", NewValidationError("prefix", "cannot be empty")
	}
	if length < MIN_SECRET_LENGTH {
		return "", NewValidationError("length", fmt.Sprintf("must be at least %d (got %d)", MIN_SECRET_LENGTH, length))
	}

	randomString, err := gonanoid.New(length)
	if err != nil {
		return "", NewInternalError("nanoid_generation", err)
	}

	return prefix + randomString, nil
}

// LookupKeyFromSecret derives the deterministic cache lookup key from a
// presented plaintext secret: a hex-encoded SHA-512 digest. The digest is
// what the cache and store are indexed by, so the hot path never has to
// decrypt-and-compare stored ciphertexts. The reversible vault envelope is
// reserved for values that must later be decrypted for display/audit.
//
// This function is thread-safe and can be called concurrently.
func LookupKeyFromSecret(secret string) (string, error) {
	if secret == "" {
		return "", ErrSecretRequired
	}

	digest := sha512.Sum512([]byte(secret))
	return hex.EncodeToString(digest[:]), nil
}

// SecretHint creates a hint from the secret showing first/last characters.
// Format: "abc...xyz"
func SecretHint(secret string) string {
	if len(secret) <= 2*DEFAULT_SECRET_HINT_LENGTH {
		return secret // Too short, just return as-is
	}

	firstPart := secret[:DEFAULT_SECRET_HINT_LENGTH]
	lastPart := secret[len(secret)-DEFAULT_SECRET_HINT_LENGTH:]
	return fmt.Sprintf("%s...%s", firstPart, lastPart)
}

// IsSecretFormat validates if a string matches the API key secret format.
//
// Valid format: {2-5 lowercase letters}_{10+ alphanumeric/dash/underscore}
// Examples:
//   - "agk_6ByTSYmGzT2c" ✓
//   - "test_abc123defg"  ✓
//   - "invalid"          ✗
func IsSecretFormat(secret string) bool {
	if secret == "" || len(secret) < MIN_SECRET_LENGTH {
		return false
	}

	parts := strings.SplitN(secret, "_", 2)
	if len(parts) != 2 {
		return false // No underscore separator
	}

	prefix := parts[0]
	randomPart := parts[1]

	if len(prefix) < 2 || len(prefix) > 5 {
		return false
	}
	for _, char := range prefix {
		if char < 'a' || char > 'z' {
			return false // Prefix must be lowercase letters only
		}
	}

	if len(randomPart) < MIN_SECRET_LENGTH {
		return false
	}
	for _, char := range randomPart {
		if !((char >= 'a' && char <= 'z') ||
			(char >= 'A' && char <= 'Z') ||
			(char >= '0' && char <= '9') ||
			char == '-' || char == '_') {
			return false
		}
	}

	return true
}

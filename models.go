// Package authgate provides dual-mode request authentication (signed session
// tokens and revocable API keys) with a warm in-memory key cache for Go services.
//
// This file defines the data model: the persisted API key record, the
// in-memory cache projection, and the per-request principals.
package authgate

import "time"

// KeyStatus is the lifecycle state of an API key. The transition is monotonic:
// active -> revoked, never reversed.
type KeyStatus string

const (
	KeyStatusActive  KeyStatus = "active"
	KeyStatusRevoked KeyStatus = "revoked"
)

// APIKeyRecord is one issued credential as held by the persistent store.
// The plaintext secret is returned exactly once at creation and never
// persisted; SecretDigest holds the vault-encrypted form, LookupKey the
// deterministic digest used for cache lookups.
type APIKeyRecord struct {
	ID           int64      `json:"id"`
	Name         string     `json:"name"`
	Status       KeyStatus  `json:"status"`
	SecretDigest string     `json:"secret_digest"`
	SecretHint   string     `json:"secret_hint"`
	LookupKey    string     `json:"lookup_key"`
	CreatedAt    time.Time  `json:"created_at"`
	RevokedAt    *time.Time `json:"revoked_at,omitempty"`
	CreatedBy    string     `json:"created_by"`
}

// IsActive reports whether the record may authenticate requests.
func (r *APIKeyRecord) IsActive() bool {
	return r != nil && r.Status == KeyStatusActive
}

// CacheEntry is the in-memory projection of an APIKeyRecord used on the
// request hot path. It carries enough to authorize and audit without
// re-touching the persistent store.
type CacheEntry struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Status    KeyStatus `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// entryFromRecord projects a store record onto its hot-path representation.
func entryFromRecord(rec *APIKeyRecord) CacheEntry {
	return CacheEntry{
		ID:        rec.ID,
		Name:      rec.Name,
		Status:    rec.Status,
		CreatedAt: rec.CreatedAt,
	}
}

// SessionPrincipal is the identity asserted by a verified session token.
// Request-scoped; never persisted.
type SessionPrincipal struct {
	Subject   string    `json:"sub"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	IssuedAt  time.Time `json:"iat"`
	ExpiresAt time.Time `json:"exp"`
}

// PrincipalKind distinguishes which authentication path produced a Principal.
type PrincipalKind string

const (
	PrincipalKindToken  PrincipalKind = AUTH_MODE_TOKEN
	PrincipalKindAPIKey PrincipalKind = AUTH_MODE_APIKEY
)

// Principal is the normalized authenticated identity attached to a request.
// Exactly one of Session / Key is populated, matching Kind.
type Principal struct {
	Kind    PrincipalKind     `json:"kind"`
	Session *SessionPrincipal `json:"session,omitempty"`
	Key     *CacheEntry       `json:"key,omitempty"`
}

// Credentials is the credential material extracted from an inbound request.
// Either or both fields may be empty.
type Credentials struct {
	BearerToken string
	APIKey      string
}

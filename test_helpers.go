package authgate

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// =============================================================================
// Mock Key Store with Error Injection
// =============================================================================

// mockKeyStore is an in-memory KeyStore with per-operation error injection.
// Safe for concurrent use so cache concurrency tests can share one instance.
type mockKeyStore struct {
	mu     sync.Mutex
	data   map[string]*APIKeyRecord // lookupKey -> record
	nextID int64

	// Error injection flags
	listError   error
	getError    error
	createError error
	revokeError error

	// listCalls counts ListActiveKeys invocations, for re-warm assertions.
	listCalls int

	// getDelay simulates a slow store for fallback timeout tests.
	getDelay time.Duration
}

func newMockKeyStore() *mockKeyStore {
	return &mockKeyStore{
		data: make(map[string]*APIKeyRecord),
	}
}

func (m *mockKeyStore) ListActiveKeys(ctx context.Context) ([]*APIKeyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.listCalls++
	if m.listError != nil {
		return nil, m.listError
	}

	records := make([]*APIKeyRecord, 0, len(m.data))
	for _, rec := range m.data {
		if rec.IsActive() {
			clone := *rec
			records = append(records, &clone)
		}
	}
	return records, nil
}

func (m *mockKeyStore) GetKeyByLookupKey(ctx context.Context, lookupKey string) (*APIKeyRecord, error) {
	if m.getDelay > 0 {
		select {
		case <-ctx.Done():
			return nil, NewTimeoutError("store_get", ctx.Err())
		case <-time.After(m.getDelay):
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.getError != nil {
		return nil, m.getError
	}
	rec, ok := m.data[lookupKey]
	if !ok {
		return nil, ErrKeyNotFound
	}
	clone := *rec
	return &clone, nil
}

func (m *mockKeyStore) GetKeyByID(ctx context.Context, id int64) (*APIKeyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.getError != nil {
		return nil, m.getError
	}
	for _, rec := range m.data {
		if rec.ID == id {
			clone := *rec
			return &clone, nil
		}
	}
	return nil, ErrKeyNotFound
}

func (m *mockKeyStore) Create(ctx context.Context, rec *APIKeyRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.createError != nil {
		return m.createError
	}
	if rec.LookupKey == "" {
		return NewValidationError("lookup_key", "cannot be empty")
	}
	if _, exists := m.data[rec.LookupKey]; exists {
		return NewValidationError("lookup_key", "already exists")
	}

	m.nextID++
	rec.ID = m.nextID
	clone := *rec
	m.data[rec.LookupKey] = &clone
	return nil
}

func (m *mockKeyStore) Revoke(ctx context.Context, id int64) (*APIKeyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.revokeError != nil {
		return nil, m.revokeError
	}
	for _, rec := range m.data {
		if rec.ID == id {
			if rec.Status != KeyStatusRevoked {
				now := time.Now().UTC()
				rec.Status = KeyStatusRevoked
				rec.RevokedAt = &now
			}
			clone := *rec
			return &clone, nil
		}
	}
	return nil, ErrKeyNotFound
}

// seed inserts a record directly, bypassing error injection.
func (m *mockKeyStore) seed(rec *APIKeyRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rec.ID == 0 {
		m.nextID++
		rec.ID = m.nextID
	} else if rec.ID > m.nextID {
		m.nextID = rec.ID
	}
	clone := *rec
	m.data[rec.LookupKey] = &clone
}

// =============================================================================
// Test Record Builders
// =============================================================================

// NewTestKeyRecord creates a valid active record for the given secret.
func NewTestKeyRecord(t *testing.T, secret string, name string) *APIKeyRecord {
	lookupKey, err := LookupKeyFromSecret(secret)
	if err != nil {
		t.Fatalf("Failed to derive lookup key: %v", err)
	}
	return &APIKeyRecord{
		Name:       name,
		Status:     KeyStatusActive,
		SecretHint: SecretHint(secret),
		LookupKey:  lookupKey,
		CreatedAt:  time.Now().UTC(),
		CreatedBy:  "test",
	}
}

// GenerateTestSecret generates a valid test secret.
func GenerateTestSecret(t *testing.T) string {
	secret, err := GenerateSecret(TEST_SECRET_PREFIX, DEFAULT_SECRET_LENGTH)
	if err != nil {
		t.Fatalf("Failed to generate test secret: %v", err)
	}
	return secret
}

// =============================================================================
// Test Principal Builders
// =============================================================================

// NewTestAdminPrincipal creates a session principal holding the admin role.
func NewTestAdminPrincipal() *Principal {
	return &Principal{
		Kind: PrincipalKindToken,
		Session: &SessionPrincipal{
			Subject:   "admin-user",
			Email:     "admin@example.com",
			Role:      ROLE_ADMIN,
			IssuedAt:  time.Now().UTC(),
			ExpiresAt: time.Now().UTC().Add(time.Hour),
		},
	}
}

// NewTestUserPrincipal creates a session principal without the admin role.
func NewTestUserPrincipal() *Principal {
	return &Principal{
		Kind: PrincipalKindToken,
		Session: &SessionPrincipal{
			Subject:   "plain-user",
			Email:     "user@example.com",
			Role:      "member",
			IssuedAt:  time.Now().UTC(),
			ExpiresAt: time.Now().UTC().Add(time.Hour),
		},
	}
}

// =============================================================================
// Test Assertion Helpers
// =============================================================================

// AssertErrorType checks if an error matches the expected type
func AssertErrorType(t *testing.T, err error, expectedType error) {
	assert.Error(t, err)
	assert.True(t, errors.Is(err, expectedType),
		"Expected error type %v, got %v", expectedType, err)
}

// AssertHTTPStatus checks if an error maps to the expected HTTP status code
func AssertHTTPStatus(t *testing.T, err error, expectedStatus int) {
	status := ErrorToHTTPStatus(err)
	assert.Equal(t, expectedStatus, status,
		"Expected HTTP status %d, got %d for error: %v", expectedStatus, status, err)
}

// AssertJSONResponse checks if a response body contains expected JSON structure
func AssertJSONResponse(t *testing.T, body []byte, expectedKeys ...string) {
	var response map[string]interface{}
	err := json.Unmarshal(body, &response)
	assert.NoError(t, err, "Response should be valid JSON")

	for _, key := range expectedKeys {
		assert.Contains(t, response, key, "Response should contain key: %s", key)
	}
}

// =============================================================================
// Test Component Builders
// =============================================================================

// NewTestVault creates a vault with a fixed test master key.
func NewTestVault(t *testing.T) *SecretVault {
	vault, err := NewSecretVault("test-master-key-0123456789", DEFAULT_IV_LENGTH)
	if err != nil {
		t.Fatalf("Failed to create test vault: %v", err)
	}
	return vault
}

// NewTestKeyCache creates a warmed cache over the given store, without a bus.
func NewTestKeyCache(t *testing.T, store KeyStore) *KeyCache {
	cache, err := NewKeyCache(store, nil, KeyCacheConfig{
		StoreTimeout: time.Second,
	}, NewTestLogger(t), nil)
	if err != nil {
		t.Fatalf("Failed to create test cache: %v", err)
	}
	if err := cache.WarmUp(context.Background()); err != nil {
		t.Fatalf("Failed to warm test cache: %v", err)
	}
	t.Cleanup(cache.Close)
	return cache
}

// NewTestAdminService creates a fully wired admin service over a mock store.
func NewTestAdminService(t *testing.T) (*KeyAdminService, *mockKeyStore, *KeyCache) {
	store := newMockKeyStore()
	cache := NewTestKeyCache(t, store)
	logger := NewTestLogger(t)
	admin, err := NewKeyAdminService(store, NewTestVault(t), cache, logger, NewAuditLogger(logger), TEST_SECRET_PREFIX, DEFAULT_SECRET_LENGTH)
	if err != nil {
		t.Fatalf("Failed to create test admin service: %v", err)
	}
	return admin, store, cache
}

// =============================================================================
// Test Logger Helpers
// =============================================================================

// NewTestLogger creates a test logger that outputs to testing.T
func NewTestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t)
}

// NewSilentLogger creates a no-op logger for tests that don't need output
func NewSilentLogger() *zap.Logger {
	return zap.NewNop()
}

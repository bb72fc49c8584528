package authgate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyAdminServiceCreateKey(t *testing.T) {
	admin, store, cache := NewTestAdminService(t)

	rec, secret, err := admin.CreateKey(context.Background(), "billing-service", "ops@example.com")
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.NotZero(t, rec.ID)
	assert.Equal(t, "billing-service", rec.Name)
	assert.Equal(t, KeyStatusActive, rec.Status)
	assert.Equal(t, "ops@example.com", rec.CreatedBy)
	assert.NotEmpty(t, secret)

	t.Run("plaintext never persisted", func(t *testing.T) {
		stored, err := store.GetKeyByID(context.Background(), rec.ID)
		require.NoError(t, err)
		assert.NotContains(t, stored.SecretDigest, secret)
		assert.NotEqual(t, secret, stored.SecretDigest)
		assert.NotEqual(t, secret, stored.LookupKey)
	})

	t.Run("served from cache immediately", func(t *testing.T) {
		entry, err := cache.Lookup(context.Background(), secret)
		require.NoError(t, err)
		assert.Equal(t, rec.ID, entry.ID)
	})

	t.Run("empty name rejected", func(t *testing.T) {
		_, _, err := admin.CreateKey(context.Background(), "", "ops")
		AssertErrorType(t, err, ErrInvalidInput)
	})
}

func TestKeyAdminServiceCreateKeyStoreFailure(t *testing.T) {
	admin, store, cache := NewTestAdminService(t)
	store.createError = ErrStoreUnavailable

	_, _, err := admin.CreateKey(context.Background(), "doomed", "ops")
	AssertErrorType(t, err, ErrExternal)
	assert.Equal(t, 0, cache.Size(), "failed create must not pollute the cache")
}

func TestKeyAdminServiceRevokeKey(t *testing.T) {
	admin, _, cache := NewTestAdminService(t)

	rec, secret, err := admin.CreateKey(context.Background(), "short-lived", "ops")
	require.NoError(t, err)

	revoked, err := admin.RevokeKey(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, KeyStatusRevoked, revoked.Status)
	assert.NotNil(t, revoked.RevokedAt)

	// Revocation is observable on this process the moment RevokeKey returns
	_, err = cache.Lookup(context.Background(), secret)
	AssertErrorType(t, err, ErrCacheMiss)

	t.Run("re-revocation is a no-op", func(t *testing.T) {
		again, err := admin.RevokeKey(context.Background(), rec.ID)
		require.NoError(t, err)
		assert.Equal(t, KeyStatusRevoked, again.Status)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := admin.RevokeKey(context.Background(), 99999)
		AssertErrorType(t, err, ErrNotFound)
	})
}

func TestKeyAdminServiceRevealSecret(t *testing.T) {
	admin, _, _ := NewTestAdminService(t)

	rec, secret, err := admin.CreateKey(context.Background(), "revealable", "ops")
	require.NoError(t, err)

	revealed, err := admin.RevealSecret(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, secret, revealed, "reveal must return the original plaintext")

	t.Run("unknown id", func(t *testing.T) {
		_, err := admin.RevealSecret(context.Background(), 99999)
		AssertErrorType(t, err, ErrNotFound)
	})
}

func TestKeyAdminServiceListAndGet(t *testing.T) {
	admin, _, _ := NewTestAdminService(t)

	first, _, err := admin.CreateKey(context.Background(), "first", "ops")
	require.NoError(t, err)
	second, _, err := admin.CreateKey(context.Background(), "second", "ops")
	require.NoError(t, err)

	records, err := admin.ListActiveKeys(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 2)

	_, err = admin.RevokeKey(context.Background(), first.ID)
	require.NoError(t, err)

	records, err = admin.ListActiveKeys(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, second.ID, records[0].ID)

	got, err := admin.GetKey(context.Background(), second.ID)
	require.NoError(t, err)
	assert.Equal(t, "second", got.Name)
}

func TestNewKeyAdminServiceValidation(t *testing.T) {
	store := newMockKeyStore()
	cache := NewTestKeyCache(t, store)
	vault := NewTestVault(t)
	logger := NewSilentLogger()

	tests := []struct {
		name string
		fn   func() (*KeyAdminService, error)
	}{
		{"nil store", func() (*KeyAdminService, error) {
			return NewKeyAdminService(nil, vault, cache, logger, nil, "", 0)
		}},
		{"nil vault", func() (*KeyAdminService, error) {
			return NewKeyAdminService(store, nil, cache, logger, nil, "", 0)
		}},
		{"nil cache", func() (*KeyAdminService, error) {
			return NewKeyAdminService(store, vault, nil, logger, nil, "", 0)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, err := tt.fn()
			assert.Nil(t, service)
			AssertErrorType(t, err, ErrInvalidConfiguration)
		})
	}

	t.Run("defaults applied", func(t *testing.T) {
		service, err := NewKeyAdminService(store, vault, cache, logger, nil, "", 0)
		require.NoError(t, err)
		assert.Equal(t, DEFAULT_SECRET_PREFIX, service.secretPrefix)
		assert.Equal(t, DEFAULT_SECRET_LENGTH, service.secretLength)
	})
}

func TestKeyLifecycleEndToEnd(t *testing.T) {
	admin, _, cache := NewTestAdminService(t)

	// Issue
	rec, secret, err := admin.CreateKey(context.Background(), "lifecycle", "ops")
	require.NoError(t, err)

	// Authenticate
	entry, err := cache.Lookup(context.Background(), secret)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, entry.ID)

	// Revoke
	_, err = admin.RevokeKey(context.Background(), rec.ID)
	require.NoError(t, err)

	// Reject
	_, err = cache.Lookup(context.Background(), secret)
	AssertErrorType(t, err, ErrCacheMiss)

	// Still auditable: record retained, secret still revealable
	kept, err := admin.GetKey(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, KeyStatusRevoked, kept.Status)

	revealed, err := admin.RevealSecret(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, secret, revealed)
}

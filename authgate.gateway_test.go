package authgate

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSigningSecret = "test-signing-secret-0123456789abcdef"

func newTestGateway(t *testing.T, cache *KeyCache) *AuthGateway {
	logger := NewTestLogger(t)
	gateway, err := NewAuthGateway(GatewayConfig{
		SigningSecret: testSigningSecret,
	}, cache, logger, nil, NewAuditLogger(logger))
	require.NoError(t, err)
	return gateway
}

func signTestToken(t *testing.T, claims jwt.MapClaims, secret string) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func validTokenClaims() jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		CLAIM_SUBJECT: "user-1",
		CLAIM_EMAIL:   "user@example.com",
		CLAIM_ROLE:    "member",
		"iat":         now.Unix(),
		"exp":         now.Add(time.Hour).Unix(),
	}
}

func TestNewAuthGateway(t *testing.T) {
	store := newMockKeyStore()
	cache := NewTestKeyCache(t, store)

	t.Run("nil cache rejected", func(t *testing.T) {
		_, err := NewAuthGateway(GatewayConfig{SigningSecret: testSigningSecret}, nil, NewSilentLogger(), nil, nil)
		AssertErrorType(t, err, ErrInvalidConfiguration)
	})

	t.Run("short signing secret rejected", func(t *testing.T) {
		_, err := NewAuthGateway(GatewayConfig{SigningSecret: "short"}, cache, NewSilentLogger(), nil, nil)
		AssertErrorType(t, err, ErrInvalidConfiguration)
	})

	t.Run("defaults applied", func(t *testing.T) {
		gateway, err := NewAuthGateway(GatewayConfig{SigningSecret: testSigningSecret}, cache, NewSilentLogger(), nil, nil)
		require.NoError(t, err)
		assert.Equal(t, DEFAULT_TOKEN_ALGORITHM, gateway.cfg.Algorithm)
		assert.Equal(t, DEFAULT_TOKEN_CACHE_SIZE, gateway.cfg.TokenCacheSize)
	})
}

func TestGatewayTokenAuthentication(t *testing.T) {
	store := newMockKeyStore()
	gateway := newTestGateway(t, NewTestKeyCache(t, store))

	t.Run("valid token", func(t *testing.T) {
		token := signTestToken(t, validTokenClaims(), testSigningSecret)

		principal, err := gateway.Authenticate(context.Background(), Credentials{BearerToken: token})
		require.NoError(t, err)
		require.NotNil(t, principal)
		assert.Equal(t, PrincipalKindToken, principal.Kind)
		require.NotNil(t, principal.Session)
		assert.Equal(t, "user-1", principal.Session.Subject)
		assert.Equal(t, "user@example.com", principal.Session.Email)
		assert.Equal(t, "member", principal.Session.Role)
		assert.Nil(t, principal.Key)
	})

	t.Run("cached verification", func(t *testing.T) {
		token := signTestToken(t, validTokenClaims(), testSigningSecret)

		first, err := gateway.Authenticate(context.Background(), Credentials{BearerToken: token})
		require.NoError(t, err)
		second, err := gateway.Authenticate(context.Background(), Credentials{BearerToken: token})
		require.NoError(t, err)
		assert.Equal(t, first.Session.Subject, second.Session.Subject)
	})
}

func TestGatewayTokenRejections(t *testing.T) {
	store := newMockKeyStore()
	gateway := newTestGateway(t, NewTestKeyCache(t, store))

	expiredClaims := validTokenClaims()
	expiredClaims["exp"] = time.Now().Add(-time.Hour).Unix()

	missingExp := validTokenClaims()
	delete(missingExp, "exp")

	missingSub := validTokenClaims()
	delete(missingSub, CLAIM_SUBJECT)
	missingEmail := validTokenClaims()
	delete(missingEmail, CLAIM_EMAIL)
	missingRole := validTokenClaims()
	delete(missingRole, CLAIM_ROLE)

	tests := []struct {
		name  string
		token string
	}{
		{"expired token", signTestToken(t, expiredClaims, testSigningSecret)},
		{"missing exp claim", signTestToken(t, missingExp, testSigningSecret)},
		{"wrong signing secret", signTestToken(t, validTokenClaims(), "some-other-secret-0123456789abcdef")},
		{"garbage token", "not.a.jwt"},
		{"empty segments", ".."},
		{"missing sub claim", signTestToken(t, missingSub, testSigningSecret)},
		{"missing email claim", signTestToken(t, missingEmail, testSigningSecret)},
		{"missing role claim", signTestToken(t, missingRole, testSigningSecret)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			principal, err := gateway.Authenticate(context.Background(), Credentials{BearerToken: tt.token})
			assert.Nil(t, principal)
			// Every rejection is the same uniform error
			assert.ErrorIs(t, err, ErrUnauthorized)
			assert.Equal(t, ERROR_UNAUTHORIZED, err.Error())
		})
	}
}

func TestGatewayAPIKeyAuthentication(t *testing.T) {
	store := newMockKeyStore()
	secret := GenerateTestSecret(t)
	rec := NewTestKeyRecord(t, secret, "service-key")
	store.seed(rec)

	gateway := newTestGateway(t, NewTestKeyCache(t, store))

	t.Run("valid key", func(t *testing.T) {
		principal, err := gateway.Authenticate(context.Background(), Credentials{APIKey: secret})
		require.NoError(t, err)
		assert.Equal(t, PrincipalKindAPIKey, principal.Kind)
		require.NotNil(t, principal.Key)
		assert.Equal(t, "service-key", principal.Key.Name)
		assert.Nil(t, principal.Session)
	})

	t.Run("unknown key", func(t *testing.T) {
		principal, err := gateway.Authenticate(context.Background(), Credentials{APIKey: "agk_doesNotExist123"})
		assert.Nil(t, principal)
		assert.ErrorIs(t, err, ErrUnauthorized)
	})
}

func TestGatewayTokenPrecedence(t *testing.T) {
	store := newMockKeyStore()
	secret := GenerateTestSecret(t)
	store.seed(NewTestKeyRecord(t, secret, "valid-key"))

	gateway := newTestGateway(t, NewTestKeyCache(t, store))

	// An invalid bearer token plus a valid API key must be rejected: the
	// token path wins and the key is ignored entirely
	principal, err := gateway.Authenticate(context.Background(), Credentials{
		BearerToken: "invalid-token",
		APIKey:      secret,
	})
	assert.Nil(t, principal)
	assert.ErrorIs(t, err, ErrUnauthorized)

	// Both valid: the token identity wins
	token := signTestToken(t, validTokenClaims(), testSigningSecret)
	principal, err = gateway.Authenticate(context.Background(), Credentials{
		BearerToken: token,
		APIKey:      secret,
	})
	require.NoError(t, err)
	assert.Equal(t, PrincipalKindToken, principal.Kind)
}

func TestGatewayNoCredentials(t *testing.T) {
	store := newMockKeyStore()
	gateway := newTestGateway(t, NewTestKeyCache(t, store))

	principal, err := gateway.Authenticate(context.Background(), Credentials{})
	assert.Nil(t, principal)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestGatewayIssueToken(t *testing.T) {
	store := newMockKeyStore()
	gateway := newTestGateway(t, NewTestKeyCache(t, store))

	token, err := gateway.IssueToken("user-9", "nine@example.com", ROLE_ADMIN)
	require.NoError(t, err)

	principal, err := gateway.Authenticate(context.Background(), Credentials{BearerToken: token})
	require.NoError(t, err)
	assert.Equal(t, "user-9", principal.Session.Subject)
	assert.Equal(t, ROLE_ADMIN, principal.Session.Role)

	t.Run("missing fields rejected", func(t *testing.T) {
		_, err := gateway.IssueToken("", "a@b.c", "member")
		assert.Error(t, err)
		_, err = gateway.IssueToken("u", "", "member")
		assert.Error(t, err)
		_, err = gateway.IssueToken("u", "a@b.c", "")
		assert.Error(t, err)
	})
}

func TestGatewayRevokedKeyRejectedAfterInvalidation(t *testing.T) {
	admin, _, cache := NewTestAdminService(t)
	gateway := newTestGateway(t, cache)

	rec, secret, err := admin.CreateKey(context.Background(), "to-be-revoked", "ops")
	require.NoError(t, err)

	_, err = gateway.Authenticate(context.Background(), Credentials{APIKey: secret})
	require.NoError(t, err)

	_, err = admin.RevokeKey(context.Background(), rec.ID)
	require.NoError(t, err)

	principal, err := gateway.Authenticate(context.Background(), Credentials{APIKey: secret})
	assert.Nil(t, principal)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

package authgate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMasterKey = "test-master-key-0123456789"

func validConfig() *Config {
	return &Config{
		MasterKey:     testMasterKey,
		SigningSecret: testSigningSecret,
	}
}

func TestConfigValidate(t *testing.T) {
	t.Run("missing master key", func(t *testing.T) {
		cfg := validConfig()
		cfg.MasterKey = ""
		AssertErrorType(t, cfg.Validate(), ErrInvalidConfiguration)
	})

	t.Run("short master key", func(t *testing.T) {
		cfg := validConfig()
		cfg.MasterKey = "too-short"
		assert.ErrorIs(t, cfg.Validate(), ErrMasterKeyRequired)
	})

	t.Run("missing signing secret", func(t *testing.T) {
		cfg := validConfig()
		cfg.SigningSecret = ""
		assert.ErrorIs(t, cfg.Validate(), ErrSigningSecretRequired)
	})

	t.Run("defaults resolved in place", func(t *testing.T) {
		cfg := validConfig()
		require.NoError(t, cfg.Validate())

		assert.Equal(t, DEFAULT_IV_LENGTH, cfg.IVLength)
		assert.Equal(t, DEFAULT_TOKEN_ALGORITHM, cfg.TokenAlgorithm)
		assert.Equal(t, DEFAULT_TOKEN_EXPIRY, cfg.TokenExpiry)
		assert.Equal(t, DEFAULT_BUS_NAMESPACE, cfg.BusNamespace)
		assert.Equal(t, DEFAULT_REWARM_INTERVAL, cfg.RewarmInterval)
		assert.Equal(t, DEFAULT_STORE_TIMEOUT, cfg.StoreTimeout)
		assert.Equal(t, DEFAULT_SECRET_PREFIX, cfg.SecretPrefix)
		assert.Equal(t, DEFAULT_SECRET_LENGTH, cfg.SecretLength)
		assert.Equal(t, DEFAULT_HEADER_API_KEY, cfg.APIKeyHeader)
	})

	t.Run("explicit values kept", func(t *testing.T) {
		cfg := validConfig()
		cfg.RewarmInterval = time.Minute
		cfg.SecretPrefix = "svc"
		require.NoError(t, cfg.Validate())

		assert.Equal(t, time.Minute, cfg.RewarmInterval)
		assert.Equal(t, "svc", cfg.SecretPrefix)
	})

	t.Run("secret length below minimum falls back", func(t *testing.T) {
		cfg := validConfig()
		cfg.SecretLength = 4
		require.NoError(t, cfg.Validate())
		assert.Equal(t, DEFAULT_SECRET_LENGTH, cfg.SecretLength)
	})
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv(ENV_MASTER_KEY, testMasterKey)
	t.Setenv(ENV_TOKEN_SECRET, testSigningSecret)
	t.Setenv(ENV_BUS_ADDR, "redis:6379")
	t.Setenv(ENV_BUS_NAMESPACE, "myservice")
	t.Setenv(ENV_SECRET_LENGTH, "48")
	t.Setenv(ENV_REWARM_INTERVAL, "90s")

	cfg := ConfigFromEnv()
	assert.Equal(t, testMasterKey, cfg.MasterKey)
	assert.Equal(t, testSigningSecret, cfg.SigningSecret)
	assert.Equal(t, "redis:6379", cfg.BusAddr)
	assert.Equal(t, "myservice", cfg.BusNamespace)
	assert.Equal(t, 48, cfg.SecretLength)
	assert.Equal(t, 90*time.Second, cfg.RewarmInterval)

	require.NoError(t, cfg.Validate())
}

func TestConfigFromEnvInvalidValues(t *testing.T) {
	t.Setenv(ENV_SECRET_LENGTH, "not-a-number")
	t.Setenv(ENV_REWARM_INTERVAL, "not-a-duration")

	cfg := ConfigFromEnv()
	assert.Equal(t, 0, cfg.SecretLength, "unparseable int falls back to zero value")
	assert.Equal(t, time.Duration(0), cfg.RewarmInterval, "unparseable duration falls back to zero value")
}

package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	env := map[string]string{
		"GATEWAY_PRIMARY__ENV":                 "test",
		"GATEWAY_SERVER__PORT":                 "8080",
		"GATEWAY_SERVER__READ_TIMEOUT":         "5s",
		"GATEWAY_SERVER__WRITE_TIMEOUT":        "10s",
		"GATEWAY_SERVER__IDLE_TIMEOUT":         "60s",
		"GATEWAY_SERVER__REQUEST_TIMEOUT":      "15s",
		"GATEWAY_SERVER__PUBLIC_URL":           "https://billing.example.com",
		"GATEWAY_DATABASE__HOST":               "localhost",
		"GATEWAY_DATABASE__PORT":               "5432",
		"GATEWAY_DATABASE__USER":               "user",
		"GATEWAY_DATABASE__PASSWORD":           "pass",
		"GATEWAY_DATABASE__NAME":               "billing",
		"GATEWAY_DATABASE__SSL_MODE":           "disable",
		"GATEWAY_DATABASE__MAX_OPEN_CONNS":     "10",
		"GATEWAY_DATABASE__MAX_IDLE_CONNS":     "2",
		"GATEWAY_DATABASE__CONN_MAX_LIFETIME":  "1h",
		"GATEWAY_DATABASE__CONN_MAX_IDLE_TIME": "30m",
		"GATEWAY_GATEWAY__CONFIG_ID":           "3",
		"GATEWAY_GATEWAY__BASE_URL":            "https://api.razorpay.com",
		"GATEWAY_GATEWAY__TIMEOUT":             "10s",
		"GATEWAY_GATEWAY__KEY_ID":              "rzp_live_key",
		"GATEWAY_GATEWAY__SECRET_KEY":          "live_secret",
		"GATEWAY_SESSION__ORDER_TTL":           "30m",
		"GATEWAY_SESSION__LOCK_TTL":            "30s",
	}
	for k, v := range env {
		t.Setenv(k, v)
	}
}

func TestLoadConfig(t *testing.T) {
	setBaseEnv(t)

	cfg, err := LoadConfig()

	require.NoError(t, err)
	assert.Equal(t, int64(3), cfg.Gateway.ConfigID)
	assert.Equal(t, 30*time.Minute, cfg.Session.OrderTTL)
	assert.Equal(t, uint32(5), cfg.Breaker.ConsecutiveFailures)
	assert.Equal(t, int32(3), cfg.Retry.MaxRetries)

	keyID, secret, err := cfg.Gateway.Credentials()
	require.NoError(t, err)
	assert.Equal(t, "rzp_live_key", keyID)
	assert.Equal(t, "live_secret", secret)
}

func TestLoadConfig_TestModeRequiresTestKeys(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("GATEWAY_GATEWAY__TEST_MODE", "true")

	_, err := LoadConfig()

	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Contains(t, cfgErr.Error(), "test key id")
}

func TestLoadConfig_TestModeSelectsTestKeys(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("GATEWAY_GATEWAY__TEST_MODE", "true")
	t.Setenv("GATEWAY_GATEWAY__TEST_KEY_ID", "rzp_test_key")
	t.Setenv("GATEWAY_GATEWAY__TEST_SECRET_KEY", "test_secret")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	keyID, secret, err := cfg.Gateway.Credentials()
	require.NoError(t, err)
	assert.Equal(t, "rzp_test_key", keyID)
	assert.Equal(t, "test_secret", secret)
}

func TestLoadConfig_MissingRequired(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("GATEWAY_SERVER__PUBLIC_URL", "")

	_, err := LoadConfig()

	var cfgErr *ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestDatabaseConfig_ConnString(t *testing.T) {
	c := DatabaseConfig{User: "u", Password: "p", Host: "h", Port: 5432, Name: "n", SSLMode: "disable"}

	assert.Equal(t, "postgres://u:p@h:5432/n?sslmode=disable", c.ConnString())
}

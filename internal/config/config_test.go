package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "redis", cfg.Storage.Type)
	assert.Equal(t, "localhost", cfg.Storage.Redis.Host)
	assert.Equal(t, 6379, cfg.Storage.Redis.Port)
	assert.Equal(t, 5*time.Minute, cfg.Storage.SweepInterval)

	assert.Equal(t, 800*time.Millisecond, cfg.Admission.Timeout)
	assert.False(t, cfg.Admission.FailClosed)

	assert.Equal(t, 100, cfg.Quarantine.Threshold)
	assert.Equal(t, time.Minute, cfg.Quarantine.Window)
	assert.Equal(t, time.Hour, cfg.Quarantine.BlockDuration)

	assert.Equal(t, 300, cfg.Tiers.IP.Default.Limit)
	assert.Equal(t, time.Minute, cfg.Tiers.IP.Default.Window)
	assert.Equal(t, 600, cfg.Tiers.User.Default.Limit)
	assert.Equal(t, 5000, cfg.Tiers.Org.Default.Limit)
	assert.Equal(t, 1000, cfg.Tiers.APIKey.Default.Limit)
}

func TestLoad_DefaultActionOverrides(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	login, ok := cfg.Tiers.IP.Actions["login"]
	require.True(t, ok, "IP tier ships a login override")
	assert.Equal(t, 20, login.Limit)
	assert.Equal(t, time.Minute, login.Window)

	reset, ok := cfg.Tiers.User.Actions["password_reset"]
	require.True(t, ok, "user tier ships a password_reset override")
	assert.Equal(t, 5, reset.Limit)
	assert.Equal(t, 15*time.Minute, reset.Window)

	assert.Empty(t, cfg.Tiers.Org.Actions)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("STORAGE_TYPE", "memory")
	t.Setenv("ADMISSION_FAIL_MODE", "closed")
	t.Setenv("ADMISSION_TIMEOUT_MS", "250")
	t.Setenv("QUARANTINE_THRESHOLD", "42")
	t.Setenv("RATE_LIMIT_IP_REQUESTS", "10")
	t.Setenv("RATE_LIMIT_IP_WINDOW_SECONDS", "120")
	t.Setenv("RATE_LIMIT_IP_ACTIONS", "export:3:600")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Storage.Type)
	assert.True(t, cfg.Admission.FailClosed)
	assert.Equal(t, 250*time.Millisecond, cfg.Admission.Timeout)
	assert.Equal(t, 42, cfg.Quarantine.Threshold)

	assert.Equal(t, 10, cfg.Tiers.IP.Default.Limit)
	assert.Equal(t, 2*time.Minute, cfg.Tiers.IP.Default.Window)

	export, ok := cfg.Tiers.IP.Actions["export"]
	require.True(t, ok)
	assert.Equal(t, 3, export.Limit)
	assert.Equal(t, 10*time.Minute, export.Window)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name  string
		key   string
		value string
	}{
		{"unknown storage type", "STORAGE_TYPE", "cassandra"},
		{"non numeric redis port", "REDIS_PORT", "not-a-port"},
		{"bad fail mode", "ADMISSION_FAIL_MODE", "maybe"},
		{"negative threshold", "QUARANTINE_THRESHOLD", "-1"},
		{"zero tier limit", "RATE_LIMIT_IP_REQUESTS", "0"},
		{"window below a second", "RATE_LIMIT_IP_WINDOW_SECONDS", "0"},
		{"malformed action override", "RATE_LIMIT_IP_ACTIONS", "login:20"},
		{"action override with zero limit", "RATE_LIMIT_IP_ACTIONS", "login:0:60"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

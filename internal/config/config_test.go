package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/nostrauth")
	t.Setenv("JWT_SECRET", strings.Repeat("j", 32))
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Environment)
	assert.False(t, cfg.Development())
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.RefreshTokenTTL)
	assert.Equal(t, 5*time.Minute, cfg.ChallengeTTL)
	assert.Equal(t, int64(60), cfg.CallerRateLimit)
	assert.Equal(t, time.Minute, cfg.CallerRateWindow)
	assert.Equal(t, int64(10), cfg.AccountRateLimit)
	assert.Equal(t, 15*time.Minute, cfg.AccountRateWindow)
	assert.Empty(t, cfg.CORSAllowedOrigins)
	assert.Empty(t, cfg.TrustedProxies)
	assert.False(t, cfg.EventsEnabled)
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("APP_ENV", "development")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 192.168.1.1")
	t.Setenv("ACCESS_TOKEN_TTL", "5m")
	t.Setenv("CALLER_RATE_LIMIT", "3")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("EVENTS_ENABLED", "yes")
	t.Setenv("DUID_SERVER_SECRET", "duid-secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.Development())
	assert.Equal(t, []string{"10.0.0.0/8", "192.168.1.1"}, cfg.TrustedProxies)
	assert.Equal(t, 5*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, int64(3), cfg.CallerRateLimit)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.True(t, cfg.EventsEnabled)
	assert.Equal(t, "duid-secret", cfg.DUIDSecret)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing database", map[string]string{"DATABASE_URL": ""}},
		{"short jwt secret", map[string]string{"JWT_SECRET": "short"}},
		{"zero caller limit", map[string]string{"CALLER_RATE_LIMIT": "0"}},
		{"negative account window", map[string]string{"ACCOUNT_RATE_WINDOW": "-1m"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

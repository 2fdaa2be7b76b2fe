package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opengate/api/internal/middleware"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, 3000, cfg.APIPort)
	assert.Contains(t, cfg.DatabaseURL, "postgres://")
	assert.Equal(t, "localhost:6379", cfg.RedisURL)
	assert.Equal(t, "nats://localhost:4222", cfg.NATSURL)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, "migrations", cfg.MigrationsDir)
	assert.Equal(t, "admin", cfg.AdminUsername)
	assert.True(t, cfg.RateLimit.Enabled)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("API_PORT", "8080")
	t.Setenv("TOKEN_TTL_HOURS", "2")
	t.Setenv("RATE_LIMIT_ENABLED", "false")
	t.Setenv("RATE_LIMIT_LOGIN_LIMIT", "10")

	cfg := Load()

	assert.Equal(t, 8080, cfg.APIPort)
	assert.Equal(t, 2*time.Hour, cfg.TokenTTL)
	assert.False(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 10, cfg.GetRateLimitRuleForPath("/api/v1/auth/login").Limit)
}

func TestLoadIgnoresMalformedEnv(t *testing.T) {
	t.Setenv("API_PORT", "not-a-number")
	t.Setenv("RATE_LIMIT_ENABLED", "maybe")

	cfg := Load()
	assert.Equal(t, 3000, cfg.APIPort)
	assert.True(t, cfg.RateLimit.Enabled)
}

func TestGetRateLimitRuleForPath(t *testing.T) {
	cfg := Load()

	login := cfg.GetRateLimitRuleForPath("/api/v1/auth/login")
	assert.Equal(t, "/api/v1/auth/login", login.Path)
	assert.Equal(t, middleware.FixedWindow, login.Algorithm)
	assert.Equal(t, middleware.RateLimitByIP, login.Type)

	checkIn := cfg.GetRateLimitRuleForPath("/api/v1/access/check-in")
	assert.Equal(t, middleware.RateLimitByUser, checkIn.Type)
	assert.Equal(t, 30, checkIn.Limit)

	export := cfg.GetRateLimitRuleForPath("/api/v1/access/logs/export")
	assert.Equal(t, 10, export.Limit)

	// Unmatched paths fall back to the default rule.
	fallback := cfg.GetRateLimitRuleForPath("/api/v1/suppliers")
	assert.Equal(t, "*", fallback.Path)
	assert.Equal(t, 100, fallback.Limit)
}

func TestToMiddlewareConfig(t *testing.T) {
	rule := RateLimitRule{
		Limit:     5,
		Window:    90 * time.Second,
		Algorithm: middleware.TokenBucket,
		Type:      middleware.RateLimitByUser,
	}

	mc := rule.ToMiddlewareConfig()
	require.NotNil(t, mc)
	assert.Equal(t, 5, mc.Limit)
	assert.Equal(t, 90, mc.Window)
	assert.Equal(t, middleware.TokenBucket, mc.Algorithm)
	assert.Equal(t, middleware.RateLimitByUser, mc.Type)
}

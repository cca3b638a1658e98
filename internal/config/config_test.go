package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("TAB_SWITCH_LIMIT", "")
	t.Setenv("PASS_THRESHOLD", "")
	t.Setenv("HEARTBEAT_INTERVAL", "")

	cfg := FromEnv()
	assert.Equal(t, 1, cfg.TabSwitchLimit)
	assert.Equal(t, 80, cfg.PassThreshold)
	assert.Equal(t, 60*time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.True(t, cfg.EnableGuest)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("TAB_SWITCH_LIMIT", "3")
	t.Setenv("HEARTBEAT_INTERVAL", "30")
	t.Setenv("RETRY_BACKOFF", "250ms")
	t.Setenv("CORS_ORIGINS", " http://a.test , ,http://b.test")
	t.Setenv("ENABLE_GUEST", "no")
	t.Setenv("PUBLIC_URL", "https://lms.example")

	cfg := FromEnv()
	assert.Equal(t, 3, cfg.TabSwitchLimit)
	assert.Equal(t, 30*time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, 250*time.Millisecond, cfg.RetryBackoff)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
	assert.False(t, cfg.EnableGuest)
	assert.Equal(t, "https://lms.example/", cfg.PublicURL)
}

func TestEnvIntFallsBackOnGarbage(t *testing.T) {
	t.Setenv("PASS_THRESHOLD", "eighty")
	assert.Equal(t, 80, envInt("PASS_THRESHOLD", 80))
}

func TestCacheOnlyOnline(t *testing.T) {
	t.Setenv("REDIS_ADDR", "localhost:6379")

	t.Setenv("MODE", "")
	cfg := FromEnv()
	assert.Equal(t, ModeOffline, cfg.Mode)
	assert.False(t, cfg.CacheEnabled())

	t.Setenv("MODE", "online")
	assert.True(t, FromEnv().CacheEnabled())

	assert.False(t, Config{Mode: ModeOnline}.CacheEnabled())
}

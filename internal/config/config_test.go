package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "redis", cfg.CacheBackend)
	assert.Equal(t, "open", cfg.CacheFailurePolicy)
	assert.Equal(t, 600*time.Second, cfg.OrderTTL)
	assert.Equal(t, 6*time.Hour, cfg.HistoryTTL)
	assert.Equal(t, time.Hour, cfg.HistoryDayTTL)
	assert.Equal(t, 600*time.Second, cfg.MapTTL)
	assert.Equal(t, 600*time.Second, cfg.GoldTTL)
	assert.Equal(t, 500*time.Millisecond, cfg.CacheTimeout)
	assert.Equal(t, 5*time.Second, cfg.HandleTimeout)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Empty(t, cfg.NATSQueueGroup)
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("CACHE_BACKEND", " Memory ")
	t.Setenv("CACHE_FAILURE_POLICY", "CLOSED")
	t.Setenv("ORDER_TTL_SEC", "30")
	t.Setenv("CACHE_TIMEOUT_MS", "250")
	t.Setenv("NATS_QUEUE_GROUP", "deduper")
	t.Setenv("INCOMING_NATS_URL", "nats://ingest:4222")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "memory", cfg.CacheBackend)
	assert.Equal(t, "closed", cfg.CacheFailurePolicy)
	assert.Equal(t, 30*time.Second, cfg.OrderTTL)
	assert.Equal(t, 250*time.Millisecond, cfg.CacheTimeout)
	assert.Equal(t, "deduper", cfg.NATSQueueGroup)
	assert.Equal(t, "nats://ingest:4222", cfg.IncomingNATSURL)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadFromEnv_BadInteger(t *testing.T) {
	t.Setenv("ORDER_TTL_SEC", "ten minutes")

	_, err := LoadFromEnv()
	assert.ErrorContains(t, err, "failed to parse environment variables")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"log level", func(c *Config) { c.LogLevel = "trace" }, "invalid log level"},
		{"backend", func(c *Config) { c.CacheBackend = "memcached" }, "invalid cache backend"},
		{"redis url", func(c *Config) { c.RedisURL = "" }, "REDIS_URL is required"},
		{"policy", func(c *Config) { c.CacheFailurePolicy = "sometimes" }, "invalid cache failure policy"},
		{"nats", func(c *Config) { c.OutgoingNATSURL = "" }, "NATS URLs are required"},
		{"cache timeout", func(c *Config) { c.CacheTimeout = 0 }, "cache timeout"},
		{"order ttl", func(c *Config) { c.OrderTTL = 0 }, "order TTL"},
		{"history day ttl", func(c *Config) { c.HistoryDayTTL = 500 * time.Millisecond }, "history day TTL"},
		{"handle timeout", func(c *Config) { c.HandleTimeout = 0 }, "handle timeout"},
		{"shutdown", func(c *Config) { c.ShutdownTimeout = 0 }, "shutdown timeout"},
		{"port", func(c *Config) { c.HTTPPort = 70000 }, "invalid port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadFromEnv()
			require.NoError(t, err)

			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.wantErr)
		})
	}
}

func TestValidate_MemoryBackendNeedsNoRedis(t *testing.T) {
	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	cfg.CacheBackend = "memory"
	cfg.RedisURL = ""
	assert.NoError(t, cfg.Validate())
}

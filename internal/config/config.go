package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the dedup relay configuration.
type Config struct {
	// Cache
	RedisURL           string `env:"REDIS_URL" envDefault:"redis://localhost:6379"`
	RedisPassword      string `env:"REDIS_PASSWORD"`
	CacheBackend       string `env:"CACHE_BACKEND" envDefault:"redis"`
	CacheTimeoutMS     int    `env:"CACHE_TIMEOUT_MS" envDefault:"500"`
	CacheFailurePolicy string `env:"CACHE_FAILURE_POLICY" envDefault:"open"`

	// NATS
	IncomingNATSURL string `env:"INCOMING_NATS_URL" envDefault:"nats://localhost:4222"`
	OutgoingNATSURL string `env:"OUTGOING_NATS_URL" envDefault:"nats://localhost:4222"`
	NATSQueueGroup  string `env:"NATS_QUEUE_GROUP"`

	// Canonicalization
	ItemCatalogURL      string `env:"ITEM_CATALOG_URL" envDefault:"https://raw.githubusercontent.com/ao-data/ao-bin-dumps/master/formatted/items.txt"`
	LocationAliasesFile string `env:"LOCATION_ALIASES_FILE"`

	// Admission windows (parsed as seconds)
	OrderTTLSec      int `env:"ORDER_TTL_SEC" envDefault:"600"`
	HistoryTTLSec    int `env:"HISTORY_TTL_SEC" envDefault:"21600"`
	HistoryDayTTLSec int `env:"HISTORY_DAY_TTL_SEC" envDefault:"3600"`
	MapTTLSec        int `env:"MAP_TTL_SEC" envDefault:"600"`
	GoldTTLSec       int `env:"GOLD_TTL_SEC" envDefault:"600"`

	// Lifecycle
	HandleTimeoutMS    int `env:"HANDLE_TIMEOUT_MS" envDefault:"5000"`
	ShutdownTimeoutSec int `env:"SHUTDOWN_TIMEOUT_SEC" envDefault:"10"`

	// Computed durations (not from env)
	CacheTimeout    time.Duration `env:"-"`
	OrderTTL        time.Duration `env:"-"`
	HistoryTTL      time.Duration `env:"-"`
	HistoryDayTTL   time.Duration `env:"-"`
	MapTTL          time.Duration `env:"-"`
	GoldTTL         time.Duration `env:"-"`
	HandleTimeout   time.Duration `env:"-"`
	ShutdownTimeout time.Duration `env:"-"`

	// Observability
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile  string `env:"LOG_FILE"`
	HTTPPort int    `env:"HTTP_PORT" envDefault:"8080"`
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{}
	opts := env.Options{
		Prefix: "",
	}

	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	cfg.CacheBackend = strings.ToLower(strings.TrimSpace(cfg.CacheBackend))
	cfg.CacheFailurePolicy = strings.ToLower(strings.TrimSpace(cfg.CacheFailurePolicy))
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))

	cfg.CacheTimeout = time.Duration(cfg.CacheTimeoutMS) * time.Millisecond
	cfg.OrderTTL = time.Duration(cfg.OrderTTLSec) * time.Second
	cfg.HistoryTTL = time.Duration(cfg.HistoryTTLSec) * time.Second
	cfg.HistoryDayTTL = time.Duration(cfg.HistoryDayTTLSec) * time.Second
	cfg.MapTTL = time.Duration(cfg.MapTTLSec) * time.Second
	cfg.GoldTTL = time.Duration(cfg.GoldTTLSec) * time.Second
	cfg.HandleTimeout = time.Duration(cfg.HandleTimeoutMS) * time.Millisecond
	cfg.ShutdownTimeout = time.Duration(cfg.ShutdownTimeoutSec) * time.Second

	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s", c.LogLevel)
	}

	switch c.CacheBackend {
	case "redis":
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis cache backend")
		}
	case "memory":
	default:
		return fmt.Errorf("invalid cache backend: %s", c.CacheBackend)
	}

	switch c.CacheFailurePolicy {
	case "open", "fail-open", "closed", "fail-closed":
	default:
		return fmt.Errorf("invalid cache failure policy: %s", c.CacheFailurePolicy)
	}

	if c.IncomingNATSURL == "" || c.OutgoingNATSURL == "" {
		return fmt.Errorf("incoming and outgoing NATS URLs are required")
	}

	if c.CacheTimeout < time.Millisecond {
		return fmt.Errorf("cache timeout must be at least 1ms, got %dms", c.CacheTimeoutMS)
	}

	ttls := map[string]time.Duration{
		"order":       c.OrderTTL,
		"history":     c.HistoryTTL,
		"history day": c.HistoryDayTTL,
		"map":         c.MapTTL,
		"gold":        c.GoldTTL,
	}
	for name, ttl := range ttls {
		if ttl < time.Second {
			return fmt.Errorf("%s TTL must be at least 1 second", name)
		}
	}

	if c.HandleTimeout < time.Millisecond {
		return fmt.Errorf("handle timeout must be at least 1ms, got %dms", c.HandleTimeoutMS)
	}

	if c.ShutdownTimeout < time.Second {
		return fmt.Errorf("shutdown timeout must be at least 1 second")
	}

	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid port: %d", c.HTTPPort)
	}

	return nil
}

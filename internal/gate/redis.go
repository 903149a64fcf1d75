package gate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// presence is the value stored under every admitted key. Only the
// key's existence and TTL carry meaning.
const presence = 1

// RedisOptions configures the shared dedup store.
type RedisOptions struct {
	URL      string
	Password string
	// Timeout bounds dial, read and write so an unreachable store fails
	// one message fast instead of stalling its subscription.
	Timeout time.Duration
}

// RedisStore keeps admitted fingerprints in Redis with a TTL.
type RedisStore struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisStore creates a Redis-backed store. A failed startup ping is
// logged but not fatal: the gate's failure policy covers the outage until
// Redis becomes reachable.
func NewRedisStore(opts RedisOptions, logger *slog.Logger) (*RedisStore, error) {
	opt, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	if opts.Password != "" {
		opt.Password = opts.Password
	}
	if opts.Timeout > 0 {
		opt.DialTimeout = opts.Timeout
		opt.ReadTimeout = opts.Timeout
		opt.WriteTimeout = opts.Timeout
	}
	// One attempt per message; a retry would also stretch the outage
	// latency every handler pays.
	opt.MaxRetries = -1

	s := NewRedisStoreFromClient(redis.NewClient(opt), logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.Ping(ctx); err != nil {
		s.logger.Warn("redis_unreachable_at_startup", "addr", opt.Addr, "error", err)
	} else {
		s.logger.Info("redis_connected", "addr", opt.Addr, "db", opt.DB)
	}

	return s, nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client, logger *slog.Logger) *RedisStore {
	return &RedisStore{
		client: client,
		logger: logger.With("component", "redis_store"),
	}
}

// SetIfAbsent records key with ttl unless it already exists, in one
// SET key 1 EX ttl NX round trip. It reports whether the key was created.
func (s *RedisStore) SetIfAbsent(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	created, err := s.client.SetNX(ctx, key, presence, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis SET NX failed: %w", err)
	}
	return created, nil
}

// Lookup returns the remaining TTL of key. A key without expiry reports
// found with a zero TTL.
func (s *RedisStore) Lookup(ctx context.Context, key string) (time.Duration, bool, error) {
	ttl, err := s.client.PTTL(ctx, key).Result()
	if err != nil {
		return 0, false, fmt.Errorf("redis PTTL failed: %w", err)
	}

	// PTTL replies -2 for a missing key and -1 for a key with no expiry.
	switch ttl {
	case -2:
		return 0, false, nil
	case -1:
		return 0, true, nil
	}
	return ttl, true, nil
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

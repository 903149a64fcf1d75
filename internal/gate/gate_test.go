package gate

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deduper/internal/models"
)

func newRedisGate(t *testing.T, policy Policy) (*Gate, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	store, err := NewRedisStore(RedisOptions{
		URL:     "redis://" + mr.Addr(),
		Timeout: 200 * time.Millisecond,
	}, slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return New(store, policy, nil, slog.Default()), mr
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    Policy
		wantErr bool
	}{
		{in: "open", want: FailOpen},
		{in: "fail-open", want: FailOpen},
		{in: "closed", want: FailClosed},
		{in: "fail-closed", want: FailClosed},
		{in: "sometimes", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePolicy(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGate_Redis_Idempotence(t *testing.T) {
	g, mr := newRedisGate(t, FailOpen)
	ctx := context.Background()
	key := "marketorders.ingest-1|3005|1|12.5|2024-05-01T10:00:00"

	d, err := g.Admit(ctx, key, 0)
	require.NoError(t, err)
	assert.Equal(t, New, d)

	d, err = g.Admit(ctx, key, 0)
	require.NoError(t, err)
	assert.Equal(t, Duplicate, d)

	mr.FastForward(DefaultTTL + time.Second)

	d, err = g.Admit(ctx, key, 0)
	require.NoError(t, err)
	assert.Equal(t, New, d, "key should be admitted again after its TTL")
}

func TestGate_Redis_TTL(t *testing.T) {
	g, mr := newRedisGate(t, FailOpen)
	ctx := context.Background()

	_, err := g.Admit(ctx, "default", 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultTTL, mr.TTL("default"))

	_, err = g.Admit(ctx, "history", 6*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 6*time.Hour, mr.TTL("history"))

	assert.Equal(t, "1", mustGet(t, mr, "default"))
}

func TestGate_Redis_DuplicateDoesNotRefreshTTL(t *testing.T) {
	g, mr := newRedisGate(t, FailOpen)
	ctx := context.Background()

	_, err := g.Admit(ctx, "k", 600*time.Second)
	require.NoError(t, err)

	mr.FastForward(100 * time.Second)

	d, err := g.Admit(ctx, "k", 600*time.Second)
	require.NoError(t, err)
	assert.Equal(t, Duplicate, d)
	assert.Equal(t, 500*time.Second, mr.TTL("k"))
}

func TestGate_Redis_Lookup(t *testing.T) {
	g, _ := newRedisGate(t, FailOpen)
	ctx := context.Background()

	_, found, err := g.Lookup(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	_, err = g.Admit(ctx, "present", time.Hour)
	require.NoError(t, err)

	ttl, found, err := g.Lookup(ctx, "present")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, time.Hour, ttl)
}

func TestGate_Redis_FailurePolicy(t *testing.T) {
	tests := []struct {
		policy Policy
		want   Decision
	}{
		{policy: FailOpen, want: New},
		{policy: FailClosed, want: Duplicate},
	}

	for _, tt := range tests {
		t.Run(tt.policy.String(), func(t *testing.T) {
			g, mr := newRedisGate(t, tt.policy)
			mr.Close()

			for _, key := range []string{"a", "b", "a"} {
				d, err := g.Admit(context.Background(), key, time.Minute)
				assert.Equal(t, tt.want, d)

				var cacheErr *models.CacheError
				require.True(t, errors.As(err, &cacheErr), "want CacheError, got %v", err)
				assert.Equal(t, key, cacheErr.Key)
			}

			assert.Error(t, g.Ping(context.Background()))
		})
	}
}

func TestGate_Redis_ConcurrentAdmitSingleWinner(t *testing.T) {
	g, _ := newRedisGate(t, FailOpen)

	const goroutines = 50
	var winners atomic.Int32
	var wg sync.WaitGroup
	wg.Add(goroutines)

	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			d, err := g.Admit(context.Background(), "contested", time.Minute)
			if err == nil && d == New {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), winners.Load())
}

func TestNewRedisStore_InvalidURL(t *testing.T) {
	_, err := NewRedisStore(RedisOptions{URL: "http://nope"}, slog.Default())
	assert.ErrorContains(t, err, "invalid redis URL")
}

func TestDecisionString(t *testing.T) {
	assert.Equal(t, "new", New.String())
	assert.Equal(t, "duplicate", Duplicate.String())
}

func mustGet(t *testing.T, mr *miniredis.Miniredis, key string) string {
	t.Helper()
	v, err := mr.Get(key)
	require.NoError(t, err)
	return v
}

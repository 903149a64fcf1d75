// Package gate decides whether a fingerprint is a new observation.
//
// Admission is a single atomic set-if-absent against a shared store, so
// concurrent handlers (and replicas on the same store) admit a given key
// at most once per TTL window. When the store fails, one process-wide
// Policy decides the outcome for every message kind.
package gate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"deduper/internal/instrumentation"
	"deduper/internal/models"
)

// DefaultTTL applies when a caller passes no kind-specific TTL.
const DefaultTTL = 600 * time.Second

// Decision is the outcome of an admission check.
type Decision int

const (
	New Decision = iota
	Duplicate
)

func (d Decision) String() string {
	if d == New {
		return "new"
	}
	return "duplicate"
}

// Policy is the outcome applied when the store errors.
type Policy int

const (
	// FailOpen admits on store failure: the stream stays live and may
	// carry duplicates during an outage.
	FailOpen Policy = iota
	// FailClosed suppresses on store failure: no duplicates, but
	// observations are lost during an outage.
	FailClosed
)

// ParsePolicy accepts "open" or "closed".
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "open", "fail-open":
		return FailOpen, nil
	case "closed", "fail-closed":
		return FailClosed, nil
	default:
		return FailOpen, fmt.Errorf("invalid cache failure policy: %q", s)
	}
}

func (p Policy) String() string {
	if p == FailClosed {
		return "fail-closed"
	}
	return "fail-open"
}

func (p Policy) decision() Decision {
	if p == FailClosed {
		return Duplicate
	}
	return New
}

// Store is a shared expiring key set.
type Store interface {
	// SetIfAbsent atomically creates key with ttl if it does not exist and
	// reports whether it did. An existing key's TTL is left untouched.
	SetIfAbsent(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Lookup reports whether key is held and its remaining TTL.
	Lookup(ctx context.Context, key string) (time.Duration, bool, error)
	Ping(ctx context.Context) error
}

// Gate applies the admission contract on top of a Store.
type Gate struct {
	store   Store
	policy  Policy
	metrics *instrumentation.Metrics
	logger  *slog.Logger
}

// New creates a gate.
func New(store Store, policy Policy, metrics *instrumentation.Metrics, logger *slog.Logger) *Gate {
	return &Gate{
		store:   store,
		policy:  policy,
		metrics: metrics,
		logger:  logger.With("component", "gate", "policy", policy.String()),
	}
}

// Admit records key if unseen. On store failure it returns the policy
// decision together with a *models.CacheError so callers can log and
// count the failure; the decision is still authoritative.
func (g *Gate) Admit(ctx context.Context, key string, ttl time.Duration) (Decision, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	startTime := time.Now()
	created, err := g.store.SetIfAbsent(ctx, key, ttl)
	g.metrics.RecordGateLatency(float64(time.Since(startTime).Microseconds()) / 1000)

	if err != nil {
		decision := g.policy.decision()
		g.logger.Debug("gate_store_failed", "key", key, "decision", decision.String(), "error", err)
		return decision, &models.CacheError{Op: "set_if_absent", Key: key, Err: err}
	}

	if created {
		return New, nil
	}
	return Duplicate, nil
}

// Lookup reports whether key is currently held.
func (g *Gate) Lookup(ctx context.Context, key string) (time.Duration, bool, error) {
	ttl, found, err := g.store.Lookup(ctx, key)
	if err != nil {
		return 0, false, &models.CacheError{Op: "lookup", Key: key, Err: err}
	}
	return ttl, found, nil
}

// Ping checks the underlying store.
func (g *Gate) Ping(ctx context.Context) error {
	return g.store.Ping(ctx)
}

// Policy returns the configured failure policy.
func (g *Gate) Policy() Policy {
	return g.policy
}

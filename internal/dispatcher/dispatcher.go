package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"deduper/internal/bus"
	"deduper/internal/instrumentation"
	"deduper/internal/models"
	"deduper/internal/pipeline"
)

// Subscriber binds handlers to bus subjects.
type Subscriber interface {
	Subscribe(subject, queue string, h bus.Handler) (bus.Subscription, error)
}

// Handler processes one message along its route.
type Handler interface {
	Handle(ctx context.Context, route pipeline.Route, msg models.RawMessage) error
}

// State is the dispatcher lifecycle.
type State int

const (
	StateIdle State = iota
	StateSubscribed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubscribed:
		return "subscribed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Config holds dispatcher configuration.
type Config struct {
	Routes []pipeline.Route
	// QueueGroup, when set, shares each subject across replicas.
	QueueGroup string
	// HandleTimeout bounds the cache and publish work of one message.
	HandleTimeout time.Duration
}

// Dispatcher subscribes every route's input subject and runs each
// message through the handler. A failing or panicking message is logged
// and dropped; it never ends its subscription.
type Dispatcher struct {
	cfg        Config
	subscriber Subscriber
	handler    Handler
	metrics    *instrumentation.Metrics
	logger     *slog.Logger

	mu       sync.Mutex
	state    State
	subs     []bus.Subscription
	inflight sync.WaitGroup
	baseCtx  context.Context
}

// New creates a dispatcher in the idle state.
func New(cfg Config, subscriber Subscriber, handler Handler, metrics *instrumentation.Metrics, logger *slog.Logger) *Dispatcher {
	if cfg.Routes == nil {
		cfg.Routes = pipeline.Routes
	}
	if cfg.HandleTimeout <= 0 {
		cfg.HandleTimeout = 5 * time.Second
	}
	return &Dispatcher{
		cfg:        cfg,
		subscriber: subscriber,
		handler:    handler,
		metrics:    metrics,
		logger:     logger.With("component", "dispatcher"),
		baseCtx:    context.Background(),
	}
}

// Start subscribes all routes. If any subscription fails the ones already
// made are undone and the dispatcher stays idle.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != StateIdle {
		return fmt.Errorf("dispatcher is %s", d.state)
	}

	// Shutdown stops intake; it does not cancel messages already in flight.
	d.baseCtx = context.WithoutCancel(ctx)

	for _, route := range d.cfg.Routes {
		sub, err := d.subscriber.Subscribe(route.Input, d.cfg.QueueGroup, d.handlerFor(route))
		if err != nil {
			d.unsubscribeLocked()
			return fmt.Errorf("subscribe %s: %w", route.Kind, err)
		}
		d.subs = append(d.subs, sub)

		d.logger.Info("listening",
			"kind", route.Kind,
			"subject", route.Input,
			"output", route.Output,
			"queue_group", d.cfg.QueueGroup,
		)
	}

	d.state = StateSubscribed
	return nil
}

// Stop closes all subscriptions and waits for in-flight messages to
// finish or ctx to expire.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.state == StateClosed {
		d.mu.Unlock()
		return nil
	}
	d.state = StateClosed
	d.unsubscribeLocked()
	d.mu.Unlock()

	d.logger.Info("dispatcher_stopping")

	done := make(chan struct{})
	go func() {
		d.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("dispatcher_stopped")
		return nil
	case <-ctx.Done():
		d.logger.Warn("dispatcher_stop_timeout", "error", ctx.Err())
		return ctx.Err()
	}
}

// State returns the current lifecycle state.
func (d *Dispatcher) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *Dispatcher) unsubscribeLocked() {
	for _, sub := range d.subs {
		if err := sub.Unsubscribe(); err != nil {
			d.logger.Warn("unsubscribe_failed", "error", err)
		}
	}
	d.subs = nil
}

func (d *Dispatcher) handlerFor(route pipeline.Route) bus.Handler {
	return func(msg models.RawMessage) {
		d.mu.Lock()
		if d.state == StateClosed {
			d.mu.Unlock()
			return
		}
		d.inflight.Add(1)
		baseCtx := d.baseCtx
		d.mu.Unlock()
		defer d.inflight.Done()

		d.dispatch(baseCtx, route, msg)
	}
}

// dispatch is the message boundary: nothing escapes it.
func (d *Dispatcher) dispatch(baseCtx context.Context, route pipeline.Route, msg models.RawMessage) {
	startTime := time.Now()

	defer func() {
		if r := recover(); r != nil {
			d.metrics.RecordError(string(route.Kind), "panic")
			d.logger.Error("message_panic",
				"kind", route.Kind,
				"subject", msg.Subject,
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
		}
	}()

	ctx, cancel := context.WithTimeout(baseCtx, d.cfg.HandleTimeout)
	defer cancel()

	err := d.handler.Handle(ctx, route, msg)
	if err != nil {
		var parseErr *models.ParseError
		level := slog.LevelError
		if errors.As(err, &parseErr) {
			// Malformed uploads from third-party clients are routine.
			level = slog.LevelWarn
		}
		d.logger.Log(ctx, level, "message_failed",
			"kind", route.Kind,
			"subject", msg.Subject,
			"error_type", models.ErrorType(err),
			"size_bytes", len(msg.Data),
			"error", err,
		)
		return
	}

	d.logger.Debug("message_handled",
		"kind", route.Kind,
		"subject", msg.Subject,
		"processing_ms", time.Since(startTime).Milliseconds(),
	)
}

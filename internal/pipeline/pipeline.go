// Package pipeline runs one inbound message through canonicalization,
// fingerprinting, the dedup gate and publication.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"deduper/internal/canonical"
	"deduper/internal/fingerprint"
	"deduper/internal/gate"
	"deduper/internal/instrumentation"
	"deduper/internal/models"
)

// Publisher sends bytes on a subject.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Admitter makes admission decisions.
type Admitter interface {
	Admit(ctx context.Context, key string, ttl time.Duration) (gate.Decision, error)
}

// Pipeline holds the collaborators shared by every route.
type Pipeline struct {
	canon     *canonical.Canonicalizer
	gate      Admitter
	publisher Publisher
	ttls      TTLs
	metrics   *instrumentation.Metrics
	logger    *slog.Logger
}

// New creates a pipeline.
func New(canon *canonical.Canonicalizer, admitter Admitter, publisher Publisher, ttls TTLs, metrics *instrumentation.Metrics, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		canon:     canon,
		gate:      admitter,
		publisher: publisher,
		ttls:      ttls,
		metrics:   metrics,
		logger:    logger.With("component", "pipeline"),
	}
}

// Lookup returns the route bound to an input subject.
func Lookup(subject string) (Route, bool) {
	for _, r := range Routes {
		if r.Input == subject {
			return r, true
		}
	}
	return Route{}, false
}

// Handle processes msg along route. A returned error means the message,
// or part of it, was not delivered; admissions already recorded stand.
func (p *Pipeline) Handle(ctx context.Context, route Route, msg models.RawMessage) error {
	p.metrics.RecordReceived(string(route.Kind))

	err := route.handle(p, ctx, route, msg)
	if err != nil {
		p.metrics.RecordError(string(route.Kind), models.ErrorType(err))
	}
	return err
}

func (p *Pipeline) handleOrders(ctx context.Context, route Route, msg models.RawMessage) error {
	orders, err := p.canon.Orders(msg.Data)
	if err != nil {
		return err
	}

	// Key every order before admitting any so a bad entry drops the
	// whole upload rather than forwarding part of it.
	keys := make([]string, len(orders))
	for i, o := range orders {
		keys[i], err = fingerprint.OrderKey(msg.Subject, o)
		if err != nil {
			return err
		}
	}

	p.logger.Info("processing_orders", "subject", msg.Subject, "count", len(orders))

	ttl := p.ttls.For(route.Kind, 0)
	admitted := make([]models.Order, 0, len(orders))
	var errs []error
	for i, o := range orders {
		if p.admit(ctx, route.Kind, keys[i], ttl) != gate.New {
			continue
		}
		admitted = append(admitted, o)

		data, err := json.Marshal(o)
		if err != nil {
			errs = append(errs, fmt.Errorf("marshal order %d: %w", o.ID, err))
			continue
		}
		if err := p.publish(route.Output, data); err != nil {
			errs = append(errs, err)
		}
	}

	if len(admitted) > 0 && route.Bulk != "" {
		p.logger.Info("orders_admitted", "subject", msg.Subject, "count", len(admitted))

		data, err := json.Marshal(admitted)
		if err != nil {
			errs = append(errs, fmt.Errorf("marshal bulk: %w", err))
		} else if err := p.publish(route.Bulk, data); err != nil {
			errs = append(errs, err)
		} else {
			p.metrics.RecordBulkBatch(len(admitted))
		}
	}

	return errors.Join(errs...)
}

func (p *Pipeline) handleHistory(ctx context.Context, route Route, msg models.RawMessage) error {
	history, err := p.canon.History(msg.Data)
	if err != nil {
		return err
	}

	p.logger.Info("processing_histories",
		"subject", msg.Subject,
		"count", len(history.MarketHistories),
		"albion_id", history.AlbionID,
		"timescale", history.Timescale.String(),
	)

	data, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}

	key := fingerprint.ContentKey(msg.Subject, data)
	if p.admit(ctx, route.Kind, key, p.ttls.For(route.Kind, history.Timescale)) != gate.New {
		return nil
	}
	return p.publish(route.Output, data)
}

// handleBlob forwards payloads that need no normalization.
func (p *Pipeline) handleBlob(ctx context.Context, route Route, msg models.RawMessage) error {
	p.logger.Debug("processing_blob", "subject", msg.Subject, "size_bytes", len(msg.Data))

	key := fingerprint.ContentKey(msg.Subject, msg.Data)
	if p.admit(ctx, route.Kind, key, p.ttls.For(route.Kind, 0)) != gate.New {
		return nil
	}
	return p.publish(route.Output, msg.Data)
}

// admit consults the gate. A store failure has already been resolved to
// the policy decision by the gate; here it is only logged and counted.
func (p *Pipeline) admit(ctx context.Context, kind Kind, key string, ttl time.Duration) gate.Decision {
	decision, err := p.gate.Admit(ctx, key, ttl)
	if err != nil {
		p.metrics.RecordError(string(kind), models.ErrorType(err))
		p.logger.Warn("gate_check_failed",
			"kind", kind,
			"key", key,
			"decision", decision.String(),
			"error", err,
		)
	}

	if decision == gate.New {
		p.metrics.RecordAdmitted(string(kind))
	} else {
		p.metrics.RecordDuplicate(string(kind))
	}
	return decision
}

func (p *Pipeline) publish(subject string, data []byte) error {
	if err := p.publisher.Publish(subject, data); err != nil {
		return &models.PublishError{Subject: subject, Err: err}
	}
	return nil
}

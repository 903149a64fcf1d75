// Package bus wraps the NATS connections the relay reads from and
// publishes to.
package bus

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"deduper/internal/models"
)

// Handler receives one message. It runs on the subscription's delivery
// goroutine.
type Handler func(msg models.RawMessage)

// Subscription is an active subject binding.
type Subscription interface {
	Unsubscribe() error
}

// Conn is a NATS connection.
type Conn struct {
	nc     *nats.Conn
	logger *slog.Logger
}

// Connect dials url. The connection reconnects indefinitely; while it is
// down publishes are buffered by the client and surface as errors once
// the buffer is full.
func Connect(url, name string, logger *slog.Logger) (*Conn, error) {
	logger = logger.With("component", "bus", "connection", name)

	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats_reconnected", "server", nc.ConnectedUrlRedacted())
		}),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			subject := ""
			if sub != nil {
				subject = sub.Subject
			}
			logger.Error("nats_async_error", "subject", subject, "error", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect failed: %w", err)
	}

	logger.Info("nats_connected",
		"server", nc.ConnectedUrlRedacted(),
		"server_id", nc.ConnectedServerId(),
	)

	return &Conn{nc: nc, logger: logger}, nil
}

// Subscribe binds h to subject. With a non-empty queue the subscription
// joins that queue group so replicas split the load.
func (c *Conn) Subscribe(subject, queue string, h Handler) (Subscription, error) {
	cb := func(m *nats.Msg) {
		h(models.RawMessage{Subject: m.Subject, Data: m.Data})
	}

	var (
		sub *nats.Subscription
		err error
	)
	if queue != "" {
		sub, err = c.nc.QueueSubscribe(subject, queue, cb)
	} else {
		sub, err = c.nc.Subscribe(subject, cb)
	}
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}
	return sub, nil
}

// Publish sends data on subject.
func (c *Conn) Publish(subject string, data []byte) error {
	return c.nc.Publish(subject, data)
}

// Connected reports whether the connection is currently up.
func (c *Conn) Connected() bool {
	return c.nc.IsConnected()
}

// Status returns the connection state name.
func (c *Conn) Status() string {
	return c.nc.Status().String()
}

// Close flushes pending publishes and closes the connection.
func (c *Conn) Close() {
	if err := c.nc.FlushTimeout(2 * time.Second); err != nil && c.nc.IsConnected() {
		c.logger.Warn("nats_flush_failed", "error", err)
	}
	c.nc.Close()
	c.logger.Info("nats_closed")
}

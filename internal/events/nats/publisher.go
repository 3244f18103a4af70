package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"aforo/internal/port"
	"aforo/internal/resilience"
)

// Options tunes the connection. Zero values select the defaults.
type Options struct {
	ConnectTimeout time.Duration
	ReconnectWait  time.Duration
	MaxReconnects  int
	Executor       *resilience.Executor
}

// Publisher sends batch lifecycle events to "<prefix>.<event type>".
type Publisher struct {
	conn     *nats.Conn
	prefix   string
	executor *resilience.Executor
}

// NewPublisher connects to url and returns a port.EventPublisher.
func NewPublisher(url, subjectPrefix string, options Options) (*Publisher, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}

	conn, err := nats.Connect(
		url,
		nats.Name("aforo"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			zap.L().Warn("nats.Publisher: disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			zap.L().Info("nats.Publisher: reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Publisher{conn: conn, prefix: subjectPrefix, executor: options.Executor}, nil
}

var _ port.EventPublisher = (*Publisher)(nil)

// Subject returns the subject an event of the given type is published on.
func Subject(prefix, eventType string) string {
	if prefix == "" {
		return eventType
	}
	return prefix + "." + eventType
}

func (p *Publisher) Publish(ctx context.Context, event port.BatchEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}
	subject := Subject(p.prefix, event.Type)

	call := func(_ context.Context) error {
		if err := p.conn.Publish(subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}
	if p.executor != nil {
		return p.executor.Execute(ctx, "nats.publish", call, ClassifyError)
	}
	return call(ctx)
}

func (p *Publisher) Close() error {
	if p.conn == nil {
		return nil
	}
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
		return fmt.Errorf("nats drain: %w", err)
	}
	return nil
}

// ClassifyError marks connection-level NATS failures as retryable.
func ClassifyError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, nats.ErrNoServers) ||
		errors.Is(err, nats.ErrTimeout) ||
		errors.Is(err, nats.ErrConnectionClosed) ||
		errors.Is(err, nats.ErrDisconnected) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return resilience.ErrorClassification{RecordFailure: true}
}

package noop

import (
	"context"

	"go.uber.org/zap"

	"aforo/internal/port"
)

type publisher struct{}

// NewPublisher returns an EventPublisher that only logs at debug level.
func NewPublisher() port.EventPublisher {
	return publisher{}
}

func (publisher) Publish(_ context.Context, event port.BatchEvent) error {
	zap.L().Debug("noop event",
		zap.String("type", event.Type),
		zap.String("batch_id", event.BatchID.String()),
		zap.String("detail", event.Detail),
	)
	return nil
}

func (publisher) Close() error { return nil }

package port

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// BatchEvent is published on every batch lifecycle change.
type BatchEvent struct {
	Type       string    `json:"type"`
	BatchID    uuid.UUID `json:"batch_id"`
	DocumentID uuid.UUID `json:"document_id,omitempty"`
	Status     string    `json:"status,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Event types.
const (
	EventDocumentAdded     = "document.added"
	EventDocumentExtracted = "document.extracted"
	EventRecordTransition  = "record.transition"
	EventBatchReady        = "batch.ready"
	EventBatchConsolidated = "batch.consolidated"
	EventBatchCancelled    = "batch.cancelled"
)

// EventPublisher publishes batch lifecycle events.
type EventPublisher interface {
	Publish(ctx context.Context, event BatchEvent) error
	Close() error
}

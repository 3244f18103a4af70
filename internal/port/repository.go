package port

import (
	"context"

	"github.com/google/uuid"

	"aforo/internal/domain"
)

// BatchRepository persists batches.
type BatchRepository interface {
	Create(ctx context.Context, batch *domain.Batch) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Batch, error)
	List(ctx context.Context, offset, limit int) ([]domain.Batch, int, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.BatchStatus) error
	// SaveCosts replaces the per-BL cost overrides of the last consolidation.
	SaveCosts(ctx context.Context, id uuid.UUID, costs map[string]domain.ShipmentCosts) error
	GetCosts(ctx context.Context, id uuid.UUID) (map[string]domain.ShipmentCosts, error)
}

// DocumentRepository persists raw documents.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.RawDocument) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.RawDocument, error)
	ListByBatch(ctx context.Context, batchID uuid.UUID) ([]domain.RawDocument, error)
	NextSequence(ctx context.Context, batchID uuid.UUID) (int, error)
	UpdateType(ctx context.Context, doc *domain.RawDocument) error
}

// RecordRepository persists extracted records. Update is a compare-and-swap on
// Version: it succeeds only when the stored version equals expectedVersion and
// returns domain.ErrStaleEdit otherwise.
type RecordRepository interface {
	Upsert(ctx context.Context, rec *domain.ExtractedRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ExtractedRecord, error)
	GetByDocument(ctx context.Context, documentID uuid.UUID) (*domain.ExtractedRecord, error)
	ListByBatch(ctx context.Context, batchID uuid.UUID) ([]domain.ExtractedRecord, error)
	Update(ctx context.Context, rec *domain.ExtractedRecord, expectedVersion int) error
}

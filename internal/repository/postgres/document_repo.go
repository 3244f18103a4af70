package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"aforo/internal/domain"
	"aforo/internal/port"
)

const documentColumns = `id, batch_id, file_name, content_type, storage_key, size,
	document_type, type_confidence, type_source, page_count, sequence, created_at`

type documentRepo struct {
	db *sqlx.DB
}

// NewDocumentRepo creates a new PostgreSQL-backed DocumentRepository.
func NewDocumentRepo(db *sqlx.DB) port.DocumentRepository {
	return &documentRepo{db: db}
}

func (r *documentRepo) Create(ctx context.Context, doc *domain.RawDocument) error {
	doc.CreatedAt = time.Now().UTC()

	_, err := r.db.NamedExecContext(ctx,
		`INSERT INTO raw_documents (`+documentColumns+`) VALUES (
			:id, :batch_id, :file_name, :content_type, :storage_key, :size,
			:document_type, :type_confidence, :type_source, :page_count, :sequence, :created_at
		)`, doc)
	if err != nil {
		return fmt.Errorf("documentRepo.Create: %w", err)
	}
	return nil
}

func (r *documentRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.RawDocument, error) {
	var doc domain.RawDocument
	err := r.db.GetContext(ctx, &doc,
		"SELECT "+documentColumns+" FROM raw_documents WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("documentRepo.GetByID: %w", err)
	}
	return &doc, nil
}

func (r *documentRepo) ListByBatch(ctx context.Context, batchID uuid.UUID) ([]domain.RawDocument, error) {
	var docs []domain.RawDocument
	err := r.db.SelectContext(ctx, &docs,
		"SELECT "+documentColumns+" FROM raw_documents WHERE batch_id = $1 ORDER BY sequence", batchID)
	if err != nil {
		return nil, fmt.Errorf("documentRepo.ListByBatch: %w", err)
	}
	return docs, nil
}

func (r *documentRepo) NextSequence(ctx context.Context, batchID uuid.UUID) (int, error) {
	var next int
	err := r.db.GetContext(ctx, &next,
		"SELECT COALESCE(MAX(sequence), 0) + 1 FROM raw_documents WHERE batch_id = $1", batchID)
	if err != nil {
		return 0, fmt.Errorf("documentRepo.NextSequence: %w", err)
	}
	return next, nil
}

func (r *documentRepo) UpdateType(ctx context.Context, doc *domain.RawDocument) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE raw_documents SET document_type = $1, type_confidence = $2, type_source = $3
		 WHERE id = $4`,
		doc.Type, doc.TypeConfidence, doc.TypeSource, doc.ID)
	if err != nil {
		return fmt.Errorf("documentRepo.UpdateType: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

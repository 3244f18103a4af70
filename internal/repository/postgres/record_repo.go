package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"aforo/internal/domain"
	"aforo/internal/port"
)

const recordColumns = `id, batch_id, document_id, document_type, fields, line_items, state, version,
	reject_reason, error_kind, error_message, model_used, extracted_at, updated_at`

// recordRow is the table shape of an ExtractedRecord; fields and line items are JSONB.
type recordRow struct {
	ID           uuid.UUID       `db:"id"`
	BatchID      uuid.UUID       `db:"batch_id"`
	DocumentID   uuid.UUID       `db:"document_id"`
	DocumentType string          `db:"document_type"`
	Fields       json.RawMessage `db:"fields"`
	LineItems    json.RawMessage `db:"line_items"`
	State        string          `db:"state"`
	Version      int             `db:"version"`
	RejectReason string          `db:"reject_reason"`
	ErrorKind    string          `db:"error_kind"`
	ErrorMessage string          `db:"error_message"`
	ModelUsed    string          `db:"model_used"`
	ExtractedAt  time.Time       `db:"extracted_at"`
	UpdatedAt    time.Time       `db:"updated_at"`
}

func toRow(rec *domain.ExtractedRecord) (*recordRow, error) {
	fields, err := json.Marshal(nonNilFields(rec.Fields))
	if err != nil {
		return nil, fmt.Errorf("encoding fields: %w", err)
	}
	items, err := json.Marshal(nonNilItems(rec.LineItems))
	if err != nil {
		return nil, fmt.Errorf("encoding line items: %w", err)
	}
	return &recordRow{
		ID:           rec.ID,
		BatchID:      rec.BatchID,
		DocumentID:   rec.DocumentID,
		DocumentType: string(rec.DocumentType),
		Fields:       fields,
		LineItems:    items,
		State:        string(rec.State),
		Version:      rec.Version,
		RejectReason: rec.RejectReason,
		ErrorKind:    string(rec.ErrorKind),
		ErrorMessage: rec.ErrorMessage,
		ModelUsed:    rec.ModelUsed,
		ExtractedAt:  rec.ExtractedAt,
		UpdatedAt:    rec.UpdatedAt,
	}, nil
}

func (row *recordRow) toDomain() (*domain.ExtractedRecord, error) {
	rec := &domain.ExtractedRecord{
		ID:           row.ID,
		BatchID:      row.BatchID,
		DocumentID:   row.DocumentID,
		DocumentType: domain.DocumentType(row.DocumentType),
		State:        domain.RecordState(row.State),
		Version:      row.Version,
		RejectReason: row.RejectReason,
		ErrorKind:    domain.ErrorKind(row.ErrorKind),
		ErrorMessage: row.ErrorMessage,
		ModelUsed:    row.ModelUsed,
		ExtractedAt:  row.ExtractedAt,
		UpdatedAt:    row.UpdatedAt,
	}
	if err := json.Unmarshal(row.Fields, &rec.Fields); err != nil {
		return nil, fmt.Errorf("decoding fields of record %s: %w", row.ID, err)
	}
	if err := json.Unmarshal(row.LineItems, &rec.LineItems); err != nil {
		return nil, fmt.Errorf("decoding line items of record %s: %w", row.ID, err)
	}
	return rec, nil
}

func nonNilFields(f []domain.ExtractedField) []domain.ExtractedField {
	if f == nil {
		return []domain.ExtractedField{}
	}
	return f
}

func nonNilItems(li []domain.LineItem) []domain.LineItem {
	if li == nil {
		return []domain.LineItem{}
	}
	return li
}

type recordRepo struct {
	db *sqlx.DB
}

// NewRecordRepo creates a new PostgreSQL-backed RecordRepository.
func NewRecordRepo(db *sqlx.DB) port.RecordRepository {
	return &recordRepo{db: db}
}

// Upsert replaces the record of a document unconditionally. Extraction owns
// the first write; later writes go through Update.
func (r *recordRepo) Upsert(ctx context.Context, rec *domain.ExtractedRecord) error {
	rec.UpdatedAt = time.Now().UTC()
	row, err := toRow(rec)
	if err != nil {
		return fmt.Errorf("recordRepo.Upsert: %w", err)
	}

	_, err = r.db.NamedExecContext(ctx,
		`INSERT INTO extracted_records (`+recordColumns+`) VALUES (
			:id, :batch_id, :document_id, :document_type, :fields, :line_items, :state, :version,
			:reject_reason, :error_kind, :error_message, :model_used, :extracted_at, :updated_at
		)
		ON CONFLICT (document_id) DO UPDATE SET
			id = EXCLUDED.id, document_type = EXCLUDED.document_type,
			fields = EXCLUDED.fields, line_items = EXCLUDED.line_items,
			state = EXCLUDED.state, version = EXCLUDED.version,
			reject_reason = EXCLUDED.reject_reason, error_kind = EXCLUDED.error_kind,
			error_message = EXCLUDED.error_message, model_used = EXCLUDED.model_used,
			extracted_at = EXCLUDED.extracted_at, updated_at = EXCLUDED.updated_at`, row)
	if err != nil {
		return fmt.Errorf("recordRepo.Upsert: %w", err)
	}
	return nil
}

func (r *recordRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.ExtractedRecord, error) {
	return r.getOne(ctx, "recordRepo.GetByID", "SELECT "+recordColumns+" FROM extracted_records WHERE id = $1", id)
}

func (r *recordRepo) GetByDocument(ctx context.Context, documentID uuid.UUID) (*domain.ExtractedRecord, error) {
	return r.getOne(ctx, "recordRepo.GetByDocument", "SELECT "+recordColumns+" FROM extracted_records WHERE document_id = $1", documentID)
}

func (r *recordRepo) getOne(ctx context.Context, op, query string, arg uuid.UUID) (*domain.ExtractedRecord, error) {
	var row recordRow
	if err := r.db.GetContext(ctx, &row, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	rec, err := row.toDomain()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return rec, nil
}

func (r *recordRepo) ListByBatch(ctx context.Context, batchID uuid.UUID) ([]domain.ExtractedRecord, error) {
	var rows []recordRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT `+recordColumns+` FROM extracted_records WHERE batch_id = $1 ORDER BY extracted_at, id`, batchID)
	if err != nil {
		return nil, fmt.Errorf("recordRepo.ListByBatch: %w", err)
	}
	out := make([]domain.ExtractedRecord, 0, len(rows))
	for i := range rows {
		rec, err := rows[i].toDomain()
		if err != nil {
			return nil, fmt.Errorf("recordRepo.ListByBatch: %w", err)
		}
		out = append(out, *rec)
	}
	return out, nil
}

// Update writes rec only while the stored version still equals expectedVersion.
func (r *recordRepo) Update(ctx context.Context, rec *domain.ExtractedRecord, expectedVersion int) error {
	rec.UpdatedAt = time.Now().UTC()
	row, err := toRow(rec)
	if err != nil {
		return fmt.Errorf("recordRepo.Update: %w", err)
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE extracted_records SET
			fields = $1, line_items = $2, state = $3, version = $4,
			reject_reason = $5, error_kind = $6, error_message = $7, updated_at = $8
		 WHERE id = $9 AND version = $10`,
		row.Fields, row.LineItems, row.State, row.Version,
		row.RejectReason, row.ErrorKind, row.ErrorMessage, row.UpdatedAt,
		row.ID, expectedVersion)
	if err != nil {
		return fmt.Errorf("recordRepo.Update: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 1 {
		return nil
	}

	var exists bool
	if err := r.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM extracted_records WHERE id = $1)", rec.ID); err != nil {
		return fmt.Errorf("recordRepo.Update exists: %w", err)
	}
	if !exists {
		return domain.ErrRecordNotFound
	}
	return fmt.Errorf("record %s: %w", rec.ID, domain.ErrStaleEdit)
}

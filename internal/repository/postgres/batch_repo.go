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

type batchRepo struct {
	db *sqlx.DB
}

// NewBatchRepo creates a new PostgreSQL-backed BatchRepository.
func NewBatchRepo(db *sqlx.DB) port.BatchRepository {
	return &batchRepo{db: db}
}

func (r *batchRepo) Create(ctx context.Context, batch *domain.Batch) error {
	now := time.Now().UTC()
	batch.CreatedAt = now
	batch.UpdatedAt = now

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO batches (id, name, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		batch.ID, batch.Name, batch.Status, batch.CreatedAt, batch.UpdatedAt)
	if err != nil {
		return fmt.Errorf("batchRepo.Create: %w", err)
	}
	return nil
}

func (r *batchRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Batch, error) {
	var batch domain.Batch
	err := r.db.GetContext(ctx, &batch,
		"SELECT id, name, status, created_at, updated_at FROM batches WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrBatchNotFound
		}
		return nil, fmt.Errorf("batchRepo.GetByID: %w", err)
	}
	return &batch, nil
}

func (r *batchRepo) List(ctx context.Context, offset, limit int) ([]domain.Batch, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM batches"); err != nil {
		return nil, 0, fmt.Errorf("batchRepo.List count: %w", err)
	}

	var batches []domain.Batch
	err := r.db.SelectContext(ctx, &batches,
		`SELECT id, name, status, created_at, updated_at FROM batches
		 ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("batchRepo.List: %w", err)
	}
	return batches, total, nil
}

func (r *batchRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.BatchStatus) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE batches SET status = $1, updated_at = $2 WHERE id = $3",
		status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("batchRepo.UpdateStatus: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrBatchNotFound
	}
	return nil
}

func (r *batchRepo) SaveCosts(ctx context.Context, id uuid.UUID, costs map[string]domain.ShipmentCosts) error {
	if costs == nil {
		costs = map[string]domain.ShipmentCosts{}
	}
	data, err := json.Marshal(costs)
	if err != nil {
		return fmt.Errorf("batchRepo.SaveCosts: encoding costs: %w", err)
	}
	result, err := r.db.ExecContext(ctx,
		"UPDATE batches SET costs = $1, updated_at = $2 WHERE id = $3",
		data, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("batchRepo.SaveCosts: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrBatchNotFound
	}
	return nil
}

func (r *batchRepo) GetCosts(ctx context.Context, id uuid.UUID) (map[string]domain.ShipmentCosts, error) {
	var data json.RawMessage
	err := r.db.GetContext(ctx, &data, "SELECT costs FROM batches WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrBatchNotFound
		}
		return nil, fmt.Errorf("batchRepo.GetCosts: %w", err)
	}
	costs := map[string]domain.ShipmentCosts{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &costs); err != nil {
			return nil, fmt.Errorf("batchRepo.GetCosts: decoding costs: %w", err)
		}
	}
	return costs, nil
}

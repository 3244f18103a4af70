// Package memory holds map-backed repositories for the CLI runner and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"aforo/internal/domain"
	"aforo/internal/port"
)

type BatchRepo struct {
	mu      sync.RWMutex
	batches map[uuid.UUID]domain.Batch
	costs   map[uuid.UUID]map[string]domain.ShipmentCosts
}

func NewBatchRepo() *BatchRepo {
	return &BatchRepo{
		batches: make(map[uuid.UUID]domain.Batch),
		costs:   make(map[uuid.UUID]map[string]domain.ShipmentCosts),
	}
}

var _ port.BatchRepository = (*BatchRepo)(nil)

func (r *BatchRepo) Create(_ context.Context, batch *domain.Batch) error {
	now := time.Now().UTC()
	batch.CreatedAt = now
	batch.UpdatedAt = now
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches[batch.ID] = *batch
	return nil
}

func (r *BatchRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Batch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.batches[id]
	if !ok {
		return nil, domain.ErrBatchNotFound
	}
	return &b, nil
}

func (r *BatchRepo) List(_ context.Context, offset, limit int) ([]domain.Batch, int, error) {
	r.mu.RLock()
	all := make([]domain.Batch, 0, len(r.batches))
	for _, b := range r.batches {
		all = append(all, b)
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID.String() < all[j].ID.String()
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	return page(all, offset, limit), len(all), nil
}

func (r *BatchRepo) UpdateStatus(_ context.Context, id uuid.UUID, status domain.BatchStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.batches[id]
	if !ok {
		return domain.ErrBatchNotFound
	}
	b.Status = status
	b.UpdatedAt = time.Now().UTC()
	r.batches[id] = b
	return nil
}

func (r *BatchRepo) SaveCosts(_ context.Context, id uuid.UUID, costs map[string]domain.ShipmentCosts) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.batches[id]; !ok {
		return domain.ErrBatchNotFound
	}
	r.costs[id] = copyCosts(costs)
	return nil
}

func (r *BatchRepo) GetCosts(_ context.Context, id uuid.UUID) (map[string]domain.ShipmentCosts, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.batches[id]; !ok {
		return nil, domain.ErrBatchNotFound
	}
	return copyCosts(r.costs[id]), nil
}

func copyCosts(in map[string]domain.ShipmentCosts) map[string]domain.ShipmentCosts {
	out := make(map[string]domain.ShipmentCosts, len(in))
	for bl, c := range in {
		if c.Freight != nil {
			v := *c.Freight
			c.Freight = &v
		}
		if c.Insurance != nil {
			v := *c.Insurance
			c.Insurance = &v
		}
		out[bl] = c
	}
	return out
}

type DocumentRepo struct {
	mu   sync.RWMutex
	docs map[uuid.UUID]domain.RawDocument
}

func NewDocumentRepo() *DocumentRepo {
	return &DocumentRepo{docs: make(map[uuid.UUID]domain.RawDocument)}
}

var _ port.DocumentRepository = (*DocumentRepo)(nil)

func (r *DocumentRepo) Create(_ context.Context, doc *domain.RawDocument) error {
	doc.CreatedAt = time.Now().UTC()
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.docs {
		if d.BatchID == doc.BatchID && d.Sequence == doc.Sequence {
			return fmt.Errorf("documentRepo.Create: sequence %d already used in batch %s", doc.Sequence, doc.BatchID)
		}
	}
	r.docs[doc.ID] = *doc
	return nil
}

func (r *DocumentRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.RawDocument, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.docs[id]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	return &d, nil
}

func (r *DocumentRepo) ListByBatch(_ context.Context, batchID uuid.UUID) ([]domain.RawDocument, error) {
	r.mu.RLock()
	var out []domain.RawDocument
	for _, d := range r.docs {
		if d.BatchID == batchID {
			out = append(out, d)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

func (r *DocumentRepo) NextSequence(_ context.Context, batchID uuid.UUID) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	next := 1
	for _, d := range r.docs {
		if d.BatchID == batchID && d.Sequence >= next {
			next = d.Sequence + 1
		}
	}
	return next, nil
}

func (r *DocumentRepo) UpdateType(_ context.Context, doc *domain.RawDocument) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[doc.ID]
	if !ok {
		return domain.ErrDocumentNotFound
	}
	d.Type = doc.Type
	d.TypeConfidence = doc.TypeConfidence
	d.TypeSource = doc.TypeSource
	r.docs[doc.ID] = d
	return nil
}

// RecordRepo stores deep copies so callers never alias stored slices.
type RecordRepo struct {
	mu      sync.RWMutex
	records map[uuid.UUID]domain.ExtractedRecord
	byDoc   map[uuid.UUID]uuid.UUID
}

func NewRecordRepo() *RecordRepo {
	return &RecordRepo{
		records: make(map[uuid.UUID]domain.ExtractedRecord),
		byDoc:   make(map[uuid.UUID]uuid.UUID),
	}
}

var _ port.RecordRepository = (*RecordRepo)(nil)

func (r *RecordRepo) Upsert(_ context.Context, rec *domain.ExtractedRecord) error {
	rec.UpdatedAt = time.Now().UTC()
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.byDoc[rec.DocumentID]; ok && prev != rec.ID {
		delete(r.records, prev)
	}
	r.records[rec.ID] = rec.Clone()
	r.byDoc[rec.DocumentID] = rec.ID
	return nil
}

func (r *RecordRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.ExtractedRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	out := rec.Clone()
	return &out, nil
}

func (r *RecordRepo) GetByDocument(ctx context.Context, documentID uuid.UUID) (*domain.ExtractedRecord, error) {
	r.mu.RLock()
	id, ok := r.byDoc[documentID]
	r.mu.RUnlock()
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *RecordRepo) ListByBatch(_ context.Context, batchID uuid.UUID) ([]domain.ExtractedRecord, error) {
	r.mu.RLock()
	var out []domain.ExtractedRecord
	for _, rec := range r.records {
		if rec.BatchID == batchID {
			out = append(out, rec.Clone())
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].ExtractedAt.Equal(out[j].ExtractedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].ExtractedAt.Before(out[j].ExtractedAt)
	})
	return out, nil
}

func (r *RecordRepo) Update(_ context.Context, rec *domain.ExtractedRecord, expectedVersion int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.records[rec.ID]
	if !ok {
		return domain.ErrRecordNotFound
	}
	if stored.Version != expectedVersion {
		return fmt.Errorf("record %s at version %d, expected %d: %w", rec.ID, stored.Version, expectedVersion, domain.ErrStaleEdit)
	}
	rec.UpdatedAt = time.Now().UTC()
	r.records[rec.ID] = rec.Clone()
	return nil
}

func page[T any](all []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(all) {
		return []T{}
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return all[offset:end]
}

package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"aforo/internal/domain"
	"aforo/internal/validator"
)

func (p *Pipeline) Stats(ctx context.Context, batchID uuid.UUID) (*domain.BatchStats, error) {
	batch, err := p.deps.Batches.GetByID(ctx, batchID)
	if err != nil {
		return nil, err
	}
	docs, err := p.deps.Documents.ListByBatch(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	records, err := p.deps.Records.ListByBatch(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	return computeStats(batch, docs, records, p.cfg.Thresholds), nil
}

// computeStats counts records per state and band. A batch is ready when it
// has documents and every one of them is typed and has a terminal record.
func computeStats(batch *domain.Batch, docs []domain.RawDocument, records []domain.ExtractedRecord, th validator.Thresholds) *domain.BatchStats {
	stats := &domain.BatchStats{
		BatchID:   batch.ID,
		Status:    batch.Status,
		Documents: len(docs),
		ByState:   make(map[domain.RecordState]int),
		ByBand:    make(map[domain.QualityBand]int),
	}

	byDoc := make(map[uuid.UUID]*domain.ExtractedRecord, len(records))
	for i := range records {
		rec := &records[i]
		byDoc[rec.DocumentID] = rec
		stats.ByState[rec.State]++
		if rec.State != domain.RecordStateRejected {
			stats.ByBand[validator.Evaluate(rec, th).Band]++
		}
	}

	ready := len(docs) > 0
	for i := range docs {
		if docs[i].Type == domain.DocumentTypeUnknown {
			stats.UnknownType++
			ready = false
			continue
		}
		rec, ok := byDoc[docs[i].ID]
		if !ok || !rec.State.IsTerminal() {
			ready = false
		}
	}
	stats.ReadyToConsolidate = ready
	return stats
}

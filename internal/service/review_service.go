package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"aforo/internal/domain"
	"aforo/internal/port"
	"aforo/internal/review"
	"aforo/internal/validator"
)

// ReviewView is what the review UI shows for one record.
type ReviewView struct {
	Record        *domain.ExtractedRecord           `json:"record"`
	Band          domain.QualityBand                `json:"band"`
	MinConfidence float64                           `json:"min_confidence"`
	Flags         []validator.Flag                  `json:"flags"`
	FieldStatuses map[string]*validator.FieldStatus `json:"field_statuses"`
}

// ReviewService defines human-in-the-loop review of extracted records.
type ReviewService interface {
	ListRecords(ctx context.Context, batchID uuid.UUID) ([]domain.ExtractedRecord, error)
	GetReview(ctx context.Context, recordID uuid.UUID) (*ReviewView, error)
	ApplyEdit(ctx context.Context, recordID uuid.UUID, cmd domain.EditCommand) (*ReviewView, error)
}

func (p *Pipeline) ListRecords(ctx context.Context, batchID uuid.UUID) ([]domain.ExtractedRecord, error) {
	if _, err := p.deps.Batches.GetByID(ctx, batchID); err != nil {
		return nil, err
	}
	return p.deps.Records.ListByBatch(ctx, batchID)
}

func (p *Pipeline) GetReview(ctx context.Context, recordID uuid.UUID) (*ReviewView, error) {
	rec, err := p.deps.Records.GetByID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	return p.view(rec), nil
}

// ApplyEdit runs cmd through the review state machine and stores the result
// with a version compare-and-swap. Writers of one record are serialized.
func (p *Pipeline) ApplyEdit(ctx context.Context, recordID uuid.UUID, cmd domain.EditCommand) (*ReviewView, error) {
	next, err := p.storeEdit(ctx, recordID, cmd)
	if err != nil {
		return nil, err
	}
	// batch locks are never taken while a record lock is held
	if err := p.refreshStatus(ctx, next.BatchID); err != nil {
		zap.L().Warn("service.Pipeline: refreshing batch status failed",
			zap.String("batch_id", next.BatchID.String()), zap.Error(err))
	}
	return p.view(next), nil
}

func (p *Pipeline) storeEdit(ctx context.Context, recordID uuid.UUID, cmd domain.EditCommand) (*domain.ExtractedRecord, error) {
	unlock := p.locks.lock(recordID)
	defer unlock()

	prior, err := p.deps.Records.GetByID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if _, err := p.loadOpenBatch(ctx, prior.BatchID); err != nil {
		return nil, err
	}

	next, err := review.Apply(*prior, review.Edit(cmd))
	if err != nil {
		return nil, err
	}
	if err := p.deps.Records.Update(ctx, &next, prior.Version); err != nil {
		return nil, fmt.Errorf("storing edit: %w", err)
	}

	zap.L().Info("service.Pipeline: record edited",
		zap.String("record_id", recordID.String()),
		zap.String("action", string(cmd.Action)),
		zap.String("state", string(next.State)),
		zap.Int("version", next.Version),
	)
	p.deps.Metrics.RecordTransition(string(prior.State), string(next.State))
	p.invalidateReport(next.BatchID)
	p.publish(ctx, port.BatchEvent{
		Type:       port.EventRecordTransition,
		BatchID:    next.BatchID,
		DocumentID: next.DocumentID,
		Status:     string(next.State),
		Detail:     string(cmd.Action),
	})
	return &next, nil
}

func (p *Pipeline) view(rec *domain.ExtractedRecord) *ReviewView {
	ev := validator.Evaluate(rec, p.cfg.Thresholds)
	return &ReviewView{
		Record:        rec,
		Band:          ev.Band,
		MinConfidence: ev.MinConfidence,
		Flags:         ev.Flags,
		FieldStatuses: validator.ComputeFieldStatuses(ev),
	}
}

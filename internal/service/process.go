package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"aforo/internal/domain"
	"aforo/internal/port"
	"aforo/internal/review"
	"aforo/internal/validator"
)

// errDiscarded marks a document whose run was cancelled mid-extraction.
var errDiscarded = errors.New("result discarded")

// Start validates the batch and runs Process in the background. The run is
// detached from ctx and stops only through Cancel.
func (p *Pipeline) Start(ctx context.Context, batchID uuid.UUID) error {
	runCtx, batch, err := p.begin(context.WithoutCancel(ctx), batchID)
	if err != nil {
		return err
	}
	go func() {
		summary, err := p.run(runCtx, batch)
		if err != nil {
			zap.L().Error("service.Pipeline: background processing failed",
				zap.String("batch_id", batchID.String()), zap.Error(err))
			return
		}
		zap.L().Info("service.Pipeline: batch processed",
			zap.String("batch_id", batchID.String()),
			zap.Int("processed", summary.Processed),
			zap.Int("under_review", summary.UnderReview),
			zap.Bool("cancelled", summary.Cancelled),
		)
	}()
	return nil
}

// Process extracts every typed document of the batch that has no record yet,
// settles each record and reports the counts. Document-level failures become
// rejected records; only store failures abort the run.
func (p *Pipeline) Process(ctx context.Context, batchID uuid.UUID) (*ProcessSummary, error) {
	runCtx, batch, err := p.begin(ctx, batchID)
	if err != nil {
		return nil, err
	}
	return p.run(runCtx, batch)
}

func (p *Pipeline) begin(parent context.Context, batchID uuid.UUID) (context.Context, *domain.Batch, error) {
	unlock := p.batchLocks.lock(batchID)
	defer unlock()

	batch, err := p.loadOpenBatch(parent, batchID)
	if err != nil {
		return nil, nil, err
	}

	p.mu.Lock()
	if _, busy := p.running[batchID]; busy {
		p.mu.Unlock()
		return nil, nil, domain.ErrBatchBusy
	}
	ctx, cancel := context.WithCancel(parent)
	p.running[batchID] = cancel
	p.mu.Unlock()

	if err := p.deps.Batches.UpdateStatus(parent, batchID, domain.BatchStatusProcessing); err != nil {
		p.finish(batchID)
		return nil, nil, fmt.Errorf("marking batch processing: %w", err)
	}
	batch.Status = domain.BatchStatusProcessing
	p.invalidateReport(batchID)
	return ctx, batch, nil
}

func (p *Pipeline) finish(batchID uuid.UUID) {
	p.mu.Lock()
	if cancel, ok := p.running[batchID]; ok {
		cancel()
		delete(p.running, batchID)
	}
	p.mu.Unlock()
}

func (p *Pipeline) run(ctx context.Context, batch *domain.Batch) (*ProcessSummary, error) {
	defer p.finish(batch.ID)
	// status bookkeeping must survive a cancelled run
	bg := context.WithoutCancel(ctx)

	docs, err := p.deps.Documents.ListByBatch(ctx, batch.ID)
	if err != nil {
		p.finish(batch.ID)
		_ = p.refreshStatus(bg, batch.ID)
		return nil, fmt.Errorf("listing documents: %w", err)
	}

	summary := &ProcessSummary{BatchID: batch.ID}
	var pending []domain.RawDocument
	for i := range docs {
		doc := docs[i]
		if doc.Type == domain.DocumentTypeUnknown {
			summary.AwaitType++
			continue
		}
		_, err := p.deps.Records.GetByDocument(ctx, doc.ID)
		switch {
		case err == nil:
			summary.Skipped++
		case errors.Is(err, domain.ErrRecordNotFound):
			pending = append(pending, doc)
		default:
			p.finish(batch.ID)
			_ = p.refreshStatus(bg, batch.ID)
			return nil, fmt.Errorf("loading record of document %s: %w", doc.ID, err)
		}
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)
	for i := range pending {
		doc := pending[i]
		g.Go(func() error {
			state, err := p.processDocument(gctx, doc)
			if err != nil {
				if errors.Is(err, errDiscarded) {
					return nil
				}
				return err
			}
			mu.Lock()
			summary.count(state)
			mu.Unlock()
			return nil
		})
	}
	runErr := g.Wait()
	summary.Cancelled = ctx.Err() != nil && runErr == nil

	p.finish(batch.ID)
	if err := p.refreshStatus(bg, batch.ID); err != nil {
		zap.L().Warn("service.Pipeline: refreshing batch status failed",
			zap.String("batch_id", batch.ID.String()), zap.Error(err))
	}
	if runErr != nil {
		return summary, fmt.Errorf("processing batch %s: %w", batch.ID, runErr)
	}
	if summary.Cancelled {
		zap.L().Info("service.Pipeline: run cancelled, unfinished documents discarded",
			zap.String("batch_id", batch.ID.String()))
		return summary, nil
	}

	if stats, err := p.Stats(bg, batch.ID); err == nil {
		p.notifyReviewers(bg, batch, stats)
	}
	return summary, nil
}

func (s *ProcessSummary) count(state domain.RecordState) {
	s.Processed++
	switch state {
	case domain.RecordStateValidated:
		s.Validated++
	case domain.RecordStateUnderReview:
		s.UnderReview++
	case domain.RecordStateRejected:
		s.Rejected++
	}
}

func (p *Pipeline) processDocument(ctx context.Context, doc domain.RawDocument) (domain.RecordState, error) {
	start := p.now()
	p.deps.Metrics.StartExtraction()
	rec, extractErr := p.extractDocument(ctx, &doc)
	p.deps.Metrics.FinishExtraction(string(doc.Type), p.now().Sub(start), extractionStatus(rec, extractErr))

	if ctx.Err() != nil {
		return "", errDiscarded
	}

	var cmd review.Command
	if extractErr != nil {
		zap.L().Warn("service.Pipeline: extraction failed",
			zap.String("document_id", doc.ID.String()), zap.Error(extractErr))
		cmd = review.Fail(rec.Version, extractErr)
	} else {
		ev := validator.Evaluate(&rec, p.cfg.Thresholds)
		p.deps.Metrics.RecordBand(string(ev.Band))
		cmd = review.Settle(rec.Version, ev.Band)
	}

	next, err := review.Apply(rec, cmd)
	if err != nil {
		return "", fmt.Errorf("settling record of document %s: %w", doc.ID, err)
	}
	if err := p.deps.Records.Upsert(ctx, &next); err != nil {
		return "", fmt.Errorf("storing record of document %s: %w", doc.ID, err)
	}

	p.deps.Metrics.RecordTransition(string(rec.State), string(next.State))
	p.publish(ctx, port.BatchEvent{
		Type:       port.EventDocumentExtracted,
		BatchID:    doc.BatchID,
		DocumentID: doc.ID,
		Status:     string(next.State),
		Detail:     string(next.ErrorKind),
	})
	return next.State, nil
}

func (p *Pipeline) extractDocument(ctx context.Context, doc *domain.RawDocument) (domain.ExtractedRecord, error) {
	data, err := p.deps.Storage.Download(ctx, p.cfg.Bucket, doc.StorageKey)
	if err != nil {
		now := p.now().UTC()
		rec := domain.ExtractedRecord{
			ID:           uuid.New(),
			BatchID:      doc.BatchID,
			DocumentID:   doc.ID,
			DocumentType: doc.Type,
			State:        domain.RecordStateExtracted,
			Version:      1,
			ExtractedAt:  now,
			UpdatedAt:    now,
		}
		return rec, domain.NewPipelineError(domain.KindExtractionTransportError, doc.ID, "document bytes unavailable", err)
	}
	layer := readLayer(data, doc.ContentType, doc.FileName)
	return p.deps.Extractor.Extract(ctx, doc, data, layer)
}

func extractionStatus(rec domain.ExtractedRecord, err error) string {
	switch {
	case err != nil:
		return "transport_error"
	case rec.ErrorKind == domain.KindExtractionParseError:
		return "parse_error"
	default:
		return "ok"
	}
}

// refreshStatus moves an idle batch between open and ready as its records
// settle. Running, cancelled and consolidated batches are left alone.
func (p *Pipeline) refreshStatus(ctx context.Context, batchID uuid.UUID) error {
	unlock := p.batchLocks.lock(batchID)
	defer unlock()

	p.mu.Lock()
	_, busy := p.running[batchID]
	p.mu.Unlock()
	if busy {
		return nil
	}

	stats, err := p.Stats(ctx, batchID)
	if err != nil {
		return err
	}
	if stats.Status == domain.BatchStatusCancelled || stats.Status == domain.BatchStatusConsolidated {
		return nil
	}
	want := domain.BatchStatusOpen
	if stats.ReadyToConsolidate {
		want = domain.BatchStatusReady
	}
	if stats.Status == want {
		return nil
	}
	if err := p.deps.Batches.UpdateStatus(ctx, batchID, want); err != nil {
		return fmt.Errorf("updating batch status: %w", err)
	}
	if want == domain.BatchStatusReady {
		p.publish(ctx, port.BatchEvent{Type: port.EventBatchReady, BatchID: batchID, Status: string(want)})
	}
	return nil
}

func (p *Pipeline) notifyReviewers(ctx context.Context, batch *domain.Batch, stats *domain.BatchStats) {
	needs := stats.ByState[domain.RecordStateUnderReview]
	if p.deps.Email == nil || len(p.cfg.ReviewerEmails) == 0 || needs+stats.UnknownType == 0 {
		return
	}
	summary := port.ReviewSummary{
		BatchID:     batch.ID.String(),
		BatchName:   batch.Name,
		NeedsReview: needs,
		UnknownType: stats.UnknownType,
		ReviewURL:   fmt.Sprintf("%s/batches/%s/review", strings.TrimRight(p.cfg.FrontendURL, "/"), batch.ID),
	}
	for _, to := range p.cfg.ReviewerEmails {
		if err := p.deps.Email.SendReviewRequest(ctx, to, summary); err != nil {
			zap.L().Warn("service.Pipeline: review request email failed",
				zap.String("to", to), zap.Error(err))
		}
	}
}

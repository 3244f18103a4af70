package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"aforo/internal/consolidate"
	"aforo/internal/domain"
	"aforo/internal/finance"
	"aforo/internal/port"
	"aforo/internal/report"
	"aforo/internal/review"
	"aforo/internal/translate"
)

// ConsolidationService defines consolidation of a settled batch into a report.
type ConsolidationService interface {
	// Consolidate builds the report of a batch whose records are all terminal.
	// costs is keyed by BL number; missing entries use the defaults.
	Consolidate(ctx context.Context, batchID uuid.UUID, costs map[string]domain.ShipmentCosts) (*report.Report, error)
	Report(ctx context.Context, batchID uuid.UUID) (*report.Report, error)
}

func (p *Pipeline) Consolidate(ctx context.Context, batchID uuid.UUID, costs map[string]domain.ShipmentCosts) (*report.Report, error) {
	unlock := p.batchLocks.lock(batchID)
	defer unlock()

	batch, err := p.deps.Batches.GetByID(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if batch.Status == domain.BatchStatusCancelled {
		return nil, domain.ErrBatchClosed
	}
	p.mu.Lock()
	_, busy := p.running[batchID]
	p.mu.Unlock()
	if busy {
		return nil, domain.ErrBatchBusy
	}

	docs, err := p.deps.Documents.ListByBatch(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	if len(docs) == 0 {
		return nil, domain.ErrEmptyBatch
	}
	records, err := p.deps.Records.ListByBatch(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	if !computeStats(batch, docs, records, p.cfg.Thresholds).ReadyToConsolidate {
		return nil, domain.ErrBatchNotReady
	}

	rep, grouped, err := p.buildReport(ctx, batch, docs, records, costs)
	if err != nil {
		return nil, err
	}
	if err := p.deps.Batches.SaveCosts(ctx, batchID, costs); err != nil {
		return nil, fmt.Errorf("storing costs: %w", err)
	}
	if err := p.markConsolidated(ctx, grouped); err != nil {
		return nil, err
	}
	if batch.Status != domain.BatchStatusConsolidated {
		if err := p.deps.Batches.UpdateStatus(ctx, batchID, domain.BatchStatusConsolidated); err != nil {
			return nil, fmt.Errorf("marking batch consolidated: %w", err)
		}
	}

	for _, w := range rep.Warnings {
		p.deps.Metrics.RecordWarning(string(w.Kind))
	}
	p.mu.Lock()
	p.reports[batchID] = rep
	p.mu.Unlock()

	zap.L().Info("service.Pipeline: batch consolidated",
		zap.String("batch_id", batchID.String()),
		zap.Int("shipments", len(rep.Shipments)),
		zap.Int("unmatched", len(rep.Unmatched)),
		zap.Int("warnings", len(rep.Warnings)),
	)
	p.publish(ctx, port.BatchEvent{
		Type:    port.EventBatchConsolidated,
		BatchID: batchID,
		Status:  string(domain.BatchStatusConsolidated),
		Detail:  fmt.Sprintf("%d shipment(s), %d warning(s)", len(rep.Shipments), len(rep.Warnings)),
	})
	return rep, nil
}

// Report returns the last consolidated report of a batch, rebuilding it with
// the stored costs of that consolidation when it is not cached.
func (p *Pipeline) Report(ctx context.Context, batchID uuid.UUID) (*report.Report, error) {
	p.mu.Lock()
	rep, ok := p.reports[batchID]
	p.mu.Unlock()
	if ok {
		return rep, nil
	}

	batch, err := p.deps.Batches.GetByID(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if batch.Status != domain.BatchStatusConsolidated {
		return nil, domain.ErrBatchNotReady
	}
	docs, err := p.deps.Documents.ListByBatch(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	records, err := p.deps.Records.ListByBatch(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	costs, err := p.deps.Batches.GetCosts(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("loading costs: %w", err)
	}
	rep, _, err = p.buildReport(ctx, batch, docs, records, costs)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.reports[batchID] = rep
	p.mu.Unlock()
	return rep, nil
}

// buildReport consolidates, then allocates costs and translates every
// shipment in parallel. It also returns the records that ended up in a
// shipment.
func (p *Pipeline) buildReport(ctx context.Context, batch *domain.Batch, docs []domain.RawDocument,
	records []domain.ExtractedRecord, costs map[string]domain.ShipmentCosts) (*report.Report, []domain.ExtractedRecord, error) {
	sequence := make(map[uuid.UUID]int, len(docs))
	for i := range docs {
		sequence[docs[i].ID] = docs[i].Sequence
	}
	result := p.deps.Consolidator.Consolidate(records, sequence)

	allocations := make([]finance.ShipmentAllocation, len(result.Shipments))
	translations := make([][]translate.Translation, len(result.Shipments))
	trWarnings := make([][]domain.Warning, len(result.Shipments))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for i := range result.Shipments {
			if err := gctx.Err(); err != nil {
				return err
			}
			s := &result.Shipments[i]
			allocations[i] = p.deps.Finance.Allocate(s, costsFor(costs, s.BLNumber))
		}
		return nil
	})
	g.Go(func() error {
		for i := range result.Shipments {
			if err := gctx.Err(); err != nil {
				return err
			}
			translations[i], trWarnings[i] = p.deps.Translator.TranslateShipment(&result.Shipments[i])
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("building report: %w", err)
	}

	var translationWarnings []domain.Warning
	for _, ws := range trWarnings {
		translationWarnings = append(translationWarnings, ws...)
	}

	rep := report.Build(report.Input{
		Batch:               *batch,
		Consolidation:       result,
		Allocations:         allocations,
		Translations:        translations,
		Warnings:            documentWarnings(docs, records),
		TranslationWarnings: translationWarnings,
		Catalog:             p.deps.Catalog,
		Now:                 p.now().UTC(),
	})
	return rep, groupedRecords(result), nil
}

// groupedRecords lists the BL and invoices of every shipment. Unmatched
// invoices and ignored BLs are not part of any shipment and stay validated.
func groupedRecords(result consolidate.Result) []domain.ExtractedRecord {
	var out []domain.ExtractedRecord
	for _, s := range result.Shipments {
		out = append(out, s.BL)
		out = append(out, s.Invoices...)
	}
	return out
}

func (p *Pipeline) markConsolidated(ctx context.Context, records []domain.ExtractedRecord) error {
	for i := range records {
		if records[i].State != domain.RecordStateValidated {
			continue
		}
		if err := p.consolidateRecord(ctx, records[i].ID); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) consolidateRecord(ctx context.Context, recordID uuid.UUID) error {
	unlock := p.locks.lock(recordID)
	defer unlock()

	prior, err := p.deps.Records.GetByID(ctx, recordID)
	if err != nil {
		return err
	}
	next, err := review.Apply(*prior, review.Consolidate(prior.Version))
	if err != nil {
		return fmt.Errorf("consolidating record %s: %w", recordID, err)
	}
	if err := p.deps.Records.Update(ctx, &next, prior.Version); err != nil {
		return fmt.Errorf("storing consolidated record %s: %w", recordID, err)
	}
	p.deps.Metrics.RecordTransition(string(prior.State), string(next.State))
	return nil
}

func costsFor(costs map[string]domain.ShipmentCosts, blNumber string) domain.ShipmentCosts {
	if c, ok := costs[blNumber]; ok {
		return c
	}
	for k, c := range costs {
		if consolidate.NormalizeBL(k) == blNumber {
			return c
		}
	}
	return domain.ShipmentCosts{}
}

// documentWarnings lists document-level findings in ingestion order: manual
// type assignments, rejected records and records whose model answer was
// unusable.
func documentWarnings(docs []domain.RawDocument, records []domain.ExtractedRecord) []domain.Warning {
	byDoc := make(map[uuid.UUID]*domain.ExtractedRecord, len(records))
	for i := range records {
		byDoc[records[i].DocumentID] = &records[i]
	}
	ordered := make([]domain.RawDocument, len(docs))
	copy(ordered, docs)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Sequence < ordered[j].Sequence })

	var out []domain.Warning
	for _, doc := range ordered {
		if doc.TypeSource == domain.TypeSourceManual {
			out = append(out, domain.Warning{
				Kind:       domain.KindClassificationLowConfidence,
				DocumentID: doc.ID,
				Message:    fmt.Sprintf("%s: type %s assigned manually", doc.FileName, doc.Type),
			})
		}
		rec, ok := byDoc[doc.ID]
		if !ok {
			continue
		}
		switch {
		case rec.State == domain.RecordStateRejected:
			kind := rec.ErrorKind
			if kind == "" {
				kind = domain.KindRecordRejected
			}
			out = append(out, domain.Warning{
				Kind:       kind,
				DocumentID: doc.ID,
				Message:    fmt.Sprintf("%s: rejected: %s", doc.FileName, rec.RejectReason),
			})
		case rec.ErrorKind == domain.KindExtractionParseError:
			out = append(out, domain.Warning{
				Kind:       domain.KindExtractionParseError,
				DocumentID: doc.ID,
				Message:    fmt.Sprintf("%s: model answer unusable, values entered by a reviewer", doc.FileName),
			})
		}
	}
	return out
}

package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"aforo/internal/classifier"
	"aforo/internal/consolidate"
	"aforo/internal/domain"
	"aforo/internal/extract"
	"aforo/internal/finance"
	"aforo/internal/observability/metrics"
	"aforo/internal/port"
	"aforo/internal/report"
	"aforo/internal/translate"
	"aforo/internal/validator"
)

// Config holds the pipeline settings the service needs at runtime.
type Config struct {
	Bucket         string
	Concurrency    int
	MaxFileSize    int64
	PresignExpiry  int64
	Thresholds     validator.Thresholds
	ReviewerEmails []string
	FrontendURL    string
}

// Dependencies are the collaborators of the pipeline. Events, Email and
// Metrics are optional.
type Dependencies struct {
	Batches      port.BatchRepository
	Documents    port.DocumentRepository
	Records      port.RecordRepository
	Storage      port.ObjectStorage
	Classifier   *classifier.Classifier
	Extractor    *extract.Extractor
	Consolidator *consolidate.Engine
	Finance      *finance.Engine
	Translator   *translate.Translator
	Catalog      []translate.Entry
	Events       port.EventPublisher
	Email        port.EmailSender
	Metrics      *metrics.Metrics
}

// Pipeline implements BatchService, ReviewService and ConsolidationService
// over one set of stores, so record locks and in-flight runs are shared.
type Pipeline struct {
	deps Dependencies
	cfg  Config
	now  func() time.Time

	locks idLocks
	// held across every read-modify-write of a batch status
	batchLocks idLocks

	mu      sync.Mutex
	running map[uuid.UUID]context.CancelFunc
	reports map[uuid.UUID]*report.Report
}

// NewPipeline creates a Pipeline. A non-positive concurrency runs one
// document at a time.
func NewPipeline(deps Dependencies, cfg Config) *Pipeline {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.PresignExpiry <= 0 {
		cfg.PresignExpiry = 3600
	}
	if cfg.Thresholds == (validator.Thresholds{}) {
		cfg.Thresholds = validator.DefaultThresholds()
	}
	return &Pipeline{
		deps:    deps,
		cfg:     cfg,
		now:     time.Now,
		running: make(map[uuid.UUID]context.CancelFunc),
		reports: make(map[uuid.UUID]*report.Report),
	}
}

var (
	_ BatchService         = (*Pipeline)(nil)
	_ ReviewService        = (*Pipeline)(nil)
	_ ConsolidationService = (*Pipeline)(nil)
)

func (p *Pipeline) publish(ctx context.Context, event port.BatchEvent) {
	if p.deps.Events == nil {
		return
	}
	event.OccurredAt = p.now().UTC()
	if err := p.deps.Events.Publish(ctx, event); err != nil {
		zap.L().Warn("service.Pipeline: event publish failed",
			zap.String("type", event.Type),
			zap.String("batch_id", event.BatchID.String()),
			zap.Error(err),
		)
	}
}

func (p *Pipeline) loadOpenBatch(ctx context.Context, batchID uuid.UUID) (*domain.Batch, error) {
	batch, err := p.deps.Batches.GetByID(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if batch.Status == domain.BatchStatusCancelled || batch.Status == domain.BatchStatusConsolidated {
		return nil, domain.ErrBatchClosed
	}
	return batch, nil
}

func (p *Pipeline) invalidateReport(batchID uuid.UUID) {
	p.mu.Lock()
	delete(p.reports, batchID)
	p.mu.Unlock()
}

// idLocks serializes writers of the same record or batch.
type idLocks struct {
	m sync.Map
}

func (l *idLocks) lock(id uuid.UUID) func() {
	v, _ := l.m.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

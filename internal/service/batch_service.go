package service

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"aforo/internal/domain"
	"aforo/internal/pdftext"
	"aforo/internal/port"
)

// AddDocumentInput is the DTO for ingesting one file into a batch.
type AddDocumentInput struct {
	BatchID     uuid.UUID
	FileName    string
	ContentType string
	Data        []byte
}

// ProcessSummary counts the outcome of one Process run.
type ProcessSummary struct {
	BatchID     uuid.UUID `json:"batch_id"`
	Processed   int       `json:"processed"`
	Validated   int       `json:"validated"`
	UnderReview int       `json:"under_review"`
	Rejected    int       `json:"rejected"`
	AwaitType   int       `json:"awaiting_type"`
	Skipped     int       `json:"skipped"`
	Cancelled   bool      `json:"cancelled"`
}

// BatchService defines ingestion and processing of batches.
type BatchService interface {
	CreateBatch(ctx context.Context, name string) (*domain.Batch, error)
	GetBatch(ctx context.Context, id uuid.UUID) (*domain.Batch, error)
	ListBatches(ctx context.Context, offset, limit int) ([]domain.Batch, int, error)
	AddDocument(ctx context.Context, input *AddDocumentInput) (*domain.RawDocument, error)
	ListDocuments(ctx context.Context, batchID uuid.UUID) ([]domain.RawDocument, error)
	GetDocument(ctx context.Context, documentID uuid.UUID) (*domain.RawDocument, error)
	GetDownloadURL(ctx context.Context, documentID uuid.UUID) (string, error)
	AssignType(ctx context.Context, documentID uuid.UUID, docType domain.DocumentType) (*domain.RawDocument, error)
	Start(ctx context.Context, batchID uuid.UUID) error
	Process(ctx context.Context, batchID uuid.UUID) (*ProcessSummary, error)
	Cancel(ctx context.Context, batchID uuid.UUID) error
	Stats(ctx context.Context, batchID uuid.UUID) (*domain.BatchStats, error)
}

func (p *Pipeline) CreateBatch(ctx context.Context, name string) (*domain.Batch, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "batch " + p.now().UTC().Format("2006-01-02 15:04")
	}
	batch := &domain.Batch{
		ID:     uuid.New(),
		Name:   name,
		Status: domain.BatchStatusOpen,
	}
	if err := p.deps.Batches.Create(ctx, batch); err != nil {
		return nil, fmt.Errorf("creating batch: %w", err)
	}
	return batch, nil
}

func (p *Pipeline) GetBatch(ctx context.Context, id uuid.UUID) (*domain.Batch, error) {
	return p.deps.Batches.GetByID(ctx, id)
}

func (p *Pipeline) ListBatches(ctx context.Context, offset, limit int) ([]domain.Batch, int, error) {
	return p.deps.Batches.List(ctx, offset, limit)
}

func (p *Pipeline) ListDocuments(ctx context.Context, batchID uuid.UUID) ([]domain.RawDocument, error) {
	if _, err := p.deps.Batches.GetByID(ctx, batchID); err != nil {
		return nil, err
	}
	return p.deps.Documents.ListByBatch(ctx, batchID)
}

func (p *Pipeline) GetDocument(ctx context.Context, documentID uuid.UUID) (*domain.RawDocument, error) {
	return p.deps.Documents.GetByID(ctx, documentID)
}

// GetDownloadURL returns a time-limited link to the original upload so the
// reviewer can compare it with the extracted fields.
func (p *Pipeline) GetDownloadURL(ctx context.Context, documentID uuid.UUID) (string, error) {
	doc, err := p.deps.Documents.GetByID(ctx, documentID)
	if err != nil {
		return "", err
	}
	return p.deps.Storage.GetPresignedURL(ctx, p.cfg.Bucket, doc.StorageKey, p.cfg.PresignExpiry)
}

// AddDocument stores the bytes, classifies the document and records it with
// the next ingestion sequence of the batch.
func (p *Pipeline) AddDocument(ctx context.Context, input *AddDocumentInput) (*domain.RawDocument, error) {
	batch, err := p.loadOpenBatch(ctx, input.BatchID)
	if err != nil {
		return nil, err
	}

	contentType, ext, err := resolveContentType(input.FileName, input.ContentType)
	if err != nil {
		return nil, err
	}
	if p.cfg.MaxFileSize > 0 && int64(len(input.Data)) > p.cfg.MaxFileSize {
		return nil, domain.ErrFileTooLarge
	}

	layer := readLayer(input.Data, contentType, input.FileName)
	cls := p.deps.Classifier.Classify(input.FileName, layer)

	seq, err := p.deps.Documents.NextSequence(ctx, batch.ID)
	if err != nil {
		return nil, fmt.Errorf("allocating sequence: %w", err)
	}

	doc := &domain.RawDocument{
		ID:             uuid.New(),
		BatchID:        batch.ID,
		FileName:       input.FileName,
		ContentType:    contentType,
		Size:           int64(len(input.Data)),
		Type:           cls.Type,
		TypeConfidence: cls.Confidence,
		TypeSource:     domain.TypeSourceClassifier,
		PageCount:      layer.PageCount,
		Sequence:       seq,
	}
	doc.StorageKey = fmt.Sprintf("batches/%s/%s.%s", batch.ID, doc.ID, ext)

	if _, err := p.deps.Storage.Upload(ctx, port.UploadInput{
		Bucket:      p.cfg.Bucket,
		Key:         doc.StorageKey,
		Body:        bytes.NewReader(input.Data),
		ContentType: contentType,
		Size:        doc.Size,
	}); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUploadFailed, err)
	}

	if err := p.deps.Documents.Create(ctx, doc); err != nil {
		if delErr := p.deps.Storage.Delete(ctx, p.cfg.Bucket, doc.StorageKey); delErr != nil {
			zap.L().Warn("service.Pipeline: cleanup of orphaned upload failed",
				zap.String("key", doc.StorageKey), zap.Error(delErr))
		}
		return nil, fmt.Errorf("creating document: %w", err)
	}

	p.deps.Metrics.RecordClassification(string(doc.Type))
	if cls.LowConfidence() {
		zap.L().Info("service.Pipeline: document needs a manual type",
			zap.String("document_id", doc.ID.String()),
			zap.String("file_name", doc.FileName),
			zap.Float64("confidence", cls.Confidence),
		)
	}
	if err := p.reopen(ctx, batch.ID); err != nil {
		return nil, err
	}
	p.invalidateReport(batch.ID)
	p.publish(ctx, port.BatchEvent{
		Type:       port.EventDocumentAdded,
		BatchID:    batch.ID,
		DocumentID: doc.ID,
		Status:     string(doc.Type),
		Detail:     doc.FileName,
	})
	return doc, nil
}

// AssignType sets the type of a document the classifier could not label.
func (p *Pipeline) AssignType(ctx context.Context, documentID uuid.UUID, docType domain.DocumentType) (*domain.RawDocument, error) {
	if !domain.ValidDocumentTypes[docType] {
		return nil, domain.ErrInvalidDocumentType
	}
	doc, err := p.deps.Documents.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if _, err := p.loadOpenBatch(ctx, doc.BatchID); err != nil {
		return nil, err
	}
	if doc.Type != domain.DocumentTypeUnknown {
		return nil, domain.ErrTypeAlreadyAssigned
	}

	doc.Type = docType
	doc.TypeConfidence = 1
	doc.TypeSource = domain.TypeSourceManual
	if err := p.deps.Documents.UpdateType(ctx, doc); err != nil {
		return nil, fmt.Errorf("assigning type: %w", err)
	}
	p.invalidateReport(doc.BatchID)
	return doc, nil
}

// reopen moves a ready batch back to open after a new document arrived.
func (p *Pipeline) reopen(ctx context.Context, batchID uuid.UUID) error {
	unlock := p.batchLocks.lock(batchID)
	defer unlock()

	batch, err := p.deps.Batches.GetByID(ctx, batchID)
	if err != nil {
		return err
	}
	if batch.Status != domain.BatchStatusReady {
		return nil
	}
	if err := p.deps.Batches.UpdateStatus(ctx, batchID, domain.BatchStatusOpen); err != nil {
		return fmt.Errorf("reopening batch: %w", err)
	}
	return nil
}

// Cancel stops an in-flight Process run and closes the batch. Results of
// documents still being extracted are discarded. The batch lock is held
// throughout, so the run cannot move the status back to open or ready.
func (p *Pipeline) Cancel(ctx context.Context, batchID uuid.UUID) error {
	unlock := p.batchLocks.lock(batchID)
	defer unlock()

	if _, err := p.loadOpenBatch(ctx, batchID); err != nil {
		return err
	}

	p.mu.Lock()
	cancel, ok := p.running[batchID]
	p.mu.Unlock()
	if ok {
		cancel()
	}

	if err := p.deps.Batches.UpdateStatus(ctx, batchID, domain.BatchStatusCancelled); err != nil {
		return fmt.Errorf("cancelling batch: %w", err)
	}
	p.invalidateReport(batchID)
	p.publish(ctx, port.BatchEvent{Type: port.EventBatchCancelled, BatchID: batchID, Status: string(domain.BatchStatusCancelled)})
	return nil
}

func resolveContentType(fileName, contentType string) (string, string, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(fileName)), ".")
	if ct := strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]); ct != "" && ct != "application/octet-stream" {
		ft, ok := domain.AllowedContentTypes[ct]
		if !ok {
			return "", "", domain.ErrUnsupportedFileType
		}
		return ct, string(ft), nil
	}
	ft, ok := domain.AllowedExtensions[ext]
	if !ok {
		return "", "", domain.ErrUnsupportedFileType
	}
	return domain.AllowedFileTypes[ft], string(ft), nil
}

// readLayer never fails: an unreadable PDF is treated as a scan without text.
func readLayer(data []byte, contentType, fileName string) pdftext.Layer {
	layer, err := pdftext.Read(data, contentType)
	if err != nil {
		zap.L().Warn("service.Pipeline: text layer unreadable",
			zap.String("file_name", fileName), zap.Error(err))
		return pdftext.Layer{PageCount: 1}
	}
	return layer
}

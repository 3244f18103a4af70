package handler

import (
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"aforo/internal/domain"
	"aforo/internal/service"
)

// BatchHandler handles batch intake and processing endpoints.
type BatchHandler struct {
	batchService service.BatchService
}

// NewBatchHandler creates a new BatchHandler.
func NewBatchHandler(batchService service.BatchService) *BatchHandler {
	return &BatchHandler{batchService: batchService}
}

// UploadResult is the outcome for one file of a multi-file upload.
type UploadResult struct {
	FileName string              `json:"file_name"`
	Document *domain.RawDocument `json:"document,omitempty"`
	Error    *APIError           `json:"error,omitempty"`
}

// Create handles POST /api/v1/batches
func (h *BatchHandler) Create(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
			return
		}
	}

	batch, err := h.batchService.CreateBatch(c.Request.Context(), req.Name)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondCreated(c, batch)
}

// List handles GET /api/v1/batches
func (h *BatchHandler) List(c *gin.Context) {
	offset, limit := parsePagination(c)

	batches, total, err := h.batchService.ListBatches(c.Request.Context(), offset, limit)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondPaginated(c, batches, PagMeta{Total: total, Offset: offset, Limit: limit})
}

// GetByID handles GET /api/v1/batches/:id
func (h *BatchHandler) GetByID(c *gin.Context) {
	id, ok := parseIDParam(c, "id", "batch")
	if !ok {
		return
	}

	batch, err := h.batchService.GetBatch(c.Request.Context(), id)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, batch)
}

// Stats handles GET /api/v1/batches/:id/stats
func (h *BatchHandler) Stats(c *gin.Context) {
	id, ok := parseIDParam(c, "id", "batch")
	if !ok {
		return
	}

	stats, err := h.batchService.Stats(c.Request.Context(), id)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, stats)
}

// Upload handles POST /api/v1/batches/:id/documents
// Accepts one or more multipart parts named "files" (or a single "file").
// Files are ingested independently; a rejected file does not stop the rest.
func (h *BatchHandler) Upload(c *gin.Context) {
	batchID, ok := parseIDParam(c, "id", "batch")
	if !ok {
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		RespondError(c, http.StatusBadRequest, "MISSING_FILE", "multipart form with files is required")
		return
	}
	headers := form.File["files"]
	headers = append(headers, form.File["file"]...)
	if len(headers) == 0 {
		RespondError(c, http.StatusBadRequest, "MISSING_FILE", "files field is required")
		return
	}

	results := make([]UploadResult, 0, len(headers))
	accepted := 0
	var firstErr error
	for _, fh := range headers {
		res := UploadResult{FileName: fh.Filename}
		doc, err := h.ingest(c, batchID, fh)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			_, code, msg := MapDomainError(err)
			res.Error = &APIError{Code: code, Message: msg}
			zap.L().Info("handler.BatchHandler: file rejected",
				zap.String("batch_id", batchID.String()),
				zap.String("file_name", fh.Filename),
				zap.Error(err),
			)
		} else {
			res.Document = doc
			accepted++
		}
		results = append(results, res)
	}

	if accepted == 0 {
		HandleError(c, firstErr)
		return
	}
	RespondCreated(c, results)
}

func (h *BatchHandler) ingest(c *gin.Context, batchID uuid.UUID, fh *multipart.FileHeader) (*domain.RawDocument, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	return h.batchService.AddDocument(c.Request.Context(), &service.AddDocumentInput{
		BatchID:     batchID,
		FileName:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	})
}

// ListDocuments handles GET /api/v1/batches/:id/documents
func (h *BatchHandler) ListDocuments(c *gin.Context) {
	id, ok := parseIDParam(c, "id", "batch")
	if !ok {
		return
	}

	docs, err := h.batchService.ListDocuments(c.Request.Context(), id)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, docs)
}

// GetDocument handles GET /api/v1/documents/:id
// The response carries a presigned link to the original upload.
func (h *BatchHandler) GetDocument(c *gin.Context) {
	id, ok := parseIDParam(c, "id", "document")
	if !ok {
		return
	}

	doc, err := h.batchService.GetDocument(c.Request.Context(), id)
	if err != nil {
		HandleError(c, err)
		return
	}

	downloadURL, err := h.batchService.GetDownloadURL(c.Request.Context(), id)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, gin.H{
		"document":     doc,
		"download_url": downloadURL,
	})
}

// AssignType handles PUT /api/v1/documents/:id/type
func (h *BatchHandler) AssignType(c *gin.Context) {
	id, ok := parseIDParam(c, "id", "document")
	if !ok {
		return
	}

	var req struct {
		DocumentType domain.DocumentType `json:"document_type" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "document_type is required")
		return
	}

	doc, err := h.batchService.AssignType(c.Request.Context(), id, req.DocumentType)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, doc)
}

// Process handles POST /api/v1/batches/:id/process
// Extraction runs in the background; poll the stats endpoint for progress.
func (h *BatchHandler) Process(c *gin.Context) {
	id, ok := parseIDParam(c, "id", "batch")
	if !ok {
		return
	}

	if err := h.batchService.Start(c.Request.Context(), id); err != nil {
		HandleError(c, err)
		return
	}
	RespondAccepted(c, gin.H{"batch_id": id, "status": domain.BatchStatusProcessing})
}

// Cancel handles POST /api/v1/batches/:id/cancel
func (h *BatchHandler) Cancel(c *gin.Context) {
	id, ok := parseIDParam(c, "id", "batch")
	if !ok {
		return
	}

	if err := h.batchService.Cancel(c.Request.Context(), id); err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, gin.H{"batch_id": id, "status": domain.BatchStatusCancelled})
}

package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"aforo/internal/domain"
)

// APIResponse is the standard envelope for all API responses.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    *PagMeta    `json:"meta,omitempty"`
}

// APIError holds error details in the response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PagMeta holds pagination metadata.
type PagMeta struct {
	Total  int `json:"total"`
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// RespondOK sends a 200 success response.
func RespondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: data})
}

// RespondCreated sends a 201 success response.
func RespondCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, APIResponse{Success: true, Data: data})
}

// RespondAccepted sends a 202 response for work that continues in the background.
func RespondAccepted(c *gin.Context, data interface{}) {
	c.JSON(http.StatusAccepted, APIResponse{Success: true, Data: data})
}

// RespondPaginated sends a 200 success response with pagination metadata.
func RespondPaginated(c *gin.Context, data interface{}, meta PagMeta) {
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: data, Meta: &meta})
}

// RespondError sends an error response with the given status code.
func RespondError(c *gin.Context, status int, code, msg string) {
	c.JSON(status, APIResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: msg},
	})
}

// MapDomainError translates domain errors to HTTP status codes and error codes.
func MapDomainError(err error) (status int, code, msg string) {
	switch {
	case errors.Is(err, domain.ErrBatchNotFound):
		return http.StatusNotFound, "BATCH_NOT_FOUND", "batch not found"
	case errors.Is(err, domain.ErrDocumentNotFound):
		return http.StatusNotFound, "DOCUMENT_NOT_FOUND", "document not found"
	case errors.Is(err, domain.ErrRecordNotFound):
		return http.StatusNotFound, "RECORD_NOT_FOUND", "record not found"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", "resource not found"
	case errors.Is(err, domain.ErrUnsupportedFileType):
		return http.StatusBadRequest, "UNSUPPORTED_FILE_TYPE", "unsupported file type; allowed: pdf, jpg, png"
	case errors.Is(err, domain.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "file exceeds maximum allowed size"
	case errors.Is(err, domain.ErrUploadFailed):
		return http.StatusInternalServerError, "UPLOAD_FAILED", "file upload to storage failed"
	case errors.Is(err, domain.ErrEmptyBatch):
		return http.StatusBadRequest, "EMPTY_BATCH", "batch has no documents"
	case errors.Is(err, domain.ErrBatchNotReady):
		return http.StatusConflict, "BATCH_NOT_READY", "batch has documents that are unprocessed, untyped or under review"
	case errors.Is(err, domain.ErrBatchClosed):
		return http.StatusConflict, "BATCH_CLOSED", "batch is cancelled or consolidated"
	case errors.Is(err, domain.ErrBatchBusy):
		return http.StatusConflict, "BATCH_BUSY", "batch is being processed"
	case errors.Is(err, domain.ErrStaleEdit):
		return http.StatusConflict, "STALE_EDIT", "record changed since it was loaded; reload and retry"
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict, "INVALID_TRANSITION", "record is not in a state that accepts this action"
	case errors.Is(err, domain.ErrRejectReasonMissing):
		return http.StatusBadRequest, "REJECT_REASON_REQUIRED", "reject requires a reason"
	case errors.Is(err, domain.ErrUnknownField):
		return http.StatusBadRequest, "UNKNOWN_FIELD", "field does not exist for this document type"
	case errors.Is(err, domain.ErrInvalidEdit):
		return http.StatusBadRequest, "INVALID_EDIT", err.Error()
	case errors.Is(err, domain.ErrInvalidDocumentType):
		return http.StatusBadRequest, "INVALID_DOCUMENT_TYPE", "document type must be bl or invoice"
	case errors.Is(err, domain.ErrTypeAlreadyAssigned):
		return http.StatusConflict, "TYPE_ALREADY_ASSIGNED", "document already has a type"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "an internal error occurred"
	}
}

// HandleError maps a domain error and sends the appropriate error response.
func HandleError(c *gin.Context, err error) {
	status, code, msg := MapDomainError(err)
	if status >= 500 {
		requestID, _ := c.Get("request_id")
		zap.L().Error("handler: internal error",
			zap.Any("request_id", requestID),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	RespondError(c, status, code, msg)
}

// parseIDParam reads a UUID path parameter. Returns false if the response was already written.
func parseIDParam(c *gin.Context, name, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_ID", "invalid "+what+" ID")
		return uuid.Nil, false
	}
	return id, true
}

func parsePagination(c *gin.Context) (offset, limit int) {
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return offset, limit
}

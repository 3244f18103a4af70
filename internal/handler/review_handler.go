package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"aforo/internal/domain"
	"aforo/internal/service"
)

// ReviewHandler handles the human review endpoints.
type ReviewHandler struct {
	reviewService service.ReviewService
}

// NewReviewHandler creates a new ReviewHandler.
func NewReviewHandler(reviewService service.ReviewService) *ReviewHandler {
	return &ReviewHandler{reviewService: reviewService}
}

// ListRecords handles GET /api/v1/batches/:id/records
func (h *ReviewHandler) ListRecords(c *gin.Context) {
	batchID, ok := parseIDParam(c, "id", "batch")
	if !ok {
		return
	}

	records, err := h.reviewService.ListRecords(c.Request.Context(), batchID)
	if err != nil {
		HandleError(c, err)
		return
	}

	if state := c.Query("state"); state != "" {
		filtered := make([]domain.ExtractedRecord, 0, len(records))
		for i := range records {
			if string(records[i].State) == state {
				filtered = append(filtered, records[i])
			}
		}
		records = filtered
	}
	RespondOK(c, records)
}

// GetByID handles GET /api/v1/records/:id
func (h *ReviewHandler) GetByID(c *gin.Context) {
	id, ok := parseIDParam(c, "id", "record")
	if !ok {
		return
	}

	view, err := h.reviewService.GetReview(c.Request.Context(), id)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, view)
}

// Edit handles POST /api/v1/records/:id/edits
// The body carries the version the reviewer loaded; a mismatch is a 409.
func (h *ReviewHandler) Edit(c *gin.Context) {
	id, ok := parseIDParam(c, "id", "record")
	if !ok {
		return
	}

	var cmd domain.EditCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "action and expected_version are required")
		return
	}
	if cmd.ExpectedVersion <= 0 {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "expected_version must be positive")
		return
	}

	view, err := h.reviewService.ApplyEdit(c.Request.Context(), id, cmd)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, view)
}

package handler_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"aforo/internal/domain"
	"aforo/internal/handler"
	"aforo/internal/service"
	"aforo/mocks"
)

func newReviewHandler() (*handler.ReviewHandler, *mocks.MockReviewService) {
	mockSvc := new(mocks.MockReviewService)
	return handler.NewReviewHandler(mockSvc), mockSvc
}

func editRequest(t *testing.T, id uuid.UUID, body string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodPost, "/api/v1/records/"+id.String()+"/edits", bytes.NewBufferString(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = gin.Params{{Key: "id", Value: id.String()}}
	return c, w
}

func TestReviewHandler_Edit_Success(t *testing.T) {
	h, mockSvc := newReviewHandler()
	id := uuid.New()
	mockSvc.On("ApplyEdit", mock.Anything, id, domain.EditCommand{
		Action:          domain.EditActionCorrect,
		ExpectedVersion: 2,
		Fields:          map[string]string{"gross_weight": "1250.5"},
	}).Return(&service.ReviewView{Record: &domain.ExtractedRecord{ID: id, Version: 3, State: domain.RecordStateValidated}}, nil)

	c, w := editRequest(t, id, `{"action":"correct","expected_version":2,"fields":{"gross_weight":"1250.5"}}`)
	h.Edit(c)

	assert.Equal(t, http.StatusOK, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestReviewHandler_Edit_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"stale", domain.ErrStaleEdit, http.StatusConflict, "STALE_EDIT"},
		{"not under review", domain.ErrInvalidTransition, http.StatusConflict, "INVALID_TRANSITION"},
		{"reject without reason", domain.ErrRejectReasonMissing, http.StatusBadRequest, "REJECT_REASON_REQUIRED"},
		{"unknown field", domain.ErrUnknownField, http.StatusBadRequest, "UNKNOWN_FIELD"},
		{"missing record", domain.ErrRecordNotFound, http.StatusNotFound, "RECORD_NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, mockSvc := newReviewHandler()
			id := uuid.New()
			mockSvc.On("ApplyEdit", mock.Anything, id, mock.Anything).Return(nil, tt.err)

			c, w := editRequest(t, id, `{"action":"confirm","expected_version":1}`)
			h.Edit(c)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantCode, decode(t, w).Error.Code)
		})
	}
}

func TestReviewHandler_Edit_RequiresVersion(t *testing.T) {
	h, mockSvc := newReviewHandler()

	c, w := editRequest(t, uuid.New(), `{"action":"confirm"}`)
	h.Edit(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockSvc.AssertNotCalled(t, "ApplyEdit", mock.Anything, mock.Anything, mock.Anything)
}

func TestReviewHandler_ListRecords_FiltersByState(t *testing.T) {
	h, mockSvc := newReviewHandler()
	batchID := uuid.New()
	mockSvc.On("ListRecords", mock.Anything, batchID).Return([]domain.ExtractedRecord{
		{ID: uuid.New(), State: domain.RecordStateValidated},
		{ID: uuid.New(), State: domain.RecordStateUnderReview},
	}, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/?state=under_review", http.NoBody)
	c.Params = gin.Params{{Key: "id", Value: batchID.String()}}

	h.ListRecords(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w).Data.([]interface{})
	assert.Len(t, data, 1)
}

func TestReviewHandler_GetByID(t *testing.T) {
	h, mockSvc := newReviewHandler()
	id := uuid.New()
	mockSvc.On("GetReview", mock.Anything, id).Return(&service.ReviewView{
		Record: &domain.ExtractedRecord{ID: id},
		Band:   domain.BandYellow,
	}, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/", http.NoBody)
	c.Params = gin.Params{{Key: "id", Value: id.String()}}

	h.GetByID(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"band":"yellow"`)
}

package handler_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"aforo/internal/domain"
	"aforo/internal/handler"
	"aforo/internal/service"
	"aforo/mocks"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newBatchHandler() (*handler.BatchHandler, *mocks.MockBatchService) {
	mockSvc := new(mocks.MockBatchService)
	return handler.NewBatchHandler(mockSvc), mockSvc
}

func decode(t *testing.T, w *httptest.ResponseRecorder) handler.APIResponse {
	t.Helper()
	var resp handler.APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func multipartBody(t *testing.T, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for name, data := range files {
		part, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return body, mw.FormDataContentType()
}

func TestBatchHandler_Create(t *testing.T) {
	h, mockSvc := newBatchHandler()
	batch := &domain.Batch{ID: uuid.New(), Name: "week 12", Status: domain.BatchStatusOpen}
	mockSvc.On("CreateBatch", mock.Anything, "week 12").Return(batch, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodPost, "/api/v1/batches", bytes.NewBufferString(`{"name":"week 12"}`))
	c.Request.Header.Set("Content-Type", "application/json")

	h.Create(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, decode(t, w).Success)
	mockSvc.AssertExpectations(t)
}

func TestBatchHandler_GetByID_InvalidID(t *testing.T) {
	h, _ := newBatchHandler()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/api/v1/batches/nope", http.NoBody)
	c.Params = gin.Params{{Key: "id", Value: "nope"}}

	h.GetByID(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_ID", decode(t, w).Error.Code)
}

func TestBatchHandler_GetByID_NotFound(t *testing.T) {
	h, mockSvc := newBatchHandler()
	id := uuid.New()
	mockSvc.On("GetBatch", mock.Anything, id).Return(nil, domain.ErrBatchNotFound)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/api/v1/batches/"+id.String(), http.NoBody)
	c.Params = gin.Params{{Key: "id", Value: id.String()}}

	h.GetByID(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "BATCH_NOT_FOUND", decode(t, w).Error.Code)
}

func TestBatchHandler_List_ClampsLimit(t *testing.T) {
	h, mockSvc := newBatchHandler()
	mockSvc.On("ListBatches", mock.Anything, 0, 20).Return([]domain.Batch{}, 0, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/api/v1/batches?limit=500&offset=-3", http.NoBody)

	h.List(c)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, 20, resp.Meta.Limit)
	mockSvc.AssertExpectations(t)
}

func TestBatchHandler_Upload_PartialSuccess(t *testing.T) {
	h, mockSvc := newBatchHandler()
	batchID := uuid.New()
	mockSvc.On("AddDocument", mock.Anything, mock.MatchedBy(func(in *service.AddDocumentInput) bool {
		return in.FileName == "bl.pdf"
	})).Return(&domain.RawDocument{ID: uuid.New(), BatchID: batchID, FileName: "bl.pdf", Type: domain.DocumentTypeBL}, nil)
	mockSvc.On("AddDocument", mock.Anything, mock.MatchedBy(func(in *service.AddDocumentInput) bool {
		return in.FileName == "notes.txt"
	})).Return(nil, domain.ErrUnsupportedFileType)

	body, contentType := multipartBody(t, map[string][]byte{"bl.pdf": []byte("%PDF"), "notes.txt": []byte("hi")})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodPost, "/api/v1/batches/"+batchID.String()+"/documents", body)
	c.Request.Header.Set("Content-Type", contentType)
	c.Params = gin.Params{{Key: "id", Value: batchID.String()}}

	h.Upload(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp struct {
		Data []handler.UploadResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 2)
	byName := map[string]handler.UploadResult{}
	for _, r := range resp.Data {
		byName[r.FileName] = r
	}
	assert.NotNil(t, byName["bl.pdf"].Document)
	require.NotNil(t, byName["notes.txt"].Error)
	assert.Equal(t, "UNSUPPORTED_FILE_TYPE", byName["notes.txt"].Error.Code)
}

func TestBatchHandler_Upload_AllRejected(t *testing.T) {
	h, mockSvc := newBatchHandler()
	batchID := uuid.New()
	mockSvc.On("AddDocument", mock.Anything, mock.Anything).Return(nil, domain.ErrBatchClosed)

	body, contentType := multipartBody(t, map[string][]byte{"bl.pdf": []byte("%PDF")})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodPost, "/", body)
	c.Request.Header.Set("Content-Type", contentType)
	c.Params = gin.Params{{Key: "id", Value: batchID.String()}}

	h.Upload(c)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "BATCH_CLOSED", decode(t, w).Error.Code)
}

func TestBatchHandler_Upload_MissingFiles(t *testing.T) {
	h, _ := newBatchHandler()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{}`))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = gin.Params{{Key: "id", Value: uuid.New().String()}}

	h.Upload(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "MISSING_FILE", decode(t, w).Error.Code)
}

func TestBatchHandler_GetDocument(t *testing.T) {
	h, mockSvc := newBatchHandler()
	docID := uuid.New()
	mockSvc.On("GetDocument", mock.Anything, docID).
		Return(&domain.RawDocument{ID: docID, FileName: "bl.pdf", Type: domain.DocumentTypeBL}, nil)
	mockSvc.On("GetDownloadURL", mock.Anything, docID).Return("https://s3.example.com/bl.pdf?sig=1", nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/api/v1/documents/"+docID.String(), http.NoBody)
	c.Params = gin.Params{{Key: "id", Value: docID.String()}}

	h.GetDocument(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w).Data.(map[string]interface{})
	assert.Equal(t, "https://s3.example.com/bl.pdf?sig=1", data["download_url"])
	assert.Equal(t, "bl.pdf", data["document"].(map[string]interface{})["file_name"])
}

func TestBatchHandler_GetDocument_NotFound(t *testing.T) {
	h, mockSvc := newBatchHandler()
	docID := uuid.New()
	mockSvc.On("GetDocument", mock.Anything, docID).Return(nil, domain.ErrDocumentNotFound)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/api/v1/documents/"+docID.String(), http.NoBody)
	c.Params = gin.Params{{Key: "id", Value: docID.String()}}

	h.GetDocument(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "DOCUMENT_NOT_FOUND", decode(t, w).Error.Code)
	mockSvc.AssertNotCalled(t, "GetDownloadURL", mock.Anything, mock.Anything)
}

func TestBatchHandler_AssignType(t *testing.T) {
	h, mockSvc := newBatchHandler()
	docID := uuid.New()
	mockSvc.On("AssignType", mock.Anything, docID, domain.DocumentTypeInvoice).
		Return(&domain.RawDocument{ID: docID, Type: domain.DocumentTypeInvoice, TypeSource: domain.TypeSourceManual}, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodPut, "/", bytes.NewBufferString(`{"document_type":"invoice"}`))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = gin.Params{{Key: "id", Value: docID.String()}}

	h.AssignType(c)

	assert.Equal(t, http.StatusOK, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestBatchHandler_AssignType_AlreadyTyped(t *testing.T) {
	h, mockSvc := newBatchHandler()
	docID := uuid.New()
	mockSvc.On("AssignType", mock.Anything, docID, domain.DocumentTypeBL).Return(nil, domain.ErrTypeAlreadyAssigned)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodPut, "/", bytes.NewBufferString(`{"document_type":"bl"}`))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = gin.Params{{Key: "id", Value: docID.String()}}

	h.AssignType(c)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "TYPE_ALREADY_ASSIGNED", decode(t, w).Error.Code)
}

func TestBatchHandler_Process(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"accepted", nil, http.StatusAccepted},
		{"busy", domain.ErrBatchBusy, http.StatusConflict},
		{"closed", domain.ErrBatchClosed, http.StatusConflict},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, mockSvc := newBatchHandler()
			id := uuid.New()
			mockSvc.On("Start", mock.Anything, id).Return(tt.err)

			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request, _ = http.NewRequest(http.MethodPost, "/", http.NoBody)
			c.Params = gin.Params{{Key: "id", Value: id.String()}}

			h.Process(c)

			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestBatchHandler_Stats(t *testing.T) {
	h, mockSvc := newBatchHandler()
	id := uuid.New()
	mockSvc.On("Stats", mock.Anything, id).Return(&domain.BatchStats{BatchID: id, Documents: 3, ReadyToConsolidate: true}, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/", http.NoBody)
	c.Params = gin.Params{{Key: "id", Value: id.String()}}

	h.Stats(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ready_to_consolidate":true`)
}

package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"aforo/internal/domain"
	"aforo/internal/service"
)

// MockBatchService is a mock implementation of service.BatchService.
type MockBatchService struct {
	mock.Mock
}

func (m *MockBatchService) CreateBatch(ctx context.Context, name string) (*domain.Batch, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Batch), args.Error(1)
}

func (m *MockBatchService) GetBatch(ctx context.Context, id uuid.UUID) (*domain.Batch, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Batch), args.Error(1)
}

func (m *MockBatchService) ListBatches(ctx context.Context, offset, limit int) ([]domain.Batch, int, error) {
	args := m.Called(ctx, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.Batch), args.Int(1), args.Error(2)
}

func (m *MockBatchService) AddDocument(ctx context.Context, input *service.AddDocumentInput) (*domain.RawDocument, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RawDocument), args.Error(1)
}

func (m *MockBatchService) ListDocuments(ctx context.Context, batchID uuid.UUID) ([]domain.RawDocument, error) {
	args := m.Called(ctx, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RawDocument), args.Error(1)
}

func (m *MockBatchService) AssignType(ctx context.Context, documentID uuid.UUID, docType domain.DocumentType) (*domain.RawDocument, error) {
	args := m.Called(ctx, documentID, docType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RawDocument), args.Error(1)
}

func (m *MockBatchService) Start(ctx context.Context, batchID uuid.UUID) error {
	args := m.Called(ctx, batchID)
	return args.Error(0)
}

func (m *MockBatchService) Process(ctx context.Context, batchID uuid.UUID) (*service.ProcessSummary, error) {
	args := m.Called(ctx, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ProcessSummary), args.Error(1)
}

func (m *MockBatchService) Cancel(ctx context.Context, batchID uuid.UUID) error {
	args := m.Called(ctx, batchID)
	return args.Error(0)
}

func (m *MockBatchService) Stats(ctx context.Context, batchID uuid.UUID) (*domain.BatchStats, error) {
	args := m.Called(ctx, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BatchStats), args.Error(1)
}

func (m *MockBatchService) GetDocument(ctx context.Context, documentID uuid.UUID) (*domain.RawDocument, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RawDocument), args.Error(1)
}

func (m *MockBatchService) GetDownloadURL(ctx context.Context, documentID uuid.UUID) (string, error) {
	args := m.Called(ctx, documentID)
	return args.String(0), args.Error(1)
}

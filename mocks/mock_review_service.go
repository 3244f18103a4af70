package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"aforo/internal/domain"
	"aforo/internal/service"
)

// MockReviewService is a mock implementation of service.ReviewService.
type MockReviewService struct {
	mock.Mock
}

func (m *MockReviewService) ListRecords(ctx context.Context, batchID uuid.UUID) ([]domain.ExtractedRecord, error) {
	args := m.Called(ctx, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ExtractedRecord), args.Error(1)
}

func (m *MockReviewService) GetReview(ctx context.Context, recordID uuid.UUID) (*service.ReviewView, error) {
	args := m.Called(ctx, recordID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ReviewView), args.Error(1)
}

func (m *MockReviewService) ApplyEdit(ctx context.Context, recordID uuid.UUID, cmd domain.EditCommand) (*service.ReviewView, error) {
	args := m.Called(ctx, recordID, cmd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ReviewView), args.Error(1)
}

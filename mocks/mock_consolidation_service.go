package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"aforo/internal/domain"
	"aforo/internal/report"
)

// MockConsolidationService is a mock implementation of service.ConsolidationService.
type MockConsolidationService struct {
	mock.Mock
}

func (m *MockConsolidationService) Consolidate(ctx context.Context, batchID uuid.UUID, costs map[string]domain.ShipmentCosts) (*report.Report, error) {
	args := m.Called(ctx, batchID, costs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*report.Report), args.Error(1)
}

func (m *MockConsolidationService) Report(ctx context.Context, batchID uuid.UUID) (*report.Report, error) {
	args := m.Called(ctx, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*report.Report), args.Error(1)
}

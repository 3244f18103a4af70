package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"aforo/internal/port"
)

// MockEmailSender is a mock implementation of port.EmailSender.
type MockEmailSender struct {
	mock.Mock
}

func (m *MockEmailSender) SendReviewRequest(ctx context.Context, toEmail string, summary port.ReviewSummary) error {
	args := m.Called(ctx, toEmail, summary)
	return args.Error(0)
}

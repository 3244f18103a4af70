package noop

import (
	"context"

	"go.uber.org/zap"

	"aforo/internal/port"
)

type noopSender struct{}

// NewNoopSender creates a no-op EmailSender that only logs the notification.
func NewNoopSender() port.EmailSender {
	return &noopSender{}
}

func (s *noopSender) SendReviewRequest(_ context.Context, toEmail string, summary port.ReviewSummary) error {
	zap.L().Info("noop email: review request",
		zap.String("to", toEmail),
		zap.String("batch_id", summary.BatchID),
		zap.Int("needs_review", summary.NeedsReview),
		zap.Int("unknown_type", summary.UnknownType),
		zap.String("review_url", summary.ReviewURL),
	)
	return nil
}

package port

import "context"

// ReviewSummary is what a reviewer notification reports about a batch.
type ReviewSummary struct {
	BatchID     string
	BatchName   string
	NeedsReview int
	UnknownType int
	ReviewURL   string
}

// EmailSender defines the contract for sending reviewer notifications.
type EmailSender interface {
	SendReviewRequest(ctx context.Context, toEmail string, summary ReviewSummary) error
}

package ses

import (
	"context"
	"fmt"
	"html"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"aforo/internal/port"
)

type sesSender struct {
	client      *sesv2.Client
	fromAddress string
	fromName    string
}

// NewSESSender creates a new SES-backed EmailSender.
func NewSESSender(region, fromAddress, fromName string) (port.EmailSender, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config for SES: %w", err)
	}
	client := sesv2.NewFromConfig(cfg)
	return &sesSender{
		client:      client,
		fromAddress: fromAddress,
		fromName:    fromName,
	}, nil
}

func (s *sesSender) SendReviewRequest(ctx context.Context, toEmail string, summary port.ReviewSummary) error {
	subject := fmt.Sprintf("Aforo: %d record(s) waiting for review in %s", summary.NeedsReview+summary.UnknownType, summary.BatchName)
	htmlBody := buildReviewHTML(summary)
	textBody := buildReviewText(summary)

	from := fmt.Sprintf("%s <%s>", s.fromName, s.fromAddress)

	_, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: &from,
		Destination: &types.Destination{
			ToAddresses: []string{toEmail},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: &subject},
				Body: &types.Body{
					Html: &types.Content{Data: &htmlBody},
					Text: &types.Content{Data: &textBody},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("SES SendEmail: %w", err)
	}
	return nil
}

func buildReviewText(s port.ReviewSummary) string {
	return fmt.Sprintf("Batch %s (%s) finished extraction.\n\nRecords needing review: %d\nDocuments without a type: %d\n\nOpen the review queue:\n%s\n\nAforo",
		s.BatchName, s.BatchID, s.NeedsReview, s.UnknownType, s.ReviewURL)
}

func buildReviewHTML(s port.ReviewSummary) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
  <h2 style="color: #333;">Batch ready for review</h2>
  <p>Batch <strong>%s</strong> finished extraction.</p>
  <ul>
    <li>Records needing review: %d</li>
    <li>Documents without a type: %d</li>
  </ul>
  <p style="text-align: center; margin: 30px 0;">
    <a href="%s" style="background-color: #4F81BD; color: white; padding: 12px 24px; text-decoration: none; border-radius: 6px; display: inline-block;">Open review queue</a>
  </p>
  <hr style="border: none; border-top: 1px solid #eee; margin: 20px 0;">
  <p style="color: #999; font-size: 12px;">Aforo - Import document consolidation</p>
</body>
</html>`, html.EscapeString(s.BatchName), s.NeedsReview, s.UnknownType, html.EscapeString(s.ReviewURL))
}

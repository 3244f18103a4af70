package ses

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"aforo/internal/port"
)

func TestBuildReviewBodies(t *testing.T) {
	s := port.ReviewSummary{
		BatchID:     "b-1",
		BatchName:   "Import <week 3>",
		NeedsReview: 4,
		UnknownType: 1,
		ReviewURL:   "http://localhost:3000/batches/b-1/review",
	}

	text := buildReviewText(s)
	assert.Contains(t, text, "Records needing review: 4")
	assert.Contains(t, text, "Documents without a type: 1")
	assert.Contains(t, text, s.ReviewURL)

	body := buildReviewHTML(s)
	assert.Contains(t, body, "Import &lt;week 3&gt;")
	assert.NotContains(t, body, "<week 3>")
	assert.Contains(t, body, s.ReviewURL)
}

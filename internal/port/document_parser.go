package port

import (
	"context"
	"encoding/json"
)

// ParseInput carries the data needed for document parsing.
type ParseInput struct {
	FileBytes    []byte
	ContentType  string
	DocumentType string
	// TextLayer, when non-empty, is sent instead of the file bytes.
	TextLayer string
}

// TextMode reports whether the input should be sent as plain text.
func (in ParseInput) TextMode() bool {
	return in.TextLayer != ""
}

// ParseOutput contains the raw model answer. It is not trusted until decoded
// by parser.DecodeResponse.
type ParseOutput struct {
	RawResponse json.RawMessage
	ModelUsed   string
	PromptUsed  string
	Truncated   bool
}

// DocumentParser abstracts LLM-based document parsing.
type DocumentParser interface {
	Parse(ctx context.Context, input ParseInput) (*ParseOutput, error)
}

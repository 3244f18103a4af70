package claude

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"aforo/internal/config"
	"aforo/internal/parser"
	"aforo/internal/port"
)

const (
	providerName = "claude"
	maxTokens    = 16384
)

// Parser implements port.DocumentParser using the Anthropic Messages API.
type Parser struct {
	client sdk.Client
	model  string
}

// NewParser creates a Claude-based document parser from a provider config.
func NewParser(cfg *config.ParserProviderConfig) *Parser {
	return newParser(cfg)
}

// NewParserWithEndpoint creates a parser pointing at a custom API base URL (for testing).
func NewParserWithEndpoint(cfg *config.ParserProviderConfig, baseURL string) *Parser {
	return newParser(cfg, option.WithBaseURL(baseURL))
}

func newParser(cfg *config.ParserProviderConfig, extra ...option.RequestOption) *Parser {
	model := cfg.DefaultModel
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithRequestTimeout(timeout),
		// retries are owned by the resilience executor
		option.WithMaxRetries(0),
	}
	opts = append(opts, extra...)
	return &Parser{
		client: sdk.NewClient(opts...),
		model:  model,
	}
}

func (p *Parser) Parse(ctx context.Context, input port.ParseInput) (*port.ParseOutput, error) {
	prompt := parser.PromptFor(input)

	blocks, err := buildContentBlocks(input, prompt)
	if err != nil {
		return nil, fmt.Errorf("building content blocks: %w", err)
	}

	msg, err := p.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(p.model),
		MaxTokens: maxTokens,
		Messages:  []sdk.MessageParam{sdk.NewUserMessage(blocks...)},
	})
	if err != nil {
		return nil, classifyError(err)
	}

	var text strings.Builder
	for _, b := range msg.Content {
		if b.Type == "text" {
			text.WriteString(b.Text)
		}
	}
	if text.Len() == 0 {
		return nil, parser.NewTransportError(providerName, 0, fmt.Errorf("empty response from API"))
	}

	truncated := msg.StopReason == sdk.StopReasonMaxTokens
	if truncated {
		zap.L().Warn("claude.Parser: output truncated at max_tokens", zap.String("model", p.model))
	}

	return &port.ParseOutput{
		RawResponse: []byte(text.String()),
		ModelUsed:   p.model,
		PromptUsed:  prompt,
		Truncated:   truncated,
	}, nil
}

func buildContentBlocks(input port.ParseInput, prompt string) ([]sdk.ContentBlockParamUnion, error) {
	if input.TextMode() {
		return []sdk.ContentBlockParamUnion{sdk.NewTextBlock(prompt)}, nil
	}

	encoded := base64.StdEncoding.EncodeToString(input.FileBytes)
	var blocks []sdk.ContentBlockParamUnion

	switch input.ContentType {
	case "application/pdf":
		blocks = append(blocks, sdk.NewDocumentBlock(sdk.Base64PDFSourceParam{Data: encoded}))
	case "image/jpeg", "image/png":
		blocks = append(blocks, sdk.NewImageBlockBase64(input.ContentType, encoded))
	default:
		return nil, fmt.Errorf("unsupported content type for parsing: %s", input.ContentType)
	}

	blocks = append(blocks, sdk.NewTextBlock(prompt))
	return blocks, nil
}

func classifyError(err error) error {
	var apiErr *sdk.Error
	if !errors.As(err, &apiErr) {
		return parser.NewTransportError(providerName, 0, err)
	}
	if apiErr.StatusCode == 429 {
		retryAfter := 0
		if apiErr.Response != nil {
			retryAfter = parser.ParseRetryAfterHeader(apiErr.Response.Header.Get("Retry-After"))
		}
		return parser.NewRateLimitError(providerName, err, retryAfter)
	}
	return parser.NewTransportError(providerName, apiErr.StatusCode, err)
}

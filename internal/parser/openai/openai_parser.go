package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"aforo/internal/config"
	"aforo/internal/parser"
	"aforo/internal/port"
)

const (
	providerName = "openai"
	apiURL       = "https://api.openai.com/v1/chat/completions"
)

// Parser implements port.DocumentParser using the OpenAI Chat Completions API.
type Parser struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
}

// NewParser creates an OpenAI-based document parser from a provider config.
func NewParser(cfg *config.ParserProviderConfig) *Parser {
	return newParser(cfg, apiURL)
}

// NewParserWithEndpoint creates a parser pointing at a custom API endpoint (for testing).
func NewParserWithEndpoint(cfg *config.ParserProviderConfig, endpoint string) *Parser {
	return newParser(cfg, endpoint)
}

func newParser(cfg *config.ParserProviderConfig, endpoint string) *Parser {
	model := cfg.DefaultModel
	if model == "" {
		model = "gpt-4o"
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &Parser{
		apiKey:   cfg.APIKey,
		model:    model,
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

func (p *Parser) Parse(ctx context.Context, input port.ParseInput) (*port.ParseOutput, error) {
	prompt := parser.PromptFor(input)

	contentBlocks, err := buildContentBlocks(input, prompt)
	if err != nil {
		return nil, fmt.Errorf("building content blocks: %w", err)
	}

	reqBody := map[string]interface{}{
		"model":                 p.model,
		"max_completion_tokens": 16384,
		"messages": []map[string]interface{}{
			{
				"role":    "user",
				"content": contentBlocks,
			},
		},
		"response_format": map[string]interface{}{
			"type": "json_object",
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, parser.NewTransportError(providerName, 0, fmt.Errorf("calling openai API: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, parser.NewTransportError(providerName, 0, fmt.Errorf("reading response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		baseErr := fmt.Errorf("%s", truncate(string(respBody), 500))
		if resp.StatusCode == http.StatusTooManyRequests {
			retryAfter := parser.ParseRetryAfterHeader(resp.Header.Get("Retry-After"))
			return nil, parser.NewRateLimitError(providerName, baseErr, retryAfter)
		}
		return nil, parser.NewTransportError(providerName, resp.StatusCode, baseErr)
	}

	return parseResponse(respBody, p.model, prompt)
}

func buildContentBlocks(input port.ParseInput, prompt string) ([]map[string]interface{}, error) {
	textBlock := map[string]interface{}{
		"type": "text",
		"text": prompt,
	}
	if input.TextMode() {
		return []map[string]interface{}{textBlock}, nil
	}

	encoded := base64.StdEncoding.EncodeToString(input.FileBytes)
	dataURI := fmt.Sprintf("data:%s;base64,%s", input.ContentType, encoded)
	var blocks []map[string]interface{}

	switch input.ContentType {
	case "application/pdf":
		blocks = append(blocks, map[string]interface{}{
			"type": "file",
			"file": map[string]interface{}{
				"filename":  "document.pdf",
				"file_data": dataURI,
			},
		})
	case "image/jpeg", "image/png":
		blocks = append(blocks, map[string]interface{}{
			"type": "image_url",
			"image_url": map[string]interface{}{
				"url": dataURI,
			},
		})
	default:
		return nil, fmt.Errorf("unsupported content type for parsing: %s", input.ContentType)
	}

	return append(blocks, textBlock), nil
}

// apiResponse models the OpenAI Chat Completions API response.
type apiResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

func parseResponse(body []byte, model, prompt string) (*port.ParseOutput, error) {
	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, parser.NewTransportError(providerName, 0, fmt.Errorf("unmarshaling response envelope: %w", err))
	}

	if len(resp.Choices) == 0 {
		return nil, parser.NewTransportError(providerName, 0, fmt.Errorf("empty response from API: no choices"))
	}

	return &port.ParseOutput{
		RawResponse: []byte(resp.Choices[0].Message.Content),
		ModelUsed:   model,
		PromptUsed:  prompt,
		Truncated:   resp.Choices[0].FinishReason == "length",
	}, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

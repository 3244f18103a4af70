package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"aforo/internal/config"
	"aforo/internal/parser"
	"aforo/internal/port"
)

const (
	providerName = "gemini"
	apiBaseURL   = "https://generativelanguage.googleapis.com/v1beta/models"
)

// Parser implements port.DocumentParser using Google's Gemini API.
type Parser struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
}

// NewParser creates a Gemini-based document parser.
func NewParser(cfg *config.ParserProviderConfig) *Parser {
	return newParser(cfg, "")
}

// NewParserWithEndpoint creates a parser pointing at a custom API endpoint (for testing).
func NewParserWithEndpoint(cfg *config.ParserProviderConfig, endpoint string) *Parser {
	return newParser(cfg, endpoint)
}

func newParser(cfg *config.ParserProviderConfig, endpoint string) *Parser {
	model := cfg.DefaultModel
	if model == "" {
		model = "gemini-2.0-flash"
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	if endpoint == "" {
		endpoint = fmt.Sprintf("%s/%s:generateContent", apiBaseURL, model)
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

	parts, err := buildParts(input, prompt)
	if err != nil {
		return nil, err
	}

	reqBody := map[string]interface{}{
		"contents": []map[string]interface{}{
			{
				"role":  "user",
				"parts": parts,
			},
		},
		"generationConfig": map[string]interface{}{
			"responseMimeType": "application/json",
			"maxOutputTokens":  16384,
			"temperature":      0,
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
	req.Header.Set("x-goog-api-key", p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, parser.NewTransportError(providerName, 0, fmt.Errorf("calling gemini API: %w", err))
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

func buildParts(input port.ParseInput, prompt string) ([]map[string]interface{}, error) {
	if input.TextMode() {
		return []map[string]interface{}{{"text": prompt}}, nil
	}

	switch input.ContentType {
	case "application/pdf", "image/jpeg", "image/png":
	default:
		return nil, fmt.Errorf("unsupported content type for parsing: %s", input.ContentType)
	}

	return []map[string]interface{}{
		{
			"inline_data": map[string]interface{}{
				"mime_type": input.ContentType,
				"data":      base64.StdEncoding.EncodeToString(input.FileBytes),
			},
		},
		{"text": prompt},
	}, nil
}

// geminiResponse models the Gemini API response.
type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
}

func parseResponse(body []byte, model, prompt string) (*port.ParseOutput, error) {
	var resp geminiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, parser.NewTransportError(providerName, 0, fmt.Errorf("unmarshaling response envelope: %w", err))
	}

	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, parser.NewTransportError(providerName, 0, fmt.Errorf("empty response from API"))
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}

	return &port.ParseOutput{
		RawResponse: []byte(text.String()),
		ModelUsed:   model,
		PromptUsed:  prompt,
		Truncated:   resp.Candidates[0].FinishReason == "MAX_TOKENS",
	}, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

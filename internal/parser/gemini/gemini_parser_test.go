package gemini_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aforo/internal/config"
	"aforo/internal/parser"
	gemini "aforo/internal/parser/gemini"
	"aforo/internal/port"
)

func newGeminiTestParser(serverURL string) *gemini.Parser {
	cfg := &config.ParserProviderConfig{
		Provider:     "gemini",
		APIKey:       "test-gemini-key",
		DefaultModel: "gemini-2.0-flash",
		TimeoutSecs:  30,
	}
	return gemini.NewParserWithEndpoint(cfg, serverURL)
}

func geminiSuccessResponse(text, finish string) map[string]interface{} {
	return map[string]interface{}{
		"candidates": []map[string]interface{}{
			{
				"content": map[string]interface{}{
					"role":  "model",
					"parts": []map[string]interface{}{{"text": text}},
				},
				"finishReason": finish,
			},
		},
	}
}

func TestGeminiParser_Parse_PDF_Success(t *testing.T) {
	llmJSON := `{"data":{"invoice_number":"INV-001"},"confidence_scores":{"invoice_number":0.95}}`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-gemini-key", r.Header.Get("x-goog-api-key"))

		var reqBody map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&reqBody))

		parts := reqBody["contents"].([]interface{})[0].(map[string]interface{})["parts"].([]interface{})
		require.Len(t, parts, 2)
		inlineData := parts[0].(map[string]interface{})["inline_data"].(map[string]interface{})
		assert.Equal(t, "application/pdf", inlineData["mime_type"])
		assert.NotEmpty(t, inlineData["data"])

		genConfig := reqBody["generationConfig"].(map[string]interface{})
		assert.Equal(t, "application/json", genConfig["responseMimeType"])

		_ = json.NewEncoder(w).Encode(geminiSuccessResponse(llmJSON, "STOP"))
	}))
	defer server.Close()

	p := newGeminiTestParser(server.URL)
	out, err := p.Parse(context.Background(), port.ParseInput{
		FileBytes: []byte("%PDF"), ContentType: "application/pdf", DocumentType: "invoice",
	})

	require.NoError(t, err)
	assert.JSONEq(t, llmJSON, string(out.RawResponse))
	assert.Equal(t, "gemini-2.0-flash", out.ModelUsed)
	assert.False(t, out.Truncated)
}

func TestGeminiParser_Parse_TextModeSendsOnlyText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var reqBody map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&reqBody))

		parts := reqBody["contents"].([]interface{})[0].(map[string]interface{})["parts"].([]interface{})
		require.Len(t, parts, 1)
		assert.Contains(t, parts[0].(map[string]interface{})["text"], "BILL OF LADING MSCU")

		_ = json.NewEncoder(w).Encode(geminiSuccessResponse(`{"data":{},"confidence_scores":{}}`, "STOP"))
	}))
	defer server.Close()

	p := newGeminiTestParser(server.URL)
	_, err := p.Parse(context.Background(), port.ParseInput{
		ContentType: "application/pdf", DocumentType: "bl", TextLayer: "BILL OF LADING MSCU",
	})

	require.NoError(t, err)
}

func TestGeminiParser_Parse_MaxTokens(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(geminiSuccessResponse(`{"data":`, "MAX_TOKENS"))
	}))
	defer server.Close()

	p := newGeminiTestParser(server.URL)
	out, err := p.Parse(context.Background(), port.ParseInput{
		FileBytes: []byte("x"), ContentType: "image/jpeg", DocumentType: "bl",
	})

	require.NoError(t, err)
	assert.True(t, out.Truncated)
}

func TestGeminiParser_Parse_EmptyCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer server.Close()

	p := newGeminiTestParser(server.URL)
	_, err := p.Parse(context.Background(), port.ParseInput{
		FileBytes: []byte("x"), ContentType: "application/pdf", DocumentType: "bl",
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty response")
}

func TestGeminiParser_Parse_StatusErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		retryable bool
	}{
		{"server error", http.StatusInternalServerError, true},
		{"forbidden", http.StatusForbidden, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":{"message":"nope"}}`))
			}))
			defer server.Close()

			p := newGeminiTestParser(server.URL)
			_, err := p.Parse(context.Background(), port.ParseInput{
				FileBytes: []byte("x"), ContentType: "application/pdf", DocumentType: "bl",
			})

			var te *parser.TransportError
			require.True(t, errors.As(err, &te))
			assert.Equal(t, tt.status, te.StatusCode)
			assert.Equal(t, tt.retryable, parser.IsRetryable(err))
		})
	}
}

func TestGeminiParser_Parse_RateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "5")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	p := newGeminiTestParser(server.URL)
	_, err := p.Parse(context.Background(), port.ParseInput{
		FileBytes: []byte("x"), ContentType: "application/pdf", DocumentType: "bl",
	})

	var rlErr *parser.RateLimitError
	require.True(t, errors.As(err, &rlErr))
	assert.Equal(t, "gemini", rlErr.Provider)
}

func TestGeminiParser_Parse_UnsupportedContentType(t *testing.T) {
	p := newGeminiTestParser("http://127.0.0.1:1")
	_, err := p.Parse(context.Background(), port.ParseInput{
		FileBytes: []byte("x"), ContentType: "application/zip", DocumentType: "bl",
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported content type")
}

func TestGeminiParser_Parse_ConnectionRefused(t *testing.T) {
	p := newGeminiTestParser("http://127.0.0.1:1")
	_, err := p.Parse(context.Background(), port.ParseInput{
		FileBytes: []byte("x"), ContentType: "application/pdf", DocumentType: "bl",
	})

	require.Error(t, err)
	assert.True(t, parser.IsRetryable(err))
}

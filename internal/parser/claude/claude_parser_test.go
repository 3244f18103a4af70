package claude_test

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
	claude "aforo/internal/parser/claude"
	"aforo/internal/port"
)

const llmJSON = `{"data":{"bl_number":"MSCU1234567"},"confidence_scores":{"bl_number":0.95}}`

func newTestParser(serverURL string) *claude.Parser {
	cfg := &config.ParserProviderConfig{
		Provider:     "claude",
		APIKey:       "test-api-key",
		DefaultModel: "claude-sonnet-4-20250514",
		TimeoutSecs:  30,
	}
	return claude.NewParserWithEndpoint(cfg, serverURL)
}

func messageResponse(text, stopReason string) map[string]interface{} {
	return map[string]interface{}{
		"id":   "msg_test_001",
		"type": "message",
		"role": "assistant",
		"content": []map[string]interface{}{
			{"type": "text", "text": text},
		},
		"model":       "claude-sonnet-4-20250514",
		"stop_reason": stopReason,
		"usage": map[string]interface{}{
			"input_tokens":  100,
			"output_tokens": 50,
		},
	}
}

func TestClaudeParser_Parse_PDF_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.URL.Path, "/messages")
		assert.Equal(t, "test-api-key", r.Header.Get("x-api-key"))

		var reqBody map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&reqBody))
		assert.Equal(t, "claude-sonnet-4-20250514", reqBody["model"])
		assert.Equal(t, float64(16384), reqBody["max_tokens"])

		messages := reqBody["messages"].([]interface{})
		require.Len(t, messages, 1)
		content := messages[0].(map[string]interface{})["content"].([]interface{})
		require.Len(t, content, 2)

		docBlock := content[0].(map[string]interface{})
		assert.Equal(t, "document", docBlock["type"])
		source := docBlock["source"].(map[string]interface{})
		assert.Equal(t, "base64", source["type"])
		assert.Equal(t, "application/pdf", source["media_type"])
		assert.NotEmpty(t, source["data"])

		textBlock := content[1].(map[string]interface{})
		assert.Equal(t, "text", textBlock["type"])
		assert.Contains(t, textBlock["text"], "Bill of Lading")

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(messageResponse(llmJSON, "end_turn"))
	}))
	defer server.Close()

	p := newTestParser(server.URL)
	out, err := p.Parse(context.Background(), port.ParseInput{
		FileBytes:    []byte("%PDF-1.4 fake"),
		ContentType:  "application/pdf",
		DocumentType: "bl",
	})

	require.NoError(t, err)
	assert.JSONEq(t, llmJSON, string(out.RawResponse))
	assert.Equal(t, "claude-sonnet-4-20250514", out.ModelUsed)
	assert.False(t, out.Truncated)
	assert.NotEmpty(t, out.PromptUsed)
}

func TestClaudeParser_Parse_TextMode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var reqBody map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&reqBody))

		content := reqBody["messages"].([]interface{})[0].(map[string]interface{})["content"].([]interface{})
		require.Len(t, content, 1)
		block := content[0].(map[string]interface{})
		assert.Equal(t, "text", block["type"])
		assert.Contains(t, block["text"], "INVOICE 2024-17")

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(messageResponse(llmJSON, "end_turn"))
	}))
	defer server.Close()

	p := newTestParser(server.URL)
	_, err := p.Parse(context.Background(), port.ParseInput{
		FileBytes:    []byte("%PDF"),
		ContentType:  "application/pdf",
		DocumentType: "invoice",
		TextLayer:    "INVOICE 2024-17",
	})

	require.NoError(t, err)
}

func TestClaudeParser_Parse_Image(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var reqBody map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&reqBody))

		content := reqBody["messages"].([]interface{})[0].(map[string]interface{})["content"].([]interface{})
		imgBlock := content[0].(map[string]interface{})
		assert.Equal(t, "image", imgBlock["type"])
		assert.Equal(t, "image/png", imgBlock["source"].(map[string]interface{})["media_type"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(messageResponse(llmJSON, "end_turn"))
	}))
	defer server.Close()

	p := newTestParser(server.URL)
	_, err := p.Parse(context.Background(), port.ParseInput{
		FileBytes:    []byte{0x89, 0x50, 0x4e, 0x47},
		ContentType:  "image/png",
		DocumentType: "bl",
	})

	require.NoError(t, err)
}

func TestClaudeParser_Parse_Truncated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(messageResponse(`{"data":{"bl_number":"MS`, "max_tokens"))
	}))
	defer server.Close()

	p := newTestParser(server.URL)
	out, err := p.Parse(context.Background(), port.ParseInput{
		FileBytes: []byte("%PDF"), ContentType: "application/pdf", DocumentType: "bl",
	})

	require.NoError(t, err)
	assert.True(t, out.Truncated)
}

func TestClaudeParser_Parse_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "17")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`))
	}))
	defer server.Close()

	p := newTestParser(server.URL)
	_, err := p.Parse(context.Background(), port.ParseInput{
		FileBytes: []byte("%PDF"), ContentType: "application/pdf", DocumentType: "bl",
	})

	var rlErr *parser.RateLimitError
	require.True(t, errors.As(err, &rlErr))
	assert.Equal(t, "claude", rlErr.Provider)
	assert.Equal(t, 17.0, rlErr.RetryAfter.Seconds())
}

func TestClaudeParser_Parse_ClientErrorIsPermanent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`))
	}))
	defer server.Close()

	p := newTestParser(server.URL)
	_, err := p.Parse(context.Background(), port.ParseInput{
		FileBytes: []byte("%PDF"), ContentType: "application/pdf", DocumentType: "bl",
	})

	var te *parser.TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, http.StatusBadRequest, te.StatusCode)
	assert.False(t, parser.IsRetryable(err))
}

func TestClaudeParser_Parse_UnsupportedContentType(t *testing.T) {
	p := newTestParser("http://127.0.0.1:1")
	_, err := p.Parse(context.Background(), port.ParseInput{
		FileBytes: []byte("x"), ContentType: "text/csv", DocumentType: "bl",
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported content type")
}

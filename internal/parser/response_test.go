package parser_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aforo/internal/parser"
	"aforo/internal/port"
)

func TestDecodeResponse_Valid(t *testing.T) {
	raw := `{"data":{"bl_number":"MSCU1234567","gross_weight":"1.250,50","package_count":12,"freight_cost":null},
	"confidence_scores":{"bl_number":0.98,"gross_weight":0.8,"package_count":0.9}}`

	resp, err := parser.DecodeResponse([]byte(raw))

	require.NoError(t, err)
	assert.Equal(t, "MSCU1234567", resp.Scalar("bl_number"))
	assert.Equal(t, "1.250,50", resp.Scalar("gross_weight"))
	assert.Equal(t, "12", resp.Scalar("package_count"))
	assert.Equal(t, "", resp.Scalar("freight_cost"))
	assert.Equal(t, "", resp.Scalar("missing"))
	assert.Equal(t, 0.98, resp.Score("bl_number"))
	assert.Equal(t, 0.0, resp.Score("freight_cost"))
}

func TestDecodeResponse_StripsCodeFences(t *testing.T) {
	raw := "```json\n{\"data\":{\"bl_number\":\"X1\"},\"confidence_scores\":{\"bl_number\":1}}\n```"

	resp, err := parser.DecodeResponse([]byte(raw))

	require.NoError(t, err)
	assert.Equal(t, "X1", resp.Scalar("bl_number"))
	assert.Equal(t, 1.0, resp.Score("bl_number"))
}

func TestDecodeResponse_LineItems(t *testing.T) {
	raw := `{"data":{"invoice_number":"F-1","line_items":[
		{"description":"Brake pads","quantity":"10","unit_price":"5.50"},
		{"description":"Oil filter","quantity":"4","unit_price":"2"}]},
	"confidence_scores":{"invoice_number":0.9,"line_items":[
		{"description":0.95,"quantity":0.9,"unit_price":0.7},
		{"description":0.6}]}}`

	resp, err := parser.DecodeResponse([]byte(raw))

	require.NoError(t, err)
	require.Equal(t, 2, resp.LineItemCount())
	assert.Equal(t, "Oil filter", resp.LineScalar(1, "description"))
	assert.Equal(t, "5.50", resp.LineScalar(0, "unit_price"))
	assert.Equal(t, 0.7, resp.LineScore(0, "unit_price"))
	assert.Equal(t, 0.0, resp.LineScore(1, "quantity"))
	assert.Equal(t, "", resp.LineScalar(5, "description"))
	assert.Equal(t, 0.0, resp.LineScore(5, "description"))
}

func TestDecodeResponse_FailsClosed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"prose only", "I could not read the document."},
		{"truncated json", `{"data":{"bl_number":"X"`},
		{"missing confidence block", `{"data":{"bl_number":"X"}}`},
		{"data not an object", `{"data":[1,2],"confidence_scores":{}}`},
		{"nested object value", `{"data":{"exporter":{"name":"ACME"}},"confidence_scores":{}}`},
		{"boolean value", `{"data":{"bl_number":true},"confidence_scores":{}}`},
		{"confidence above one", `{"data":{"bl_number":"X"},"confidence_scores":{"bl_number":1.5}}`},
		{"negative confidence", `{"data":{"bl_number":"X"},"confidence_scores":{"bl_number":-0.1}}`},
		{"confidence as text", `{"data":{"bl_number":"X"},"confidence_scores":{"bl_number":"high"}}`},
		{"line items not array", `{"data":{"line_items":{"a":1}},"confidence_scores":{}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := parser.DecodeResponse([]byte(tt.raw))
			assert.Nil(t, resp)
			assert.ErrorIs(t, err, parser.ErrMalformedResponse)
		})
	}
}

func TestBuildExtractionPrompt(t *testing.T) {
	bl := parser.BuildExtractionPrompt("bl", false)
	assert.Contains(t, bl, `"bl_number"`)
	assert.Contains(t, bl, `"gross_weight"`)
	assert.NotContains(t, bl, `"line_items"`)
	assert.Contains(t, bl, "confidence_scores")

	inv := parser.BuildExtractionPrompt("invoice", false)
	assert.Contains(t, inv, `"bl_reference"`)
	assert.Contains(t, inv, `"line_items"`)
	assert.NotContains(t, inv, "text layer follows")
}

func TestPromptFor_TextMode(t *testing.T) {
	in := port.ParseInput{DocumentType: "invoice", TextLayer: "COMMERCIAL INVOICE No. 77"}

	prompt := parser.PromptFor(in)

	assert.True(t, strings.HasSuffix(prompt, "COMMERCIAL INVOICE No. 77\nDOCUMENT>>>"))
	assert.Contains(t, prompt, "text layer follows")
}

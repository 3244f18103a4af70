package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrMalformedResponse is returned when the model answer does not satisfy the response contract.
var ErrMalformedResponse = errors.New("malformed model response")

const responseSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["data", "confidence_scores"],
  "properties": {
    "data": {
      "type": "object",
      "properties": {
        "line_items": {
          "type": "array",
          "items": {
            "type": "object",
            "additionalProperties": {"$ref": "#/$defs/scalar"}
          }
        }
      },
      "additionalProperties": {"$ref": "#/$defs/scalar"}
    },
    "confidence_scores": {
      "type": "object",
      "properties": {
        "line_items": {
          "type": "array",
          "items": {
            "type": "object",
            "additionalProperties": {"$ref": "#/$defs/score"}
          }
        }
      },
      "additionalProperties": {"$ref": "#/$defs/score"}
    }
  },
  "$defs": {
    "scalar": {"type": ["string", "number", "null"]},
    "score": {
      "oneOf": [
        {"type": "null"},
        {"type": "number", "minimum": 0, "maximum": 1}
      ]
    }
  }
}`

var responseSchema = mustCompileResponseSchema()

func mustCompileResponseSchema() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("response.json", strings.NewReader(responseSchemaJSON)); err != nil {
		panic(fmt.Sprintf("parser: add response schema: %v", err))
	}
	schema, err := compiler.Compile("response.json")
	if err != nil {
		panic(fmt.Sprintf("parser: compile response schema: %v", err))
	}
	return schema
}

// Response is a model answer that passed the response contract.
type Response struct {
	Data       map[string]any
	Confidence map[string]any
}

// DecodeResponse strips optional code fences from raw, validates it against
// the response contract and decodes it. Any deviation yields ErrMalformedResponse.
func DecodeResponse(raw []byte) (*Response, error) {
	body := extractJSON(raw)
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrMalformedResponse)
	}

	var v any
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if err := responseSchema.Validate(v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	top := v.(map[string]any)
	return &Response{
		Data:       top["data"].(map[string]any),
		Confidence: top["confidence_scores"].(map[string]any),
	}, nil
}

// Scalar returns the textual form of a top-level data value.
func (r *Response) Scalar(name string) string {
	return scalarString(r.Data[name])
}

// Score returns the confidence of a top-level field, 0 when absent.
func (r *Response) Score(name string) float64 {
	return scoreValue(r.Confidence[name])
}

// LineItemCount returns the number of line items in the data block.
func (r *Response) LineItemCount() int {
	items, _ := r.Data["line_items"].([]any)
	return len(items)
}

// LineScalar returns the textual form of a line item cell.
func (r *Response) LineScalar(i int, column string) string {
	row := rowAt(r.Data, i)
	if row == nil {
		return ""
	}
	return scalarString(row[column])
}

// LineScore returns the confidence of a line item cell, 0 when absent.
func (r *Response) LineScore(i int, column string) float64 {
	row := rowAt(r.Confidence, i)
	if row == nil {
		return 0
	}
	return scoreValue(row[column])
}

func rowAt(block map[string]any, i int) map[string]any {
	items, _ := block["line_items"].([]any)
	if i < 0 || i >= len(items) {
		return nil
	}
	row, _ := items[i].(map[string]any)
	return row
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

func scoreValue(v any) float64 {
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0
		}
		return f
	case float64:
		return t
	default:
		return 0
	}
}

// extractJSON trims surrounding prose and markdown fences, keeping the outermost object.
func extractJSON(raw []byte) []byte {
	s := bytes.TrimSpace(raw)
	start := bytes.IndexByte(s, '{')
	end := bytes.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return nil
	}
	return s[start : end+1]
}

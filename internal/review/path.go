package review

import (
	"fmt"
	"strconv"
	"strings"

	"aforo/internal/domain"
	"aforo/internal/extract"
)

const linePrefix = "line_items["

// resolve finds the field addressed by path: a top-level name such as
// "gross_weight" or a cell such as "line_items[2].weight".
func resolve(rec *domain.ExtractedRecord, path string) (*domain.ExtractedField, extract.FieldSpec, error) {
	if !strings.HasPrefix(path, linePrefix) {
		spec, ok := extract.LookupField(rec.DocumentType, path)
		if !ok {
			return nil, spec, fmt.Errorf("%q: %w", path, domain.ErrUnknownField)
		}
		f := rec.Field(path)
		if f == nil {
			rec.Fields = append(rec.Fields, domain.ExtractedField{})
			f = &rec.Fields[len(rec.Fields)-1]
		}
		return f, spec, nil
	}

	index, column, ok := splitLinePath(path)
	if !ok || !extract.HasLineItems(rec.DocumentType) || index >= len(rec.LineItems) {
		return nil, extract.FieldSpec{}, fmt.Errorf("%q: %w", path, domain.ErrUnknownField)
	}
	spec, ok := extract.LookupColumn(column)
	if !ok {
		return nil, spec, fmt.Errorf("%q: %w", path, domain.ErrUnknownField)
	}
	return extract.CellOf(&rec.LineItems[index], column), spec, nil
}

func splitLinePath(path string) (int, string, bool) {
	rest := strings.TrimPrefix(path, linePrefix)
	end := strings.Index(rest, "].")
	if end <= 0 {
		return 0, "", false
	}
	index, err := strconv.Atoi(rest[:end])
	if err != nil || index < 0 {
		return 0, "", false
	}
	return index, rest[end+2:], true
}

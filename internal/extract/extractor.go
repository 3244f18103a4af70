package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"aforo/internal/domain"
	"aforo/internal/parser"
	"aforo/internal/pdftext"
	"aforo/internal/port"
	"aforo/internal/resilience"
)

// Guard wraps a model call with rate limiting, retry and circuit breaking.
type Guard interface {
	Execute(ctx context.Context, operation string, fn func(context.Context) error, classifier resilience.ErrorClassifier) error
}

// Extractor turns a typed document into an ExtractedRecord.
type Extractor struct {
	parser           port.DocumentParser
	guard            Guard
	textModeMinChars int
	now              func() time.Time
}

// NewExtractor creates an Extractor. guard may be nil, in which case the
// parser is called once without protection.
func NewExtractor(p port.DocumentParser, guard Guard, textModeMinChars int) *Extractor {
	return &Extractor{
		parser:           p,
		guard:            guard,
		textModeMinChars: textModeMinChars,
		now:              time.Now,
	}
}

// ClassifyParserError marks transport failures worth retrying. Every failure
// counts against the breaker except a cancelled context. A rate limit passes
// the provider's Retry-After on as the retry delay.
func ClassifyParserError(err error) resilience.ErrorClassification {
	class := resilience.ErrorClassification{
		Retryable:     parser.IsRetryable(err),
		RecordFailure: !errors.Is(err, context.Canceled),
	}
	var rl *parser.RateLimitError
	if errors.As(err, &rl) {
		class.RetryAfter = rl.RetryAfter
	}
	return class
}

// Extract runs one model call for doc and builds its record.
//
// A malformed or truncated answer is not an error: the record comes back with
// ErrorKind ExtractionParseError and every field at confidence 0. A transport
// failure that survives the retries returns the empty record together with a
// PipelineError of kind ExtractionTransportError.
func (e *Extractor) Extract(ctx context.Context, doc *domain.RawDocument, data []byte, layer pdftext.Layer) (domain.ExtractedRecord, error) {
	now := e.now().UTC()
	rec := domain.ExtractedRecord{
		ID:           uuid.New(),
		BatchID:      doc.BatchID,
		DocumentID:   doc.ID,
		DocumentType: doc.Type,
		State:        domain.RecordStateExtracted,
		Version:      1,
		ExtractedAt:  now,
		UpdatedAt:    now,
	}

	if doc.Type != domain.DocumentTypeBL && doc.Type != domain.DocumentTypeInvoice {
		return rec, fmt.Errorf("extracting document %s: %w", doc.ID, domain.ErrInvalidDocumentType)
	}

	input := port.ParseInput{
		FileBytes:    data,
		ContentType:  doc.ContentType,
		DocumentType: string(doc.Type),
	}
	if layer.HasText(e.textModeMinChars) {
		input.TextLayer = layer.Text
	}

	var out *port.ParseOutput
	call := func(ctx context.Context) error {
		var err error
		out, err = e.parser.Parse(ctx, input)
		return err
	}

	var err error
	if e.guard != nil {
		err = e.guard.Execute(ctx, "extract."+string(doc.Type), call, ClassifyParserError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		rec.Fields = emptyFields(doc.Type, doc.ID)
		rec.ErrorKind = domain.KindExtractionTransportError
		rec.ErrorMessage = err.Error()
		return rec, domain.NewPipelineError(domain.KindExtractionTransportError, doc.ID, "model call failed", err)
	}
	rec.ModelUsed = out.ModelUsed

	if out.Truncated {
		return parseFailure(rec, doc, "model output truncated"), nil
	}
	resp, err := parser.DecodeResponse(out.RawResponse)
	if err != nil {
		return parseFailure(rec, doc, err.Error()), nil
	}

	rec.Fields = buildFields(SchemaFor(doc.Type), resp, doc.ID)
	if HasLineItems(doc.Type) {
		rec.LineItems = buildLineItems(resp, doc.ID)
	}

	zap.L().Debug("extract.Extractor: record built",
		zap.String("document_id", doc.ID.String()),
		zap.String("document_type", string(doc.Type)),
		zap.Bool("text_mode", input.TextMode()),
		zap.Int("line_items", len(rec.LineItems)),
	)
	return rec, nil
}

func parseFailure(rec domain.ExtractedRecord, doc *domain.RawDocument, msg string) domain.ExtractedRecord {
	zap.L().Warn("extract.Extractor: unusable model response",
		zap.String("document_id", doc.ID.String()),
		zap.String("reason", msg),
	)
	rec.Fields = emptyFields(doc.Type, doc.ID)
	rec.ErrorKind = domain.KindExtractionParseError
	rec.ErrorMessage = msg
	return rec
}

func emptyFields(t domain.DocumentType, docID uuid.UUID) []domain.ExtractedField {
	specs := SchemaFor(t)
	fields := make([]domain.ExtractedField, 0, len(specs))
	for _, spec := range specs {
		fields = append(fields, domain.ExtractedField{
			Name:             spec.Name,
			Kind:             spec.Kind,
			Required:         spec.Required,
			SourceDocumentID: docID,
		})
	}
	return fields
}

func buildFields(specs []FieldSpec, resp *parser.Response, docID uuid.UUID) []domain.ExtractedField {
	fields := make([]domain.ExtractedField, 0, len(specs))
	for _, spec := range specs {
		fields = append(fields, BuildField(spec, resp.Scalar(spec.Name), resp.Score(spec.Name), docID))
	}
	return fields
}

func buildLineItems(resp *parser.Response, docID uuid.UUID) []domain.LineItem {
	var items []domain.LineItem
	for i := 0; i < resp.LineItemCount(); i++ {
		li := domain.LineItem{Index: len(items)}
		empty := true
		for _, col := range LineItemColumns {
			cell := BuildField(col, resp.LineScalar(i, col.Name), resp.LineScore(i, col.Name), docID)
			if !cell.IsEmpty() {
				empty = false
			}
			*CellOf(&li, col.Name) = cell
		}
		if empty {
			continue
		}
		items = append(items, li)
	}
	return items
}

// BuildField normalizes one raw value against its spec. An empty value or a
// value that does not parse for its kind gets confidence 0.
func BuildField(spec FieldSpec, raw string, confidence float64, docID uuid.UUID) domain.ExtractedField {
	f := domain.ExtractedField{
		Name:             spec.Name,
		Kind:             spec.Kind,
		Required:         spec.Required,
		SourceDocumentID: docID,
		Confidence:       clamp01(confidence),
	}
	if IsEmptyValue(raw) {
		return f
	}
	f.Raw = strings.TrimSpace(raw)

	value, number, err := ParseValue(spec.Kind, f.Raw)
	if err != nil {
		f.ParseError = err.Error()
		f.Confidence = 0
		return f
	}
	f.Value = value
	f.Number = number
	return f
}

// ParseValue normalizes raw for kind, returning the canonical text and, for
// numeric kinds, the parsed number.
func ParseValue(kind domain.FieldKind, raw string) (string, *float64, error) {
	switch kind {
	case domain.FieldKindNumber:
		v, err := ParseNumber(raw)
		if err != nil {
			return "", nil, err
		}
		return formatNumber(v), &v, nil
	case domain.FieldKindInteger:
		v, err := ParseInteger(raw)
		if err != nil {
			return "", nil, err
		}
		return formatNumber(v), &v, nil
	case domain.FieldKindDate:
		v, err := ParseDate(raw)
		if err != nil {
			return "", nil, err
		}
		return v, nil, nil
	default:
		return strings.Join(strings.Fields(raw), " "), nil, nil
	}
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

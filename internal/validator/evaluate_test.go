package validator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aforo/internal/domain"
	"aforo/internal/extract"
	"aforo/internal/validator"
)

func num(v float64) *float64 { return &v }

func field(name string, required bool, raw string, conf float64) domain.ExtractedField {
	return domain.ExtractedField{Name: name, Kind: domain.FieldKindString, Raw: raw, Value: raw, Confidence: conf, Required: required}
}

func blRecord(confs ...float64) *domain.ExtractedRecord {
	names := []string{extract.FieldBLNumber, extract.FieldExporter, extract.FieldConsignee, extract.FieldGrossWeight, extract.FieldPackageCount}
	rec := &domain.ExtractedRecord{DocumentType: domain.DocumentTypeBL}
	for i, n := range names {
		c := 0.95
		if i < len(confs) {
			c = confs[i]
		}
		rec.Fields = append(rec.Fields, field(n, true, "x", c))
	}
	rec.Fields = append(rec.Fields, field(extract.FieldFreightCost, false, "", 0))
	return rec
}

func flagsFor(ev validator.Evaluation, path string) []validator.FlagCode {
	var out []validator.FlagCode
	for _, f := range ev.Flags {
		if f.Path == path {
			out = append(out, f.Code)
		}
	}
	return out
}

func TestEvaluate_Bands(t *testing.T) {
	th := validator.DefaultThresholds()
	tests := []struct {
		name string
		rec  *domain.ExtractedRecord
		band domain.QualityBand
		min  float64
	}{
		{"all high", blRecord(), domain.BandGreen, 0.95},
		{"one at green edge", blRecord(0.9), domain.BandGreen, 0.9},
		{"one needs review", blRecord(0.95, 0.7), domain.BandYellow, 0.7},
		{"one at yellow edge", blRecord(0.6), domain.BandYellow, 0.6},
		{"one low", blRecord(0.95, 0.95, 0.59), domain.BandRed, 0.59},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := validator.Evaluate(tt.rec, th)
			assert.Equal(t, tt.band, ev.Band)
			assert.InDelta(t, tt.min, ev.MinConfidence, 1e-9)
		})
	}
}

func TestEvaluate_EmptyOptionalFieldExcluded(t *testing.T) {
	ev := validator.Evaluate(blRecord(), validator.DefaultThresholds())

	assert.Equal(t, domain.BandGreen, ev.Band)
	assert.Empty(t, flagsFor(ev, extract.FieldFreightCost))
}

func TestEvaluate_FilledOptionalFieldIsBanded(t *testing.T) {
	rec := blRecord()
	rec.Field(extract.FieldFreightCost).Raw = "100"
	rec.Field(extract.FieldFreightCost).Confidence = 0.5

	ev := validator.Evaluate(rec, validator.DefaultThresholds())

	assert.Equal(t, domain.BandRed, ev.Band)
	assert.Equal(t, []validator.FlagCode{validator.FlagLowConfidence}, flagsFor(ev, extract.FieldFreightCost))
}

func TestEvaluate_MissingAndParseErrorFlags(t *testing.T) {
	rec := blRecord()
	rec.Fields[0] = field(extract.FieldBLNumber, true, "", 0)
	gw := rec.Field(extract.FieldGrossWeight)
	gw.ParseError = "no digits"
	gw.Confidence = 0

	ev := validator.Evaluate(rec, validator.DefaultThresholds())

	assert.Equal(t, domain.BandRed, ev.Band)
	assert.Equal(t, []validator.FlagCode{validator.FlagMissing, validator.FlagLowConfidence}, flagsFor(ev, extract.FieldBLNumber))
	assert.Equal(t, []validator.FlagCode{validator.FlagParseError, validator.FlagLowConfidence}, flagsFor(ev, extract.FieldGrossWeight))
}

func TestEvaluate_InvoiceWithoutLineItemsIsRed(t *testing.T) {
	rec := &domain.ExtractedRecord{
		DocumentType: domain.DocumentTypeInvoice,
		Fields:       []domain.ExtractedField{field(extract.FieldBLReference, true, "B1", 1)},
	}

	ev := validator.Evaluate(rec, validator.DefaultThresholds())

	assert.Equal(t, domain.BandRed, ev.Band)
	assert.Equal(t, []validator.FlagCode{validator.FlagMissing}, flagsFor(ev, "line_items"))
}

func TestEvaluate_LineTotalMismatchIsAdvisory(t *testing.T) {
	numCell := func(name string, v float64) domain.ExtractedField {
		return domain.ExtractedField{Name: name, Kind: domain.FieldKindNumber, Raw: "n", Value: "n", Number: num(v), Confidence: 1, Required: true}
	}
	rec := &domain.ExtractedRecord{
		DocumentType: domain.DocumentTypeInvoice,
		Fields:       []domain.ExtractedField{field(extract.FieldBLReference, true, "B1", 1)},
		LineItems: []domain.LineItem{
			{
				Description: field(extract.ColumnDescription, true, "Pads", 1),
				Quantity:    numCell(extract.ColumnQuantity, 10),
				UnitPrice:   numCell(extract.ColumnUnitPrice, 5.5),
				TotalPrice:  numCell(extract.ColumnTotalPrice, 60),
			},
			{
				Description: field(extract.ColumnDescription, true, "Filter", 1),
				Quantity:    numCell(extract.ColumnQuantity, 2),
				UnitPrice:   numCell(extract.ColumnUnitPrice, 3),
				TotalPrice:  numCell(extract.ColumnTotalPrice, 6.5),
			},
		},
	}

	ev := validator.Evaluate(rec, validator.DefaultThresholds())

	assert.Equal(t, domain.BandGreen, ev.Band)
	assert.Equal(t, []validator.FlagCode{validator.FlagLineTotalMismatch}, flagsFor(ev, "line_items[0].total_price"))
	assert.Empty(t, flagsFor(ev, "line_items[1].total_price"))
	assert.True(t, validator.FlagLineTotalMismatch.Advisory())
}

func TestEvaluate_Monotonic(t *testing.T) {
	th := validator.DefaultThresholds()
	steps := []float64{0, 0.3, 0.59, 0.6, 0.75, 0.89, 0.9, 1}

	for i := range blRecord().Fields[:5] {
		prev := -1
		for _, c := range steps {
			rec := blRecord(0.95, 0.95, 0.95, 0.95, 0.95)
			rec.Fields[i].Confidence = c
			rank := validator.Evaluate(rec, th).Band.Rank()
			require.GreaterOrEqual(t, rank, prev, "field %d at confidence %.2f", i, c)
			prev = rank
		}
	}
}

func TestComputeFieldStatuses(t *testing.T) {
	ev := validator.Evaluation{Flags: []validator.Flag{
		{Path: "a", Code: validator.FlagNeedsReview, Message: "m1"},
		{Path: "b", Code: validator.FlagParseError, Message: "m2"},
		{Path: "b", Code: validator.FlagLowConfidence, Message: "m3"},
	}}

	statuses := validator.ComputeFieldStatuses(ev)

	require.Len(t, statuses, 2)
	assert.Equal(t, validator.FieldStatusUnsure, statuses["a"].Status)
	assert.Equal(t, validator.FieldStatusInvalid, statuses["b"].Status)
	assert.Equal(t, []string{"m2", "m3"}, statuses["b"].Messages)
}

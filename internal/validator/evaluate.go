package validator

import (
	"fmt"

	"aforo/internal/domain"
	"aforo/internal/extract"
)

// Thresholds are the band cut-offs. A banded field below Yellow makes the
// record red; below Green, yellow.
type Thresholds struct {
	Green  float64
	Yellow float64
}

// DefaultThresholds returns the 0.9 / 0.6 cut-offs.
func DefaultThresholds() Thresholds {
	return Thresholds{Green: 0.9, Yellow: 0.6}
}

// Band maps a minimum confidence to its quality band.
func (t Thresholds) Band(minConfidence float64) domain.QualityBand {
	switch {
	case minConfidence >= t.Green:
		return domain.BandGreen
	case minConfidence >= t.Yellow:
		return domain.BandYellow
	default:
		return domain.BandRed
	}
}

// FlagCode identifies why a field needs attention.
type FlagCode string

const (
	FlagLowConfidence     FlagCode = "low_confidence"
	FlagNeedsReview       FlagCode = "needs_review"
	FlagParseError        FlagCode = "parse_error"
	FlagMissing           FlagCode = "missing"
	FlagLineTotalMismatch FlagCode = "line_total_mismatch"
)

// Advisory reports whether the flag is informational and never affects the band.
func (c FlagCode) Advisory() bool {
	return c == FlagLineTotalMismatch
}

// Flag is one finding on a field path such as "gross_weight" or "line_items[2].weight".
type Flag struct {
	Path    string   `json:"path"`
	Code    FlagCode `json:"code"`
	Message string   `json:"message"`
}

// Evaluation is the quality assessment of one record.
type Evaluation struct {
	Band          domain.QualityBand `json:"band"`
	MinConfidence float64            `json:"min_confidence"`
	Flags         []Flag             `json:"flags"`
}

// Evaluate derives the quality band and field flags of rec. Required fields
// are always banded; optional fields only when they carry a value. The band
// depends on confidences alone, so raising any confidence never lowers it.
func Evaluate(rec *domain.ExtractedRecord, th Thresholds) Evaluation {
	ev := Evaluation{Flags: []Flag{}}
	minConf := 1.0
	banded := 0

	visit := func(path string, f *domain.ExtractedField) {
		if !f.Required && f.IsEmpty() {
			return
		}
		banded++
		if f.Confidence < minConf {
			minConf = f.Confidence
		}
		ev.Flags = append(ev.Flags, fieldFlags(path, f, th)...)
	}

	for i := range rec.Fields {
		visit(rec.Fields[i].Name, &rec.Fields[i])
	}
	for i := range rec.LineItems {
		li := &rec.LineItems[i]
		for _, cell := range li.Cells() {
			visit(LinePath(i, cell.Name), cell)
		}
	}

	if extract.HasLineItems(rec.DocumentType) && len(rec.LineItems) == 0 {
		banded++
		minConf = 0
		ev.Flags = append(ev.Flags, Flag{Path: "line_items", Code: FlagMissing, Message: "no line items extracted"})
	}

	if banded == 0 {
		minConf = 0
	}
	ev.MinConfidence = minConf
	ev.Band = th.Band(minConf)
	ev.Flags = append(ev.Flags, lineTotalFlags(rec)...)
	return ev
}

// LinePath renders the field path of a line item cell.
func LinePath(index int, column string) string {
	return fmt.Sprintf("line_items[%d].%s", index, column)
}

func fieldFlags(path string, f *domain.ExtractedField, th Thresholds) []Flag {
	var flags []Flag
	switch {
	case f.ParseError != "":
		flags = append(flags, Flag{Path: path, Code: FlagParseError,
			Message: fmt.Sprintf("%s: cannot read %q as %s: %s", path, f.Raw, f.Kind, f.ParseError)})
	case f.IsEmpty():
		flags = append(flags, Flag{Path: path, Code: FlagMissing, Message: fmt.Sprintf("%s: required value missing", path)})
	}
	switch {
	case f.Confidence < th.Yellow:
		flags = append(flags, Flag{Path: path, Code: FlagLowConfidence,
			Message: fmt.Sprintf("%s: confidence %.2f below %.2f", path, f.Confidence, th.Yellow)})
	case f.Confidence < th.Green:
		flags = append(flags, Flag{Path: path, Code: FlagNeedsReview,
			Message: fmt.Sprintf("%s: confidence %.2f below %.2f", path, f.Confidence, th.Green)})
	}
	return flags
}

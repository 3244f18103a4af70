package validator

import (
	"fmt"
	"math"

	"aforo/internal/domain"
	"aforo/internal/extract"
)

const mathTolerance = 1.00

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) <= mathTolerance
}

func fmtf(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

// lineTotalFlags checks quantity × unit_price against total_price on every
// row where all three were read.
func lineTotalFlags(rec *domain.ExtractedRecord) []Flag {
	var flags []Flag
	for i := range rec.LineItems {
		item := &rec.LineItems[i]
		if item.Quantity.Number == nil || item.UnitPrice.Number == nil || item.TotalPrice.Number == nil {
			continue
		}
		expected := item.Quantity.Num() * item.UnitPrice.Num()
		actual := item.TotalPrice.Num()
		if approxEqual(actual, expected) {
			continue
		}
		fp := LinePath(i, extract.ColumnTotalPrice)
		flags = append(flags, Flag{
			Path:    fp,
			Code:    FlagLineTotalMismatch,
			Message: fmt.Sprintf("%s: calculation mismatch (expected %s, got %s)", fp, fmtf(expected), fmtf(actual)),
		})
	}
	return flags
}

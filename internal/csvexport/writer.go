package csvexport

import (
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"aforo/internal/report"
)

// UTF-8 BOM bytes for Excel compatibility on Windows.
var BOM = []byte{0xEF, 0xBB, 0xBF}

// columns defines the CSV header row (16 columns).
var columns = []string{
	"BL Number",
	"Item",
	"Description",
	"Original Description",
	"Tariff Code",
	"Part Number",
	"Quantity",
	"Unit Price",
	"Weight",
	"Value",
	"Freight Share",
	"Insurance Share",
	"CIF Contribution",
	"Currency",
	"Allocation Basis",
	"Source Document",
}

// Writer wraps csv.Writer for exporting report rows as CSV.
type Writer struct {
	csv *csv.Writer
}

// NewWriter creates a Writer that writes CSV to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{csv: csv.NewWriter(w)}
}

// WriteHeader writes the 16-column header row.
func (w *Writer) WriteHeader() error {
	return w.csv.Write(columns)
}

// WriteReport writes one row per line item of every shipment, in report order.
func (w *Writer) WriteReport(r *report.Report) error {
	for i := range r.Shipments {
		s := &r.Shipments[i]
		for j := range s.Rows {
			if err := w.csv.Write(rowToRecord(s, &s.Rows[j])); err != nil {
				return err
			}
		}
	}
	return nil
}

// Flush flushes the underlying csv.Writer buffer.
func (w *Writer) Flush() {
	w.csv.Flush()
}

// Error returns any error from the underlying csv.Writer.
func (w *Writer) Error() error {
	return w.csv.Error()
}

func rowToRecord(s *report.Shipment, row *report.Row) []string {
	rec := make([]string, len(columns))
	rec[0] = s.BLNumber
	rec[1] = strconv.Itoa(row.Item)
	rec[2] = row.Description
	rec[3] = row.OriginalDescription
	rec[4] = row.TariffCode
	rec[5] = row.PartNumber
	rec[6] = formatQuantity(row.Quantity)
	rec[7] = formatMoney(row.UnitPrice)
	rec[8] = formatQuantity(row.Weight)
	rec[9] = formatMoney(row.Value)
	rec[10] = formatMoney(row.FreightShare)
	rec[11] = formatMoney(row.InsuranceShare)
	rec[12] = formatMoney(row.CIFContribution)
	rec[13] = s.Currency
	rec[14] = string(s.Basis)
	rec[15] = row.SourceDocumentID.String()
	return rec
}

func formatMoney(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func formatQuantity(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// nonAlphanumeric matches characters that are not alphanumeric, hyphen, or underscore.
var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// multiUnderscore matches consecutive underscores.
var multiUnderscore = regexp.MustCompile(`_{2,}`)

// SanitizeFilename cleans a batch name for use in Content-Disposition.
// Replaces non-alphanumeric chars (except - _) with _, collapses consecutive
// underscores, and truncates to 100 chars.
func SanitizeFilename(name string) string {
	s := nonAlphanumeric.ReplaceAllString(name, "_")
	s = multiUnderscore.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > 100 {
		s = s[:100]
	}
	if s == "" {
		s = "aforo"
	}
	return s
}

// BuildFilename returns a sanitized filename for Content-Disposition header.
// Format: {sanitized_batch_name}_{YYYY-MM-DD}.{ext}
func BuildFilename(batchName, ext string) string {
	sanitized := SanitizeFilename(batchName)
	date := time.Now().Format("2006-01-02")
	return fmt.Sprintf("%s_%s.%s", sanitized, date, ext)
}

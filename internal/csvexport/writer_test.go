package csvexport

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aforo/internal/domain"
	"aforo/internal/report"
)

func TestWriteHeader(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteHeader())
	w.Flush()
	require.NoError(t, w.Error())

	r := csv.NewReader(&buf)
	row, err := r.Read()
	require.NoError(t, err)

	assert.Len(t, row, 16)
	assert.Equal(t, "BL Number", row[0])
	assert.Equal(t, "Tariff Code", row[4])
	assert.Equal(t, "Source Document", row[15])
}

func TestWriteReport(t *testing.T) {
	docID := uuid.New()
	rep := &report.Report{
		Shipments: []report.Shipment{
			{
				BLNumber: "MSCU1",
				Currency: "USD",
				Basis:    domain.AllocationBasisWeight,
				Rows: []report.Row{
					{
						Item: 1, Description: "PASTILLAS DE FRENO", OriginalDescription: "Brake pads",
						TariffCode: "8708.30", Quantity: 10, UnitPrice: 5.5, Weight: 12.25, Value: 55,
						FreightShare: 3.333, InsuranceShare: 0.8, CIFContribution: 59.13, SourceDocumentID: docID,
					},
				},
			},
			{BLNumber: "EMPTY"},
			{
				BLNumber: "HLCU2",
				Rows:     []report.Row{{Item: 1, Description: "Widget", TariffCode: "PENDIENTE"}},
			},
		},
	}

	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteReport(rep))
	w.Flush()
	require.NoError(t, w.Error())

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)

	first := rows[0]
	assert.Equal(t, "MSCU1", first[0])
	assert.Equal(t, "1", first[1])
	assert.Equal(t, "PASTILLAS DE FRENO", first[2])
	assert.Equal(t, "Brake pads", first[3])
	assert.Equal(t, "10", first[6])
	assert.Equal(t, "5.50", first[7])
	assert.Equal(t, "12.25", first[8])
	assert.Equal(t, "3.33", first[10])
	assert.Equal(t, "USD", first[13])
	assert.Equal(t, "weight", first[14])
	assert.Equal(t, docID.String(), first[15])

	assert.Equal(t, "HLCU2", rows[1][0])
	assert.Equal(t, "PENDIENTE", rows[1][4])
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple", "March Imports", "March_Imports"},
		{"special chars", "Embarque 2024 / Q3 (Oct–Dec)", "Embarque_2024_Q3_Oct_Dec"},
		{"accents dropped", "Aforo Importación", "Aforo_Importaci_n"},
		{"hyphens and underscores preserved", "my-batch_2025", "my-batch_2025"},
		{"consecutive underscores collapsed", "test___batch", "test_batch"},
		{"leading/trailing cleaned", "  hello  ", "hello"},
		{
			"long name truncated",
			"abcdefghijklmnopqrstuvwxyz-abcdefghijklmnopqrstuvwxyz-abcdefghijklmnopqrstuvwxyz-abcdefghijklmnopqrstuvwxyz-extra",
			"abcdefghijklmnopqrstuvwxyz-abcdefghijklmnopqrstuvwxyz-abcdefghijklmnopqrstuvwxyz-abcdefghijklmnopqrs",
		},
		{"empty", "", "aforo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeFilename(tt.input))
		})
	}
}

func TestBuildFilename(t *testing.T) {
	filename := BuildFilename("March Imports", "xlsx")
	today := time.Now().Format("2006-01-02")
	assert.Equal(t, "March_Imports_"+today+".xlsx", filename)
}

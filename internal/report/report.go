// Package report assembles the reconciled batch into the rows written to the
// customs workbook.
package report

import (
	"time"

	"github.com/google/uuid"

	"aforo/internal/consolidate"
	"aforo/internal/domain"
	"aforo/internal/extract"
	"aforo/internal/finance"
	"aforo/internal/translate"
)

// Row is one line item of a shipment as declared.
type Row struct {
	Item                int       `json:"item"`
	Description         string    `json:"description"`
	OriginalDescription string    `json:"original_description"`
	TariffCode          string    `json:"tariff_code"`
	Mapped              bool      `json:"mapped"`
	// Suggestion is a partial vocabulary match awaiting confirmation.
	Suggestion          string    `json:"suggestion,omitempty"`
	SuggestedTariffCode string    `json:"suggested_tariff_code,omitempty"`
	PartNumber          string    `json:"part_number,omitempty"`
	Quantity            float64   `json:"quantity"`
	UnitPrice           float64   `json:"unit_price"`
	Weight              float64   `json:"weight"`
	Value               float64   `json:"value"`
	FreightShare        float64   `json:"freight_share"`
	InsuranceShare      float64   `json:"insurance_share"`
	CIFContribution     float64   `json:"cif_contribution"`
	SourceDocumentID    uuid.UUID `json:"source_document_id"`
	LineIndex           int       `json:"line_index"`
}

// Shipment is the report section of one BL.
type Shipment struct {
	BLNumber            string                 `json:"bl_number"`
	Exporter            domain.Party           `json:"exporter"`
	Consignee           domain.Party           `json:"consignee"`
	InvoiceNumbers      []string               `json:"invoice_numbers"`
	InvoiceDate         string                 `json:"invoice_date,omitempty"`
	PackageCount        float64                `json:"package_count"`
	Currency            string                 `json:"currency"`
	InvoiceTotal        float64                `json:"invoice_total"`
	DeclaredGrossWeight float64                `json:"declared_gross_weight"`
	LineItemWeight      float64                `json:"line_item_weight"`
	WeightMismatch      bool                   `json:"weight_mismatch"`
	Basis               domain.AllocationBasis `json:"basis"`
	FOBValue            float64                `json:"fob_value"`
	Freight             float64                `json:"freight"`
	Insurance           float64                `json:"insurance"`
	CIF                 float64                `json:"cif"`
	Rows                []Row                  `json:"rows"`
}

// UnmatchedInvoice is a validated invoice whose BL is not in the batch.
type UnmatchedInvoice struct {
	DocumentID    uuid.UUID `json:"document_id"`
	InvoiceNumber string    `json:"invoice_number"`
	BLReference   string    `json:"bl_reference"`
	Currency      string    `json:"currency"`
	TotalValue    float64   `json:"total_value"`
}

// Report is the full output of a consolidated batch.
type Report struct {
	BatchID     uuid.UUID          `json:"batch_id"`
	BatchName   string             `json:"batch_name"`
	GeneratedAt time.Time          `json:"generated_at"`
	Shipments   []Shipment         `json:"shipments"`
	Unmatched   []UnmatchedInvoice `json:"unmatched_invoices"`
	Warnings    []domain.Warning   `json:"warnings"`
	Catalog     []translate.Entry  `json:"-"`
}

// Input is everything Build needs. Allocations and Translations are indexed
// like Consolidation.Shipments.
type Input struct {
	Batch         domain.Batch
	Consolidation consolidate.Result
	Allocations   []finance.ShipmentAllocation
	Translations  [][]translate.Translation
	// Warnings raised before consolidation, for example rejected records.
	Warnings            []domain.Warning
	TranslationWarnings []domain.Warning
	Catalog             []translate.Entry
	Now                 time.Time
}

// Build lays out the report. Warnings are listed in pipeline order: document
// level first, then consolidation, then translation.
func Build(in Input) *Report {
	r := &Report{
		BatchID:     in.Batch.ID,
		BatchName:   in.Batch.Name,
		GeneratedAt: in.Now,
		Shipments:   make([]Shipment, 0, len(in.Consolidation.Shipments)),
		Unmatched:   make([]UnmatchedInvoice, 0, len(in.Consolidation.Unmatched)),
		Warnings:    make([]domain.Warning, 0, len(in.Warnings)+len(in.Consolidation.Warnings)+len(in.TranslationWarnings)),
		Catalog:     in.Catalog,
	}
	r.Warnings = append(r.Warnings, in.Warnings...)
	r.Warnings = append(r.Warnings, in.Consolidation.Warnings...)
	r.Warnings = append(r.Warnings, in.TranslationWarnings...)

	for i := range in.Consolidation.Shipments {
		s := &in.Consolidation.Shipments[i]
		var alloc finance.ShipmentAllocation
		if i < len(in.Allocations) {
			alloc = in.Allocations[i]
		}
		var tr []translate.Translation
		if i < len(in.Translations) {
			tr = in.Translations[i]
		}
		r.Shipments = append(r.Shipments, buildShipment(s, alloc, tr))
	}

	for i := range in.Consolidation.Unmatched {
		inv := &in.Consolidation.Unmatched[i]
		r.Unmatched = append(r.Unmatched, UnmatchedInvoice{
			DocumentID:    inv.DocumentID,
			InvoiceNumber: inv.FieldValue(extract.FieldInvoiceNumber),
			BLReference:   inv.FieldValue(extract.FieldBLReference),
			Currency:      inv.FieldValue(extract.FieldCurrency),
			TotalValue:    inv.FieldNumber(extract.FieldTotalValue),
		})
	}
	return r
}

func buildShipment(s *domain.ConsolidatedShipment, alloc finance.ShipmentAllocation, tr []translate.Translation) Shipment {
	out := Shipment{
		BLNumber:            s.BLNumber,
		Exporter:            s.Exporter,
		Consignee:           s.Consignee,
		InvoiceNumbers:      make([]string, 0, len(s.Invoices)),
		PackageCount:        s.BL.FieldNumber(extract.FieldPackageCount),
		Currency:            s.Currency,
		InvoiceTotal:        s.InvoiceTotal,
		DeclaredGrossWeight: s.DeclaredGrossWeight,
		LineItemWeight:      s.LineItemWeight,
		WeightMismatch:      s.WeightMismatch,
		Basis:               alloc.Basis,
		FOBValue:            alloc.FOBValue,
		Freight:             alloc.Freight,
		Insurance:           alloc.Insurance,
		CIF:                 alloc.CIF,
		Rows:                make([]Row, 0, len(alloc.Items)),
	}
	for i := range s.Invoices {
		out.InvoiceNumbers = append(out.InvoiceNumbers, s.Invoices[i].FieldValue(extract.FieldInvoiceNumber))
		if out.InvoiceDate == "" {
			out.InvoiceDate = s.Invoices[i].FieldValue(extract.FieldInvoiceDate)
		}
	}

	for i, a := range alloc.Items {
		row := Row{
			Item:                i + 1,
			Description:         a.Description,
			OriginalDescription: a.Description,
			PartNumber:          a.PartNumber,
			Quantity:            a.Quantity,
			UnitPrice:           a.UnitPrice,
			Weight:              a.Weight,
			Value:               a.Value,
			FreightShare:        a.FreightShare,
			InsuranceShare:      a.InsuranceShare,
			CIFContribution:     a.CIFContribution,
			SourceDocumentID:    a.SourceDocumentID,
			LineIndex:           a.LineIndex,
			TariffCode:          translate.PendingTariffCode,
		}
		if i < len(tr) {
			row.Description = tr[i].Spanish
			row.TariffCode = tr[i].TariffCode
			row.Mapped = tr[i].Mapped
			row.Suggestion = tr[i].Suggestion
			row.SuggestedTariffCode = tr[i].SuggestedTariffCode
		}
		out.Rows = append(out.Rows, row)
	}
	return out
}

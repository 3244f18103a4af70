// Package consolidate groups validated invoices under their Bill of Lading.
package consolidate

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/google/uuid"

	"aforo/internal/domain"
	"aforo/internal/extract"
	"aforo/internal/textnorm"
)

// DefaultWeightTolerance is the accepted relative gap between the BL gross
// weight and the summed line item weights.
const DefaultWeightTolerance = 0.02

// Result is the outcome of one consolidation pass.
type Result struct {
	Shipments []domain.ConsolidatedShipment
	// Unmatched holds validated invoices whose BL reference matches no BL.
	Unmatched []domain.ExtractedRecord
	Warnings  []domain.Warning
}

// Engine merges records into shipments. It holds no state between calls.
type Engine struct {
	weightTolerance float64
}

func NewEngine(weightTolerance float64) *Engine {
	if weightTolerance < 0 {
		weightTolerance = DefaultWeightTolerance
	}
	return &Engine{weightTolerance: weightTolerance}
}

// Consolidate partitions the validated invoices by normalized BL reference
// and joins each partition with its BL. sequence gives the ingestion order of
// each document; records are processed in that order regardless of how they
// are passed in. Records in any state other than validated or consolidated
// are ignored.
func (e *Engine) Consolidate(records []domain.ExtractedRecord, sequence map[uuid.UUID]int) Result {
	ordered := make([]domain.ExtractedRecord, 0, len(records))
	for i := range records {
		if records[i].State == domain.RecordStateValidated || records[i].State == domain.RecordStateConsolidated {
			ordered = append(ordered, records[i])
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		si, sj := sequence[ordered[i].DocumentID], sequence[ordered[j].DocumentID]
		if si != sj {
			return si < sj
		}
		return ordered[i].DocumentID.String() < ordered[j].DocumentID.String()
	})

	var res Result
	var bls []domain.ExtractedRecord
	blKeys := make(map[string]bool)
	invoicesByKey := make(map[string][]domain.ExtractedRecord)
	var invoiceKeys []string

	for _, rec := range ordered {
		switch rec.DocumentType {
		case domain.DocumentTypeBL:
			key := NormalizeBL(rec.FieldValue(extract.FieldBLNumber))
			if key == "" || blKeys[key] {
				res.Warnings = append(res.Warnings, domain.Warning{
					Kind:       domain.KindConsolidationMismatch,
					DocumentID: rec.DocumentID,
					BLNumber:   rec.FieldValue(extract.FieldBLNumber),
					Message:    blRejectMessage(key),
				})
				continue
			}
			blKeys[key] = true
			bls = append(bls, rec)
		case domain.DocumentTypeInvoice:
			key := NormalizeBL(rec.FieldValue(extract.FieldBLReference))
			if _, seen := invoicesByKey[key]; !seen {
				invoiceKeys = append(invoiceKeys, key)
			}
			invoicesByKey[key] = append(invoicesByKey[key], rec)
		}
	}

	for _, bl := range bls {
		key := NormalizeBL(bl.FieldValue(extract.FieldBLNumber))
		shipment, warnings := e.merge(key, bl, invoicesByKey[key])
		res.Shipments = append(res.Shipments, shipment)
		res.Warnings = append(res.Warnings, warnings...)
	}

	for _, key := range invoiceKeys {
		if blKeys[key] {
			continue
		}
		for _, inv := range invoicesByKey[key] {
			res.Unmatched = append(res.Unmatched, inv)
			res.Warnings = append(res.Warnings, domain.Warning{
				Kind:       domain.KindConsolidationMismatch,
				DocumentID: inv.DocumentID,
				BLNumber:   inv.FieldValue(extract.FieldBLReference),
				Message: fmt.Sprintf("invoice %s references BL %q which is not in the batch",
					inv.FieldValue(extract.FieldInvoiceNumber), inv.FieldValue(extract.FieldBLReference)),
			})
		}
	}
	return res
}

func blRejectMessage(key string) string {
	if key == "" {
		return "BL has no readable BL number and cannot be matched"
	}
	return fmt.Sprintf("duplicate BL %s ignored; the first one ingested is used", key)
}

func (e *Engine) merge(key string, bl domain.ExtractedRecord, invoices []domain.ExtractedRecord) (domain.ConsolidatedShipment, []domain.Warning) {
	s := domain.ConsolidatedShipment{
		BLNumber:            key,
		BL:                  bl,
		Invoices:            invoices,
		LineItems:           []domain.LineItem{},
		DeclaredGrossWeight: bl.FieldNumber(extract.FieldGrossWeight),
		Exporter:            exporterOf(bl, invoices),
		Consignee: domain.Party{
			Name:    bl.FieldValue(extract.FieldConsignee),
			Address: bl.FieldValue(extract.FieldConsigneeAddress),
		},
	}
	if s.Invoices == nil {
		s.Invoices = []domain.ExtractedRecord{}
	}

	var warnings []domain.Warning
	if len(invoices) == 0 {
		warnings = append(warnings, domain.Warning{
			Kind:       domain.KindShipmentWithoutInvoices,
			DocumentID: bl.DocumentID,
			BLNumber:   key,
			Message:    fmt.Sprintf("BL %s has no matching invoices", key),
		})
		return s, warnings
	}

	weighed := false
	currencies := make(map[string]bool)
	for _, inv := range invoices {
		s.InvoiceTotal += inv.FieldNumber(extract.FieldTotalValue)
		if c := strings.ToUpper(inv.FieldValue(extract.FieldCurrency)); c != "" {
			if s.Currency == "" {
				s.Currency = c
			}
			currencies[c] = true
		}
		for _, li := range inv.LineItems {
			s.LineItems = append(s.LineItems, li)
			if li.Weight.Number != nil {
				weighed = true
				s.LineItemWeight += li.Weight.Num()
			}
		}
	}

	if len(currencies) > 1 {
		warnings = append(warnings, domain.Warning{
			Kind:     domain.KindConsolidationMismatch,
			BLNumber: key,
			Message:  fmt.Sprintf("BL %s invoices use %d different currencies; totals are summed as %s", key, len(currencies), s.Currency),
		})
	}

	if weighed && s.DeclaredGrossWeight > 0 {
		s.WeightMismatchRatio = math.Abs(s.LineItemWeight-s.DeclaredGrossWeight) / s.DeclaredGrossWeight
		if s.WeightMismatchRatio > e.weightTolerance {
			s.WeightMismatch = true
			warnings = append(warnings, domain.Warning{
				Kind:       domain.KindWeightToleranceExceeded,
				DocumentID: bl.DocumentID,
				BLNumber:   key,
				Message: fmt.Sprintf("BL %s declares %.2f kg but line items sum to %.2f kg (%.1f%% off)",
					key, s.DeclaredGrossWeight, s.LineItemWeight, s.WeightMismatchRatio*100),
			})
		}
	}
	return s, warnings
}

// exporterOf prefers the first invoice that names the exporter and the
// longest address seen on any of the documents.
func exporterOf(bl domain.ExtractedRecord, invoices []domain.ExtractedRecord) domain.Party {
	p := domain.Party{
		Name:    bl.FieldValue(extract.FieldExporter),
		Address: bl.FieldValue(extract.FieldExporterAddress),
	}
	named := false
	for _, inv := range invoices {
		if name := inv.FieldValue(extract.FieldExporter); name != "" && !named {
			p.Name = name
			named = true
		}
		if addr := inv.FieldValue(extract.FieldExporterAddress); len(addr) > len(p.Address) {
			p.Address = addr
		}
	}
	return p
}

// NormalizeBL is the matching key of a BL number: trimmed, upper case, with
// every rune that is not a letter or digit removed.
func NormalizeBL(s string) string {
	return textnorm.Key(s)
}

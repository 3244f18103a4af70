// Package finance distributes freight and insurance over the line items of a
// consolidated shipment and computes its CIF value.
package finance

import (
	"github.com/shopspring/decimal"

	"aforo/internal/domain"
	"aforo/internal/extract"
)

const (
	DefaultInsuranceRate           = 0.015
	DefaultWeightCoverageThreshold = 0.0
)

// ShipmentAllocation is the cost breakdown of one shipment.
type ShipmentAllocation struct {
	BLNumber  string                      `json:"bl_number"`
	Basis     domain.AllocationBasis      `json:"basis"`
	Currency  string                      `json:"currency"`
	FOBValue  float64                     `json:"fob_value"`
	Freight   float64                     `json:"freight"`
	Insurance float64                     `json:"insurance"`
	CIF       float64                     `json:"cif"`
	Items     []domain.LineItemAllocation `json:"items"`
}

// Engine allocates costs. It never modifies the shipments it reads.
type Engine struct {
	weightCoverageThreshold float64
	insuranceRate           decimal.Decimal
}

// NewEngine creates an Engine. Weight is used as allocation basis only when
// the share of items carrying a positive weight exceeds weightCoverageThreshold.
func NewEngine(weightCoverageThreshold, insuranceRate float64) *Engine {
	if insuranceRate < 0 {
		insuranceRate = DefaultInsuranceRate
	}
	return &Engine{
		weightCoverageThreshold: weightCoverageThreshold,
		insuranceRate:           decimal.NewFromFloat(insuranceRate),
	}
}

const hundredths int32 = 2

// Allocate splits freight and insurance over s.LineItems. Missing costs
// default to the BL freight_cost and to the configured insurance rate of the
// FOB value. Shares are rounded to cents so that they always add up to the
// totals.
func (e *Engine) Allocate(s *domain.ConsolidatedShipment, costs domain.ShipmentCosts) ShipmentAllocation {
	values := make([]decimal.Decimal, len(s.LineItems))
	fob := decimal.Zero
	for i := range s.LineItems {
		values[i] = decimal.NewFromFloat(s.LineItems[i].ItemValue()).Round(hundredths)
		fob = fob.Add(values[i])
	}

	freight := decimal.NewFromFloat(s.BL.FieldNumber(extract.FieldFreightCost))
	if costs.Freight != nil {
		freight = decimal.NewFromFloat(*costs.Freight)
	}
	freight = freight.Round(hundredths)

	insurance := fob.Mul(e.insuranceRate)
	if costs.Insurance != nil {
		insurance = decimal.NewFromFloat(*costs.Insurance)
	}
	insurance = insurance.Round(hundredths)

	basis, keys := e.basis(s.LineItems, values)
	freightShares := split(freight, keys)
	insuranceShares := split(insurance, keys)

	out := ShipmentAllocation{
		BLNumber:  s.BLNumber,
		Basis:     basis,
		Currency:  s.Currency,
		FOBValue:  fob.InexactFloat64(),
		Freight:   freight.InexactFloat64(),
		Insurance: insurance.InexactFloat64(),
		CIF:       fob.Add(freight).Add(insurance).InexactFloat64(),
		Items:     make([]domain.LineItemAllocation, 0, len(s.LineItems)),
	}
	for i := range s.LineItems {
		li := &s.LineItems[i]
		out.Items = append(out.Items, domain.LineItemAllocation{
			ShipmentBLNumber: s.BLNumber,
			Index:            i,
			SourceDocumentID: li.Description.SourceDocumentID,
			LineIndex:        li.Index,
			Description:      li.Description.Value,
			PartNumber:       li.PartNumber.Value,
			Quantity:         li.Quantity.Num(),
			UnitPrice:        li.UnitPrice.Num(),
			Weight:           li.Weight.Num(),
			Value:            values[i].InexactFloat64(),
			FreightShare:     freightShares[i].InexactFloat64(),
			InsuranceShare:   insuranceShares[i].InexactFloat64(),
			CIFContribution:  values[i].Add(freightShares[i]).Add(insuranceShares[i]).InexactFloat64(),
			Basis:            basis,
		})
	}
	return out
}

// basis picks weight, then value, then an equal split, and returns the
// proportionality key of every item.
func (e *Engine) basis(items []domain.LineItem, values []decimal.Decimal) (domain.AllocationBasis, []decimal.Decimal) {
	keys := make([]decimal.Decimal, len(items))
	if len(items) == 0 {
		return domain.AllocationBasisEqual, keys
	}

	weighed := 0
	totalWeight := decimal.Zero
	for i := range items {
		if w := items[i].Weight.Num(); w > 0 {
			weighed++
			keys[i] = decimal.NewFromFloat(w)
			totalWeight = totalWeight.Add(keys[i])
		} else {
			keys[i] = decimal.Zero
		}
	}
	coverage := float64(weighed) / float64(len(items))
	if coverage > e.weightCoverageThreshold && totalWeight.IsPositive() {
		return domain.AllocationBasisWeight, keys
	}

	totalValue := decimal.Zero
	for i := range values {
		keys[i] = decimal.Max(values[i], decimal.Zero)
		totalValue = totalValue.Add(keys[i])
	}
	if totalValue.IsPositive() {
		return domain.AllocationBasisValue, keys
	}

	for i := range keys {
		keys[i] = decimal.NewFromInt(1)
	}
	return domain.AllocationBasisEqual, keys
}

// split distributes amount proportionally to keys with cumulative rounding:
// each share is the rounded running total minus the previous rounded running
// total. The shares add up to amount and none has the opposite sign of amount.
func split(amount decimal.Decimal, keys []decimal.Decimal) []decimal.Decimal {
	shares := make([]decimal.Decimal, len(keys))
	total := decimal.Zero
	for i, k := range keys {
		shares[i] = decimal.Zero
		if k.IsPositive() {
			total = total.Add(k)
		}
	}
	if !total.IsPositive() || amount.IsZero() {
		return shares
	}

	cum := decimal.Zero
	prev := decimal.Zero
	for i, k := range keys {
		if !k.IsPositive() {
			continue
		}
		cum = cum.Add(k)
		next := amount
		if cum.LessThan(total) {
			next = amount.Mul(cum).Div(total).Round(hundredths)
		}
		shares[i] = next.Sub(prev)
		prev = next
	}
	return shares
}

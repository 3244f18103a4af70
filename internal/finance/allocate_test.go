package finance_test

import (
	"strconv"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aforo/internal/domain"
	"aforo/internal/extract"
	"aforo/internal/finance"
)

func cell(column string, v float64) domain.ExtractedField {
	spec, _ := extract.LookupColumn(column)
	raw := ""
	if v != 0 {
		raw = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return extract.BuildField(spec, raw, 1, uuid.Nil)
}

func line(qty, price, weight float64) domain.LineItem {
	return domain.LineItem{
		Description: cell(extract.ColumnDescription, 0),
		Quantity:    cell(extract.ColumnQuantity, qty),
		UnitPrice:   cell(extract.ColumnUnitPrice, price),
		Weight:      cell(extract.ColumnWeight, weight),
	}
}

func shipment(freightCost string, items ...domain.LineItem) *domain.ConsolidatedShipment {
	bl := domain.ExtractedRecord{DocumentType: domain.DocumentTypeBL}
	spec, _ := extract.LookupField(domain.DocumentTypeBL, extract.FieldFreightCost)
	bl.Fields = append(bl.Fields, extract.BuildField(spec, freightCost, 1, uuid.Nil))
	return &domain.ConsolidatedShipment{BLNumber: "B1", BL: bl, LineItems: items}
}

func f(v float64) *float64 { return &v }

func sumShares(items []domain.LineItemAllocation, pick func(domain.LineItemAllocation) float64) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(decimal.NewFromFloat(pick(it)))
	}
	return total
}

func TestAllocate_ByWeight_100_200_300(t *testing.T) {
	s := shipment("", line(1, 10, 100), line(1, 10, 200), line(1, 10, 300))

	out := finance.NewEngine(0, 0.015).Allocate(s, domain.ShipmentCosts{Freight: f(60), Insurance: f(0)})

	require.Len(t, out.Items, 3)
	assert.Equal(t, domain.AllocationBasisWeight, out.Basis)
	assert.Equal(t, 10.0, out.Items[0].FreightShare)
	assert.Equal(t, 20.0, out.Items[1].FreightShare)
	assert.Equal(t, 30.0, out.Items[2].FreightShare)
	assert.Equal(t, 90.0, out.CIF)
}

func TestAllocate_SharesSumExactly(t *testing.T) {
	s := shipment("", line(1, 1, 0), line(1, 1, 0), line(1, 1, 0))

	out := finance.NewEngine(0, 0.015).Allocate(s, domain.ShipmentCosts{Freight: f(100), Insurance: f(10)})

	assert.Equal(t, domain.AllocationBasisValue, out.Basis)
	assert.Equal(t, []float64{33.33, 33.34, 33.33}, []float64{
		out.Items[0].FreightShare, out.Items[1].FreightShare, out.Items[2].FreightShare,
	})
	assert.True(t, sumShares(out.Items, func(a domain.LineItemAllocation) float64 { return a.FreightShare }).Equal(decimal.NewFromInt(100)))
	assert.True(t, sumShares(out.Items, func(a domain.LineItemAllocation) float64 { return a.InsuranceShare }).Equal(decimal.NewFromInt(10)))
}

func TestAllocate_SmallAmountsNeverGoNegative(t *testing.T) {
	tests := []struct {
		name    string
		freight float64
		items   []domain.LineItem
	}{
		{"three cents over five equal weights", 0.03, []domain.LineItem{
			line(1, 1, 1), line(1, 1, 1), line(1, 1, 1), line(1, 1, 1), line(1, 1, 1),
		}},
		{"one cent over uneven weights", 0.01, []domain.LineItem{
			line(1, 1, 7), line(1, 1, 1), line(1, 1, 3), line(1, 1, 2),
		}},
		{"seven cents over eleven equal values", 0.07, []domain.LineItem{
			line(1, 2, 0), line(1, 2, 0), line(1, 2, 0), line(1, 2, 0), line(1, 2, 0), line(1, 2, 0),
			line(1, 2, 0), line(1, 2, 0), line(1, 2, 0), line(1, 2, 0), line(1, 2, 0),
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := shipment("", tt.items...)

			out := finance.NewEngine(0, 0.015).Allocate(s, domain.ShipmentCosts{Freight: f(tt.freight), Insurance: f(tt.freight)})

			for i, it := range out.Items {
				assert.GreaterOrEqual(t, it.FreightShare, 0.0, "freight share of item %d", i)
				assert.GreaterOrEqual(t, it.InsuranceShare, 0.0, "insurance share of item %d", i)
			}
			want := decimal.NewFromFloat(tt.freight)
			assert.True(t, sumShares(out.Items, func(a domain.LineItemAllocation) float64 { return a.FreightShare }).Equal(want))
			assert.True(t, sumShares(out.Items, func(a domain.LineItemAllocation) float64 { return a.InsuranceShare }).Equal(want))
		})
	}
}

func TestAllocate_ByValueWhenNoWeights(t *testing.T) {
	s := shipment("", line(2, 50, 0), line(1, 300, 0))

	out := finance.NewEngine(0, 0.015).Allocate(s, domain.ShipmentCosts{Freight: f(40), Insurance: f(0)})

	assert.Equal(t, domain.AllocationBasisValue, out.Basis)
	assert.Equal(t, 10.0, out.Items[0].FreightShare)
	assert.Equal(t, 30.0, out.Items[1].FreightShare)
	assert.Equal(t, 100.0, out.Items[0].Value)
	assert.Equal(t, 110.0, out.Items[0].CIFContribution)
}

func TestAllocate_EqualWhenNoWeightOrValue(t *testing.T) {
	s := shipment("", line(0, 0, 0), line(0, 0, 0))

	out := finance.NewEngine(0, 0.015).Allocate(s, domain.ShipmentCosts{Freight: f(5), Insurance: f(0)})

	assert.Equal(t, domain.AllocationBasisEqual, out.Basis)
	assert.Equal(t, 2.5, out.Items[0].FreightShare)
	assert.Equal(t, 2.5, out.Items[1].FreightShare)
}

func TestAllocate_CoverageThresholdFallsBackToValue(t *testing.T) {
	s := shipment("", line(1, 10, 5), line(1, 30, 0))

	out := finance.NewEngine(0.5, 0.015).Allocate(s, domain.ShipmentCosts{Freight: f(8), Insurance: f(0)})

	assert.Equal(t, domain.AllocationBasisValue, out.Basis)
	assert.Equal(t, 2.0, out.Items[0].FreightShare)
	assert.Equal(t, 6.0, out.Items[1].FreightShare)
}

func TestAllocate_DefaultsFromBLAndInsuranceRate(t *testing.T) {
	s := shipment("120,50", line(10, 100, 0))

	out := finance.NewEngine(0, 0.015).Allocate(s, domain.ShipmentCosts{})

	assert.Equal(t, 120.5, out.Freight)
	assert.Equal(t, 15.0, out.Insurance)
	assert.Equal(t, 1000.0, out.FOBValue)
	assert.Equal(t, 1135.5, out.CIF)
	assert.Equal(t, 1135.5, out.Items[0].CIFContribution)
}

func TestAllocate_TotalPricePreferredOverQtyTimesPrice(t *testing.T) {
	li := line(3, 10, 0)
	li.TotalPrice = cell(extract.ColumnTotalPrice, 25)
	s := shipment("", li)

	out := finance.NewEngine(0, 0).Allocate(s, domain.ShipmentCosts{})

	assert.Equal(t, 25.0, out.Items[0].Value)
}

func TestAllocate_DoesNotModifyShipment(t *testing.T) {
	s := shipment("", line(1, 10, 100), line(1, 10, 200))
	before := *s
	before.LineItems = append([]domain.LineItem(nil), s.LineItems...)

	_ = finance.NewEngine(0, 0.015).Allocate(s, domain.ShipmentCosts{Freight: f(10)})

	assert.Equal(t, before, *s)
}

func TestAllocate_NoLineItems(t *testing.T) {
	out := finance.NewEngine(0, 0.015).Allocate(shipment("50"), domain.ShipmentCosts{})

	assert.Empty(t, out.Items)
	assert.Equal(t, 50.0, out.CIF)
}

package extract

import "aforo/internal/domain"

// FieldSpec describes one schema field.
type FieldSpec struct {
	Name     string
	Kind     domain.FieldKind
	Required bool
}

// Field names shared with consolidation and finance.
const (
	FieldBLNumber         = "bl_number"
	FieldExporter         = "exporter"
	FieldExporterAddress  = "exporter_address"
	FieldConsignee        = "consignee"
	FieldConsigneeAddress = "consignee_address"
	FieldGrossWeight      = "gross_weight"
	FieldPackageCount     = "package_count"
	FieldFreightCost      = "freight_cost"
	FieldVesselVoyage     = "vessel_voyage"
	FieldContainerNumber  = "container_number"
	FieldPortOfLoading    = "port_of_loading"
	FieldPortOfDischarge  = "port_of_discharge"
	FieldDateLadenOnBoard = "date_laden_on_board"
	FieldBLReference      = "bl_reference"
	FieldInvoiceNumber    = "invoice_number"
	FieldInvoiceDate      = "invoice_date"
	FieldIncoterm         = "incoterm"
	FieldCurrency         = "currency"
	FieldTotalValue       = "total_value"
	ColumnDescription     = "description"
	ColumnQuantity        = "quantity"
	ColumnUnitPrice       = "unit_price"
	ColumnWeight          = "weight"
	ColumnTotalPrice      = "total_price"
	ColumnPartNumber      = "part_number"
)

// BLSchema is the fixed field list of a Bill of Lading record.
var BLSchema = []FieldSpec{
	{FieldBLNumber, domain.FieldKindString, true},
	{FieldExporter, domain.FieldKindString, true},
	{FieldConsignee, domain.FieldKindString, true},
	{FieldGrossWeight, domain.FieldKindNumber, true},
	{FieldPackageCount, domain.FieldKindInteger, true},
	{FieldFreightCost, domain.FieldKindNumber, false},
	{FieldVesselVoyage, domain.FieldKindString, false},
	{FieldContainerNumber, domain.FieldKindString, false},
	{FieldPortOfLoading, domain.FieldKindString, false},
	{FieldPortOfDischarge, domain.FieldKindString, false},
	{FieldDateLadenOnBoard, domain.FieldKindDate, false},
	{FieldExporterAddress, domain.FieldKindString, false},
	{FieldConsigneeAddress, domain.FieldKindString, false},
}

// InvoiceSchema is the fixed top-level field list of a commercial invoice record.
var InvoiceSchema = []FieldSpec{
	{FieldBLReference, domain.FieldKindString, true},
	{FieldInvoiceNumber, domain.FieldKindString, true},
	{FieldCurrency, domain.FieldKindString, true},
	{FieldTotalValue, domain.FieldKindNumber, true},
	{FieldInvoiceDate, domain.FieldKindDate, false},
	{FieldIncoterm, domain.FieldKindString, false},
	{FieldExporter, domain.FieldKindString, false},
	{FieldExporterAddress, domain.FieldKindString, false},
}

// LineItemColumns is the fixed column list of an invoice line item.
var LineItemColumns = []FieldSpec{
	{ColumnDescription, domain.FieldKindString, true},
	{ColumnQuantity, domain.FieldKindNumber, true},
	{ColumnUnitPrice, domain.FieldKindNumber, true},
	{ColumnWeight, domain.FieldKindNumber, false},
	{ColumnTotalPrice, domain.FieldKindNumber, false},
	{ColumnPartNumber, domain.FieldKindString, false},
}

// SchemaFor returns the top-level schema of a document type.
func SchemaFor(t domain.DocumentType) []FieldSpec {
	switch t {
	case domain.DocumentTypeBL:
		return BLSchema
	case domain.DocumentTypeInvoice:
		return InvoiceSchema
	default:
		return nil
	}
}

// HasLineItems reports whether records of type t carry a line item table.
func HasLineItems(t domain.DocumentType) bool {
	return t == domain.DocumentTypeInvoice
}

// LookupField returns the schema entry of a top-level field of type t.
func LookupField(t domain.DocumentType, name string) (FieldSpec, bool) {
	for _, spec := range SchemaFor(t) {
		if spec.Name == name {
			return spec, true
		}
	}
	return FieldSpec{}, false
}

// LookupColumn returns the schema entry of a line item column.
func LookupColumn(name string) (FieldSpec, bool) {
	for _, spec := range LineItemColumns {
		if spec.Name == name {
			return spec, true
		}
	}
	return FieldSpec{}, false
}

// CellOf returns the cell of li that holds column name.
func CellOf(li *domain.LineItem, name string) *domain.ExtractedField {
	switch name {
	case ColumnDescription:
		return &li.Description
	case ColumnQuantity:
		return &li.Quantity
	case ColumnUnitPrice:
		return &li.UnitPrice
	case ColumnWeight:
		return &li.Weight
	case ColumnTotalPrice:
		return &li.TotalPrice
	case ColumnPartNumber:
		return &li.PartNumber
	default:
		return nil
	}
}

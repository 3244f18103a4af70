package domain

import (
	"time"

	"github.com/google/uuid"
)

// Batch groups the documents of one import operation.
type Batch struct {
	ID        uuid.UUID   `db:"id" json:"id"`
	Name      string      `db:"name" json:"name"`
	Status    BatchStatus `db:"status" json:"status"`
	CreatedAt time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt time.Time   `db:"updated_at" json:"updated_at"`
}

// RawDocument is an ingested file. Only Type, TypeConfidence and TypeSource
// change after ingestion, and only through a manual type assignment.
type RawDocument struct {
	ID             uuid.UUID    `db:"id" json:"id"`
	BatchID        uuid.UUID    `db:"batch_id" json:"batch_id"`
	FileName       string       `db:"file_name" json:"file_name"`
	ContentType    string       `db:"content_type" json:"content_type"`
	StorageKey     string       `db:"storage_key" json:"storage_key"`
	Size           int64        `db:"size" json:"size"`
	Type           DocumentType `db:"document_type" json:"document_type"`
	TypeConfidence float64      `db:"type_confidence" json:"type_confidence"`
	TypeSource     TypeSource   `db:"type_source" json:"type_source"`
	PageCount      int          `db:"page_count" json:"page_count"`
	Sequence       int          `db:"sequence" json:"sequence"`
	CreatedAt      time.Time    `db:"created_at" json:"created_at"`
}

// ExtractedField is one schema field as read from a document.
type ExtractedField struct {
	Name             string    `json:"name"`
	Kind             FieldKind `json:"kind"`
	Raw              string    `json:"raw"`
	Value            string    `json:"value"`
	Number           *float64  `json:"number,omitempty"`
	Confidence       float64   `json:"confidence"`
	Required         bool      `json:"required"`
	SourceDocumentID uuid.UUID `json:"source_document_id"`
	HumanVerified    bool      `json:"human_verified"`
	ParseError       string    `json:"parse_error,omitempty"`
}

// IsEmpty reports whether the model returned nothing for the field.
func (f ExtractedField) IsEmpty() bool {
	return f.Raw == "" && f.Value == ""
}

// Num returns the parsed numeric value, or 0 when absent.
func (f ExtractedField) Num() float64 {
	if f.Number == nil {
		return 0
	}
	return *f.Number
}

// LineItem is one ordered row of an invoice line-item table.
type LineItem struct {
	Index       int            `json:"index"`
	Description ExtractedField `json:"description"`
	Quantity    ExtractedField `json:"quantity"`
	UnitPrice   ExtractedField `json:"unit_price"`
	Weight      ExtractedField `json:"weight"`
	TotalPrice  ExtractedField `json:"total_price"`
	PartNumber  ExtractedField `json:"part_number"`
}

// Cells returns pointers to every cell of the row in column order.
func (li *LineItem) Cells() []*ExtractedField {
	return []*ExtractedField{&li.Description, &li.Quantity, &li.UnitPrice, &li.Weight, &li.TotalPrice, &li.PartNumber}
}

// ItemValue is total_price when present, quantity times unit_price otherwise.
func (li LineItem) ItemValue() float64 {
	if li.TotalPrice.Number != nil && *li.TotalPrice.Number > 0 {
		return *li.TotalPrice.Number
	}
	return li.Quantity.Num() * li.UnitPrice.Num()
}

// ExtractedRecord is the structured result of extracting one document.
type ExtractedRecord struct {
	ID           uuid.UUID        `json:"id"`
	BatchID      uuid.UUID        `json:"batch_id"`
	DocumentID   uuid.UUID        `json:"document_id"`
	DocumentType DocumentType     `json:"document_type"`
	Fields       []ExtractedField `json:"fields"`
	LineItems    []LineItem       `json:"line_items"`
	State        RecordState      `json:"state"`
	Version      int              `json:"version"`
	RejectReason string           `json:"reject_reason,omitempty"`
	ErrorKind    ErrorKind        `json:"error_kind,omitempty"`
	ErrorMessage string           `json:"error_message,omitempty"`
	ModelUsed    string           `json:"model_used"`
	ExtractedAt  time.Time        `json:"extracted_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// Field returns the named top-level field, or nil when absent.
func (r *ExtractedRecord) Field(name string) *ExtractedField {
	for i := range r.Fields {
		if r.Fields[i].Name == name {
			return &r.Fields[i]
		}
	}
	return nil
}

// FieldValue returns the normalized value of the named field, or "".
func (r *ExtractedRecord) FieldValue(name string) string {
	if f := r.Field(name); f != nil {
		return f.Value
	}
	return ""
}

// FieldNumber returns the parsed number of the named field, or 0.
func (r *ExtractedRecord) FieldNumber(name string) float64 {
	if f := r.Field(name); f != nil {
		return f.Num()
	}
	return 0
}

// Clone returns a deep copy so transitions never share slices with the prior value.
func (r ExtractedRecord) Clone() ExtractedRecord {
	out := r
	out.Fields = make([]ExtractedField, len(r.Fields))
	for i, f := range r.Fields {
		out.Fields[i] = f.clone()
	}
	out.LineItems = make([]LineItem, len(r.LineItems))
	for i, li := range r.LineItems {
		cp := li
		for j, c := range cp.Cells() {
			*c = li.Cells()[j].clone()
		}
		out.LineItems[i] = cp
	}
	return out
}

func (f ExtractedField) clone() ExtractedField {
	if f.Number != nil {
		n := *f.Number
		f.Number = &n
	}
	return f
}

// Party is a named trade participant on a shipment.
type Party struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// Warning is a non-fatal pipeline finding surfaced in the report.
type Warning struct {
	Kind       ErrorKind `json:"kind"`
	DocumentID uuid.UUID `json:"document_id,omitempty"`
	BLNumber   string    `json:"bl_number,omitempty"`
	Message    string    `json:"message"`
}

// ConsolidatedShipment merges one BL with every invoice that references it.
type ConsolidatedShipment struct {
	BLNumber            string            `json:"bl_number"`
	BL                  ExtractedRecord   `json:"bl"`
	Invoices            []ExtractedRecord `json:"invoices"`
	LineItems           []LineItem        `json:"line_items"`
	InvoiceTotal        float64           `json:"invoice_total"`
	Currency            string            `json:"currency"`
	DeclaredGrossWeight float64           `json:"declared_gross_weight"`
	LineItemWeight      float64           `json:"line_item_weight"`
	WeightMismatch      bool              `json:"weight_mismatch"`
	WeightMismatchRatio float64           `json:"weight_mismatch_ratio"`
	Exporter            Party             `json:"exporter"`
	Consignee           Party             `json:"consignee"`
}

// LineItemAllocation is the cost breakdown of one line item of a shipment.
type LineItemAllocation struct {
	ShipmentBLNumber string          `json:"shipment_bl_number"`
	Index            int             `json:"index"`
	SourceDocumentID uuid.UUID       `json:"source_document_id"`
	LineIndex        int             `json:"line_index"`
	Description      string          `json:"description"`
	PartNumber       string          `json:"part_number,omitempty"`
	Quantity         float64         `json:"quantity"`
	UnitPrice        float64         `json:"unit_price"`
	Weight           float64         `json:"weight"`
	Value            float64         `json:"value"`
	FreightShare     float64         `json:"freight_share"`
	InsuranceShare   float64         `json:"insurance_share"`
	CIFContribution  float64         `json:"cif_contribution"`
	Basis            AllocationBasis `json:"basis"`
}

// ShipmentCosts is the caller-supplied freight and insurance of a shipment.
// Nil means "use the default".
type ShipmentCosts struct {
	Freight   *float64 `json:"freight,omitempty"`
	Insurance *float64 `json:"insurance,omitempty"`
}

// EditCommand is a human review command against one record.
type EditCommand struct {
	Action          EditAction        `json:"action" binding:"required"`
	ExpectedVersion int               `json:"expected_version"`
	Fields          map[string]string `json:"fields,omitempty"`
	Reason          string            `json:"reason,omitempty"`
}

// BatchStats summarizes a batch for the review dashboard.
type BatchStats struct {
	BatchID            uuid.UUID           `json:"batch_id"`
	Status             BatchStatus         `json:"status"`
	Documents          int                 `json:"documents"`
	UnknownType        int                 `json:"unknown_type"`
	ByState            map[RecordState]int `json:"by_state"`
	ByBand             map[QualityBand]int `json:"by_band"`
	ReadyToConsolidate bool                `json:"ready_to_consolidate"`
}

package domain

// FileType represents the allowed file types for ingestion.
type FileType string

const (
	FileTypePDF FileType = "pdf"
	FileTypeJPG FileType = "jpg"
	FileTypePNG FileType = "png"
)

// AllowedFileTypes maps FileType to its MIME content type.
var AllowedFileTypes = map[FileType]string{
	FileTypePDF: "application/pdf",
	FileTypeJPG: "image/jpeg",
	FileTypePNG: "image/png",
}

// AllowedContentTypes maps MIME content types back to FileType.
var AllowedContentTypes = map[string]FileType{
	"application/pdf": FileTypePDF,
	"image/jpeg":      FileTypeJPG,
	"image/png":       FileTypePNG,
}

// AllowedExtensions maps file extensions (without dot) to FileType.
var AllowedExtensions = map[string]FileType{
	"pdf":  FileTypePDF,
	"jpg":  FileTypeJPG,
	"jpeg": FileTypeJPG,
	"png":  FileTypePNG,
}

// DocumentType is the classification label of an ingested document.
type DocumentType string

const (
	DocumentTypeBL      DocumentType = "bl"
	DocumentTypeInvoice DocumentType = "invoice"
	DocumentTypeUnknown DocumentType = "unknown"
)

// ValidDocumentTypes lists the types a human may assign manually.
var ValidDocumentTypes = map[DocumentType]bool{
	DocumentTypeBL:      true,
	DocumentTypeInvoice: true,
}

// TypeSource records who decided a document's type.
type TypeSource string

const (
	TypeSourceClassifier TypeSource = "classifier"
	TypeSourceManual     TypeSource = "manual"
)

// FieldKind is the value type of an extracted field.
type FieldKind string

const (
	FieldKindString  FieldKind = "string"
	FieldKindNumber  FieldKind = "number"
	FieldKindInteger FieldKind = "integer"
	FieldKindDate    FieldKind = "date"
)

// IsNumeric reports whether values of this kind carry a parsed number.
func (k FieldKind) IsNumeric() bool {
	return k == FieldKindNumber || k == FieldKindInteger
}

// QualityBand is the tri-state quality derived from field confidences.
type QualityBand string

const (
	BandGreen  QualityBand = "green"
	BandYellow QualityBand = "yellow"
	BandRed    QualityBand = "red"
)

// Rank orders bands so that a higher rank is a better band.
func (b QualityBand) Rank() int {
	switch b {
	case BandGreen:
		return 2
	case BandYellow:
		return 1
	default:
		return 0
	}
}

// RecordState is the review lifecycle state of an extracted record.
type RecordState string

const (
	RecordStateExtracted    RecordState = "extracted"
	RecordStateUnderReview  RecordState = "under_review"
	RecordStateValidated    RecordState = "validated"
	RecordStateConsolidated RecordState = "consolidated"
	RecordStateRejected     RecordState = "rejected"
)

// IsTerminal reports whether a record in this state no longer blocks consolidation.
func (s RecordState) IsTerminal() bool {
	switch s {
	case RecordStateValidated, RecordStateConsolidated, RecordStateRejected:
		return true
	default:
		return false
	}
}

// BatchStatus represents the lifecycle of a batch.
type BatchStatus string

const (
	BatchStatusOpen         BatchStatus = "open"
	BatchStatusProcessing   BatchStatus = "processing"
	BatchStatusReady        BatchStatus = "ready"
	BatchStatusConsolidated BatchStatus = "consolidated"
	BatchStatusCancelled    BatchStatus = "cancelled"
)

// AllocationBasis is the proportionality key used to distribute freight and insurance.
type AllocationBasis string

const (
	AllocationBasisWeight AllocationBasis = "weight"
	AllocationBasisValue  AllocationBasis = "value"
	AllocationBasisEqual  AllocationBasis = "equal"
)

// EditAction is the kind of human review command.
type EditAction string

const (
	EditActionCorrect EditAction = "correct"
	EditActionConfirm EditAction = "confirm"
	EditActionReject  EditAction = "reject"
)

// ValidEditActions lists the accepted review actions.
var ValidEditActions = map[EditAction]bool{
	EditActionCorrect: true,
	EditActionConfirm: true,
	EditActionReject:  true,
}

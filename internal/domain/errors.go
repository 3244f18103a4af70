package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrNotFound            = errors.New("resource not found")
	ErrBatchNotFound       = errors.New("batch not found")
	ErrDocumentNotFound    = errors.New("document not found")
	ErrRecordNotFound      = errors.New("record not found")
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrFileTooLarge        = errors.New("file exceeds maximum allowed size")
	ErrUploadFailed        = errors.New("file upload to storage failed")
	ErrEmptyBatch          = errors.New("batch has no documents")
	ErrBatchNotReady       = errors.New("batch has documents that are not in a terminal state")
	ErrBatchClosed         = errors.New("batch no longer accepts changes")
	ErrBatchBusy           = errors.New("batch is already being processed")
	ErrStaleEdit           = errors.New("record changed since the edit was opened")
	ErrInvalidTransition   = errors.New("transition not allowed from the current state")
	ErrRejectReasonMissing = errors.New("reject requires a non-empty reason")
	ErrUnknownField        = errors.New("field is not part of the record schema")
	ErrInvalidDocumentType = errors.New("invalid document type")
	ErrTypeAlreadyAssigned = errors.New("document type is already known")
	ErrInvalidEdit         = errors.New("edit command is malformed")
)

// ErrorKind classifies the user-visible pipeline problems.
type ErrorKind string

const (
	KindClassificationLowConfidence ErrorKind = "ClassificationLowConfidence"
	KindExtractionParseError        ErrorKind = "ExtractionParseError"
	KindExtractionTransportError    ErrorKind = "ExtractionTransportError"
	KindConsolidationMismatch       ErrorKind = "ConsolidationMismatch"
	KindWeightToleranceExceeded     ErrorKind = "WeightToleranceExceeded"
	KindStaleEditConflict           ErrorKind = "StaleEditConflict"
	KindTranslationUnmapped         ErrorKind = "TranslationUnmapped"
	KindShipmentWithoutInvoices     ErrorKind = "ShipmentWithoutInvoices"
	KindRecordRejected              ErrorKind = "RecordRejected"
)

// PipelineError carries a taxonomy kind and the document it concerns.
type PipelineError struct {
	Kind       ErrorKind
	DocumentID uuid.UUID
	Message    string
	Err        error
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// NewPipelineError creates a PipelineError.
func NewPipelineError(kind ErrorKind, docID uuid.UUID, msg string, err error) *PipelineError {
	return &PipelineError{Kind: kind, DocumentID: docID, Message: msg, Err: err}
}

// KindOf returns the taxonomy kind of err, or "" when err is not a PipelineError.
func KindOf(err error) ErrorKind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	if errors.Is(err, ErrStaleEdit) {
		return KindStaleEditConflict
	}
	return ""
}

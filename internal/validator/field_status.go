package validator

// FieldValidationStatus is the per-field state shown in the review UI.
type FieldValidationStatus string

const (
	FieldStatusValid   FieldValidationStatus = "valid"
	FieldStatusUnsure  FieldValidationStatus = "unsure"
	FieldStatusInvalid FieldValidationStatus = "invalid"
)

// FieldStatus represents the computed validation state for a single field path.
type FieldStatus struct {
	Status   FieldValidationStatus `json:"status"`
	Messages []string              `json:"messages"`
}

// ComputeFieldStatuses groups the flags of ev by field path. Parse errors and
// missing values make a field invalid; any other flag makes it unsure.
func ComputeFieldStatuses(ev Evaluation) map[string]*FieldStatus {
	statuses := make(map[string]*FieldStatus)
	for _, fl := range ev.Flags {
		fs, ok := statuses[fl.Path]
		if !ok {
			fs = &FieldStatus{Status: FieldStatusValid, Messages: []string{}}
			statuses[fl.Path] = fs
		}
		if fl.Code == FlagParseError || fl.Code == FlagMissing {
			fs.Status = FieldStatusInvalid
		} else if fs.Status != FieldStatusInvalid {
			fs.Status = FieldStatusUnsure
		}
		fs.Messages = append(fs.Messages, fl.Message)
	}
	return statuses
}

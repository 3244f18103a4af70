// Package review holds the record lifecycle: extracted, under_review,
// validated, consolidated, with rejected as the terminal failure state.
package review

import (
	"fmt"
	"strings"
	"time"

	"aforo/internal/domain"
	"aforo/internal/extract"
)

// CommandKind names a lifecycle transition.
type CommandKind string

const (
	// CommandSettle routes a freshly extracted record by its quality band.
	CommandSettle CommandKind = "settle"
	// CommandFail rejects a record whose extraction permanently failed.
	CommandFail CommandKind = "fail"
	// CommandEdit applies a human correct / confirm / reject.
	CommandEdit        CommandKind = "edit"
	CommandConsolidate CommandKind = "consolidate"
)

// Command is one transition request against a record at ExpectedVersion.
type Command struct {
	Kind            CommandKind
	ExpectedVersion int
	Band            domain.QualityBand
	Cause           string
	Edit            domain.EditCommand
	At              time.Time
}

func Settle(version int, band domain.QualityBand) Command {
	return Command{Kind: CommandSettle, ExpectedVersion: version, Band: band, At: time.Now().UTC()}
}

func Fail(version int, cause error) Command {
	msg := "extraction failed"
	if cause != nil {
		msg = cause.Error()
	}
	return Command{Kind: CommandFail, ExpectedVersion: version, Cause: msg, At: time.Now().UTC()}
}

func Edit(cmd domain.EditCommand) Command {
	return Command{Kind: CommandEdit, ExpectedVersion: cmd.ExpectedVersion, Edit: cmd, At: time.Now().UTC()}
}

func Consolidate(version int) Command {
	return Command{Kind: CommandConsolidate, ExpectedVersion: version, At: time.Now().UTC()}
}

// Apply returns the record that results from cmd. prior is never modified;
// the result carries Version+1.
func Apply(prior domain.ExtractedRecord, cmd Command) (domain.ExtractedRecord, error) {
	if cmd.ExpectedVersion != prior.Version {
		return prior, fmt.Errorf("record %s at version %d, edit expected %d: %w",
			prior.ID, prior.Version, cmd.ExpectedVersion, domain.ErrStaleEdit)
	}

	next := prior.Clone()
	var err error
	switch cmd.Kind {
	case CommandSettle:
		err = settle(&next, cmd.Band)
	case CommandFail:
		err = fail(&next, cmd.Cause)
	case CommandEdit:
		err = edit(&next, cmd.Edit)
	case CommandConsolidate:
		err = requireState(&next, domain.RecordStateValidated, cmd.Kind)
		next.State = domain.RecordStateConsolidated
	default:
		err = fmt.Errorf("unknown command %q: %w", cmd.Kind, domain.ErrInvalidTransition)
	}
	if err != nil {
		return prior, err
	}

	next.Version = prior.Version + 1
	next.UpdatedAt = cmd.At
	if next.UpdatedAt.IsZero() {
		next.UpdatedAt = time.Now().UTC()
	}
	return next, nil
}

func requireState(rec *domain.ExtractedRecord, want domain.RecordState, kind CommandKind) error {
	if rec.State != want {
		return fmt.Errorf("%s on %s record %s: %w", kind, rec.State, rec.ID, domain.ErrInvalidTransition)
	}
	return nil
}

func settle(rec *domain.ExtractedRecord, band domain.QualityBand) error {
	if err := requireState(rec, domain.RecordStateExtracted, CommandSettle); err != nil {
		return err
	}
	if band == domain.BandGreen && rec.ErrorKind == "" {
		rec.State = domain.RecordStateValidated
	} else {
		rec.State = domain.RecordStateUnderReview
	}
	return nil
}

func fail(rec *domain.ExtractedRecord, cause string) error {
	if err := requireState(rec, domain.RecordStateExtracted, CommandFail); err != nil {
		return err
	}
	rec.State = domain.RecordStateRejected
	rec.ErrorKind = domain.KindExtractionTransportError
	rec.ErrorMessage = cause
	rec.RejectReason = cause
	return nil
}

func edit(rec *domain.ExtractedRecord, cmd domain.EditCommand) error {
	if !domain.ValidEditActions[cmd.Action] {
		return fmt.Errorf("action %q: %w", cmd.Action, domain.ErrInvalidEdit)
	}
	if err := requireState(rec, domain.RecordStateUnderReview, CommandEdit); err != nil {
		return err
	}

	switch cmd.Action {
	case domain.EditActionReject:
		reason := strings.TrimSpace(cmd.Reason)
		if reason == "" {
			return domain.ErrRejectReasonMissing
		}
		rec.State = domain.RecordStateRejected
		rec.RejectReason = reason
		if rec.ErrorKind == "" {
			rec.ErrorKind = domain.KindRecordRejected
		}
		return nil

	case domain.EditActionCorrect:
		if len(cmd.Fields) == 0 {
			return fmt.Errorf("correct without fields: %w", domain.ErrInvalidEdit)
		}
	}

	for path, value := range cmd.Fields {
		if err := correctField(rec, path, value); err != nil {
			return err
		}
	}
	rec.State = domain.RecordStateValidated
	return nil
}

// correctField overwrites one field with a human value.
func correctField(rec *domain.ExtractedRecord, path, value string) error {
	target, spec, err := resolve(rec, path)
	if err != nil {
		return err
	}

	corrected := domain.ExtractedField{
		Name:             target.Name,
		Kind:             spec.Kind,
		Required:         spec.Required,
		SourceDocumentID: target.SourceDocumentID,
		Confidence:       1.0,
		HumanVerified:    true,
	}
	if corrected.Name == "" {
		corrected.Name = spec.Name
		corrected.SourceDocumentID = rec.DocumentID
	}

	if extract.IsEmptyValue(value) {
		if spec.Required {
			return fmt.Errorf("%s is required: %w", path, domain.ErrInvalidEdit)
		}
		*target = corrected
		return nil
	}

	corrected.Raw = strings.TrimSpace(value)
	v, n, err := extract.ParseValue(spec.Kind, corrected.Raw)
	if err != nil {
		return fmt.Errorf("%s: %q is not a valid %s (%v): %w", path, value, spec.Kind, err, domain.ErrInvalidEdit)
	}
	corrected.Value = v
	corrected.Number = n
	*target = corrected
	return nil
}

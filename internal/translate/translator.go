package translate

import (
	"fmt"

	"aforo/internal/domain"
)

// Match says how a description was resolved against the vocabulary.
type Match string

const (
	MatchNone   Match = "none"
	MatchExact  Match = "exact"
	MatchPhrase Match = "phrase"
)

// Translation is the controlled description of one line item. Only an exact
// match is Mapped. A phrase match keeps the original description and the
// pending code, and carries the vocabulary entry as a suggestion.
type Translation struct {
	Original            string `json:"original"`
	Spanish             string `json:"spanish"`
	TariffCode          string `json:"tariff_code"`
	Mapped              bool   `json:"mapped"`
	Match               Match  `json:"match"`
	Suggestion          string `json:"suggestion,omitempty"`
	SuggestedTariffCode string `json:"suggested_tariff_code,omitempty"`
}

// Translator applies a Vocabulary to descriptions.
type Translator struct {
	vocab *Vocabulary
}

func NewTranslator(vocab *Vocabulary) *Translator {
	return &Translator{vocab: vocab}
}

// Translate maps description. Anything short of an exact match passes
// through unchanged with the pending tariff code.
func (t *Translator) Translate(description string) Translation {
	if e, ok := t.vocab.Lookup(description); ok {
		return Translation{Original: description, Spanish: e.Term, TariffCode: e.TariffCode, Mapped: true, Match: MatchExact}
	}
	tr := Translation{Original: description, Spanish: description, TariffCode: PendingTariffCode, Match: MatchNone}
	if e, ok := t.vocab.Suggest(description); ok {
		tr.Match = MatchPhrase
		tr.Suggestion = e.Term
		tr.SuggestedTariffCode = e.TariffCode
	}
	return tr
}

// TranslateItems translates every allocation of a shipment in order and
// returns a TranslationUnmapped warning per description without an exact
// match.
func (t *Translator) TranslateItems(items []domain.LineItemAllocation) ([]Translation, []domain.Warning) {
	out := make([]Translation, len(items))
	var warnings []domain.Warning
	for i, it := range items {
		out[i] = t.Translate(it.Description)
		if out[i].Mapped {
			continue
		}
		msg := fmt.Sprintf("no vocabulary term for %q (line %d)", it.Description, it.LineIndex+1)
		if out[i].Match == MatchPhrase {
			msg = fmt.Sprintf("%q (line %d) only partly matches %s (%s); confirm before use",
				it.Description, it.LineIndex+1, out[i].Suggestion, out[i].SuggestedTariffCode)
		}
		warnings = append(warnings, domain.Warning{
			Kind:       domain.KindTranslationUnmapped,
			DocumentID: it.SourceDocumentID,
			BLNumber:   it.ShipmentBLNumber,
			Message:    msg,
		})
	}
	return out, warnings
}

// TranslateShipment translates the merged line items of s directly, so it can
// run alongside the cost allocation of the same shipment.
func (t *Translator) TranslateShipment(s *domain.ConsolidatedShipment) ([]Translation, []domain.Warning) {
	items := make([]domain.LineItemAllocation, len(s.LineItems))
	for i := range s.LineItems {
		li := &s.LineItems[i]
		items[i] = domain.LineItemAllocation{
			ShipmentBLNumber: s.BLNumber,
			Index:            i,
			SourceDocumentID: li.Description.SourceDocumentID,
			LineIndex:        li.Index,
			Description:      li.Description.Value,
		}
	}
	return t.TranslateItems(items)
}

package translate_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aforo/internal/domain"
	"aforo/internal/translate"
)

func TestLoadVocabulary_Embedded(t *testing.T) {
	vocab, err := translate.LoadVocabulary("")

	require.NoError(t, err)
	assert.NotEmpty(t, vocab.Entries())

	e, ok := vocab.Lookup("Blusa para Dama")
	require.True(t, ok)
	assert.Equal(t, "6206.40.00.00.00", e.TariffCode)
}

func TestTranslate_ExactAndPhraseMatching(t *testing.T) {
	vocab := translate.NewVocabulary([]translate.Entry{
		{Term: "FILTRO", TariffCode: "8421.00", Aliases: []string{"filter"}},
		{Term: "FILTRO DE ACEITE", TariffCode: "8421.23", Aliases: []string{"oil filter"}},
		{Term: "PASTILLAS DE FRENO", TariffCode: "8708.30", Aliases: []string{"brake pads"}},
	})
	tr := translate.NewTranslator(vocab)

	tests := []struct {
		in         string
		spanish    string
		match      translate.Match
		suggestion string
	}{
		{"Brake Pads", "PASTILLAS DE FRENO", translate.MatchExact, ""},
		{"  BRAKE-PADS ", "PASTILLAS DE FRENO", translate.MatchExact, ""},
		{"pastillas de freno", "PASTILLAS DE FRENO", translate.MatchExact, ""},
		{"Front brake pads, ceramic (set of 4)", "Front brake pads, ceramic (set of 4)", translate.MatchPhrase, "PASTILLAS DE FRENO"},
		{"Engine OIL FILTER 3/4\"", "Engine OIL FILTER 3/4\"", translate.MatchPhrase, "FILTRO DE ACEITE"},
		{"Oil filter wrench", "Oil filter wrench", translate.MatchPhrase, "FILTRO DE ACEITE"},
		{"filters", "filters", translate.MatchNone, ""},
		{"Brakepads", "Brakepads", translate.MatchNone, ""},
		{"", "", translate.MatchNone, ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := tr.Translate(tt.in)
			assert.Equal(t, tt.spanish, got.Spanish)
			assert.Equal(t, tt.match, got.Match)
			assert.Equal(t, tt.match == translate.MatchExact, got.Mapped)
			assert.Equal(t, tt.suggestion, got.Suggestion)
			assert.Equal(t, tt.in, got.Original)
			if !got.Mapped {
				assert.Equal(t, translate.PendingTariffCode, got.TariffCode)
			}
		})
	}
}

func TestTranslate_EmbeddedVocabularyNeverGuesses(t *testing.T) {
	vocab, err := translate.LoadVocabulary("")
	require.NoError(t, err)
	tr := translate.NewTranslator(vocab)

	for _, in := range []string{"Tire pressure gauge", "Brake pad wear sensor", "Oil filter wrench"} {
		t.Run(in, func(t *testing.T) {
			got := tr.Translate(in)
			assert.False(t, got.Mapped)
			assert.Equal(t, translate.MatchPhrase, got.Match)
			assert.Equal(t, in, got.Spanish)
			assert.Equal(t, translate.PendingTariffCode, got.TariffCode)
			assert.NotEmpty(t, got.Suggestion)
		})
	}

	_, warnings := tr.TranslateItems([]domain.LineItemAllocation{{ShipmentBLNumber: "B1", Description: "Tire pressure gauge"}})
	require.Len(t, warnings, 1)
	assert.Equal(t, domain.KindTranslationUnmapped, warnings[0].Kind)
	assert.Contains(t, warnings[0].Message, "confirm before use")
}

func TestTranslate_AccentsFolded(t *testing.T) {
	vocab := translate.NewVocabulary([]translate.Entry{{Term: "CAMIÓN DE JUGUETE", Aliases: []string{"toy truck"}}})

	got := translate.NewTranslator(vocab).Translate("camion de juguete")

	assert.True(t, got.Mapped)
	assert.Equal(t, translate.PendingTariffCode, got.TariffCode)
}

func TestLoadVocabulary_FileOverridesEmbedded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocab.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
entries:
  - term: PASTILLA DE FRENO CERAMICA
    tariff_code: "8708.30.10.00.00"
    aliases: [brake pads]
`), 0o600))

	vocab, err := translate.LoadVocabulary(path)
	require.NoError(t, err)

	e, ok := vocab.Lookup("brake pads")
	require.True(t, ok)
	assert.Equal(t, "PASTILLA DE FRENO CERAMICA", e.Term)

	_, ok = vocab.Lookup("oil filter")
	assert.True(t, ok)
}

func TestLoadVocabulary_Errors(t *testing.T) {
	_, err := translate.LoadVocabulary(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("entries:\n  - aliases: [x]\n"), 0o600))
	_, err = translate.LoadVocabulary(path)
	assert.ErrorContains(t, err, "no term")
}

func TestTranslateItems_WarnsOnUnmapped(t *testing.T) {
	tr := translate.NewTranslator(translate.NewVocabulary([]translate.Entry{{Term: "BUJIA", Aliases: []string{"spark plug"}}}))
	docID := uuid.New()

	out, warnings := tr.TranslateItems([]domain.LineItemAllocation{
		{ShipmentBLNumber: "B1", Description: "Spark plug"},
		{ShipmentBLNumber: "B1", Description: "Spark plug NGK", LineIndex: 1},
		{ShipmentBLNumber: "B1", Description: "Widget", SourceDocumentID: docID, LineIndex: 3},
	})

	require.Len(t, out, 3)
	assert.Equal(t, "BUJIA", out[0].Spanish)
	assert.Equal(t, "Spark plug NGK", out[1].Spanish)
	assert.Equal(t, "BUJIA", out[1].Suggestion)
	assert.Equal(t, "Widget", out[2].Spanish)
	require.Len(t, warnings, 2)
	assert.Contains(t, warnings[0].Message, "line 2")
	assert.Contains(t, warnings[0].Message, "BUJIA")
	assert.Equal(t, domain.KindTranslationUnmapped, warnings[1].Kind)
	assert.Equal(t, docID, warnings[1].DocumentID)
	assert.Contains(t, warnings[1].Message, "line 4")
}

func TestTranslateShipment_UsesLineItemDescriptions(t *testing.T) {
	vocab := translate.NewVocabulary([]translate.Entry{{Term: "PASTILLAS DE FRENO", TariffCode: "8708.30", Aliases: []string{"brake pads"}}})
	tr := translate.NewTranslator(vocab)
	docID := uuid.New()
	s := &domain.ConsolidatedShipment{
		BLNumber: "MSCU1",
		LineItems: []domain.LineItem{
			{Index: 0, Description: domain.ExtractedField{Value: "Brake Pads", SourceDocumentID: docID}},
			{Index: 4, Description: domain.ExtractedField{Value: "widget", SourceDocumentID: docID}},
		},
	}

	out, warnings := tr.TranslateShipment(s)

	require.Len(t, out, 2)
	assert.Equal(t, "PASTILLAS DE FRENO", out[0].Spanish)
	assert.False(t, out[1].Mapped)
	require.Len(t, warnings, 1)
	assert.Equal(t, "MSCU1", warnings[0].BLNumber)
	assert.Contains(t, warnings[0].Message, "line 5")
}

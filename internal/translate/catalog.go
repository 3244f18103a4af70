package translate

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"aforo/internal/textnorm"
)

// CatalogColumns names the header cells of a tariff catalog sheet.
// Aliases is optional; its cells hold a ';' or ',' separated list.
type CatalogColumns struct {
	Sheet   string
	Term    string
	Tariff  string
	Aliases string
}

// DefaultCatalogColumns matches the broker's catalog export.
var DefaultCatalogColumns = CatalogColumns{
	Term:    "descripcion",
	Tariff:  "posicion arancelaria",
	Aliases: "alias",
}

// ReadCatalog reads vocabulary entries from an xlsx catalog. The first row is
// the header. Rows without a term or with a pending tariff code are skipped
// and a repeated term keeps its first row.
func ReadCatalog(r io.Reader, cols CatalogColumns) ([]Entry, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheet := cols.Sheet
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q is empty", sheet)
	}

	termCol := headerIndex(rows[0], cols.Term)
	tariffCol := headerIndex(rows[0], cols.Tariff)
	if termCol < 0 || tariffCol < 0 {
		return nil, fmt.Errorf("sheet %q: columns %q and %q are required", sheet, cols.Term, cols.Tariff)
	}
	aliasCol := -1
	if cols.Aliases != "" {
		aliasCol = headerIndex(rows[0], cols.Aliases)
	}

	seen := make(map[string]bool)
	var entries []Entry
	skipped := 0
	for _, row := range rows[1:] {
		term := strings.Join(strings.Fields(cellVal(row, termCol)), " ")
		code := strings.TrimSpace(cellVal(row, tariffCol))
		if term == "" || code == "" || strings.EqualFold(code, PendingTariffCode) {
			skipped++
			continue
		}
		key := textnorm.Fold(term)
		if seen[key] {
			skipped++
			continue
		}
		seen[key] = true

		e := Entry{Term: strings.ToUpper(term), TariffCode: code}
		if aliasCol >= 0 {
			e.Aliases = splitAliases(cellVal(row, aliasCol))
		}
		entries = append(entries, e)
	}

	zap.L().Info("translate.ReadCatalog: catalog read",
		zap.String("sheet", sheet),
		zap.Int("entries", len(entries)),
		zap.Int("skipped", skipped),
	)
	return entries, nil
}

// WriteVocabulary writes entries in the format LoadVocabulary reads.
func WriteVocabulary(w io.Writer, entries []Entry) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(vocabularyFile{Entries: entries}); err != nil {
		return fmt.Errorf("encode vocabulary: %w", err)
	}
	return enc.Close()
}

func headerIndex(header []string, name string) int {
	want := textnorm.Fold(name)
	for i, h := range header {
		if textnorm.Fold(h) == want {
			return i
		}
	}
	return -1
}

func cellVal(row []string, idx int) string {
	if idx < len(row) {
		return row[idx]
	}
	return ""
}

func splitAliases(cell string) []string {
	parts := strings.FieldsFunc(cell, func(r rune) bool { return r == ';' || r == ',' })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

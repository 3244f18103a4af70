// Package translate maps English line item descriptions to the controlled
// Spanish vocabulary used on the customs declaration.
package translate

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"aforo/internal/textnorm"
)

// PendingTariffCode marks a description with no known tariff code.
const PendingTariffCode = "PENDIENTE"

//go:embed default_vocabulary.yaml
var defaultVocabulary []byte

// Entry is one controlled term and the descriptions that map to it.
type Entry struct {
	Term       string   `yaml:"term" json:"term"`
	TariffCode string   `yaml:"tariff_code" json:"tariff_code"`
	Aliases    []string `yaml:"aliases" json:"aliases"`
}

type vocabularyFile struct {
	Entries []Entry `yaml:"entries"`
}

type alias struct {
	folded string
	entry  *Entry
}

// Vocabulary is an immutable alias index. Safe for concurrent use.
type Vocabulary struct {
	entries []Entry
	exact   map[string]*Entry
	// longest alias first
	phrases []alias
}

// LoadVocabulary builds the embedded vocabulary and, when path is set, merges
// the file at path over it. Aliases from the file win over embedded ones.
func LoadVocabulary(path string) (*Vocabulary, error) {
	base, err := parseVocabulary(defaultVocabulary)
	if err != nil {
		return nil, fmt.Errorf("parsing embedded vocabulary: %w", err)
	}
	if path == "" {
		return NewVocabulary(base), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading vocabulary %s: %w", path, err)
	}
	extra, err := parseVocabulary(data)
	if err != nil {
		return nil, fmt.Errorf("parsing vocabulary %s: %w", path, err)
	}
	zap.L().Info("translate.LoadVocabulary: merged vocabulary file",
		zap.String("path", path),
		zap.Int("entries", len(extra)),
	)
	return NewVocabulary(append(extra, base...)), nil
}

func parseVocabulary(data []byte) ([]Entry, error) {
	var f vocabularyFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	for i, e := range f.Entries {
		if strings.TrimSpace(e.Term) == "" {
			return nil, fmt.Errorf("entry %d has no term", i)
		}
	}
	return f.Entries, nil
}

// NewVocabulary indexes entries. When two entries share an alias, the
// earlier entry keeps it. Every term is also an alias of itself.
func NewVocabulary(entries []Entry) *Vocabulary {
	v := &Vocabulary{
		entries: make([]Entry, len(entries)),
		exact:   make(map[string]*Entry),
	}
	copy(v.entries, entries)

	for i := range v.entries {
		e := &v.entries[i]
		if e.TariffCode == "" {
			e.TariffCode = PendingTariffCode
		}
		for _, a := range append([]string{e.Term}, e.Aliases...) {
			key := textnorm.Fold(a)
			if key == "" {
				continue
			}
			if _, taken := v.exact[key]; taken {
				continue
			}
			v.exact[key] = e
			v.phrases = append(v.phrases, alias{folded: key, entry: e})
		}
	}
	sort.SliceStable(v.phrases, func(i, j int) bool {
		return len(v.phrases[i].folded) > len(v.phrases[j].folded)
	})
	return v
}

// Entries returns the indexed entries in precedence order.
func (v *Vocabulary) Entries() []Entry {
	out := make([]Entry, len(v.entries))
	copy(out, v.entries)
	return out
}

// Lookup finds the entry whose term or alias equals description after
// folding. Only these matches are canonical.
func (v *Vocabulary) Lookup(description string) (*Entry, bool) {
	folded := textnorm.Fold(description)
	if folded == "" {
		return nil, false
	}
	e, ok := v.exact[folded]
	return e, ok
}

// Suggest finds the entry of the longest alias that occurs in description as
// a whole-word phrase. The result is a guess for a reviewer to confirm; it
// never replaces the description on its own.
func (v *Vocabulary) Suggest(description string) (*Entry, bool) {
	folded := textnorm.Fold(description)
	if folded == "" {
		return nil, false
	}
	for _, a := range v.phrases {
		if textnorm.ContainsPhrase(folded, a.folded) {
			return a.entry, true
		}
	}
	return nil, false
}

// Package textnorm folds free text for matching: accents removed, lower case,
// punctuation collapsed to single spaces.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

func stripAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Fold lowercases s, removes diacritics and replaces every run of
// non-alphanumeric runes with a single space.
func Fold(s string) string {
	s = strings.ToLower(stripAccents(s))
	var b strings.Builder
	b.Grow(len(s))
	space := true
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}

// ContainsPhrase reports whether phrase occurs in text on word boundaries.
// Both arguments must already be folded.
func ContainsPhrase(text, phrase string) bool {
	if phrase == "" {
		return false
	}
	return strings.Contains(" "+text+" ", " "+phrase+" ")
}

// Key trims and uppercases s, drops diacritics and strips every rune that is
// not a letter or digit. Two identifiers that differ only in case, spacing or
// punctuation share a key.
func Key(s string) string {
	s = strings.ToUpper(stripAccents(strings.TrimSpace(s)))
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

package extract

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var (
	errNoDigits        = errors.New("no digits")
	errMisplacedMinus  = errors.New("minus sign inside number")
	errAmbiguousFormat = errors.New("ambiguous separators")
	errNotInteger      = errors.New("not a whole number")
	errUnknownDate     = errors.New("unrecognized date format")
)

// placeholders the model or a reviewer uses for "nothing here"
var emptyMarkers = map[string]bool{
	"":             true,
	"-":            true,
	"n/a":          true,
	"na":           true,
	"none":         true,
	"null":         true,
	"no detectado": true,
}

// IsEmptyValue reports whether raw carries no value at all.
func IsEmptyValue(raw string) bool {
	return emptyMarkers[strings.ToLower(strings.TrimSpace(raw))]
}

// ParseNumber parses a decimal written with either '.' or ',' as decimal
// separator, tolerating currency codes, symbols and digit-group spaces.
//
// When both separators occur the last one is the decimal separator. A lone
// comma followed by at most two digits is decimal, by exactly three digits a
// thousands separator. A lone dot is always decimal. With repeated separators
// the last group is decimal when it has at most two digits.
func ParseNumber(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	var b strings.Builder
	digits := 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
			digits++
		case r == '.' || r == ',':
			b.WriteRune(r)
		case r == '-':
			if digits > 0 || b.Len() > 0 {
				return 0, errMisplacedMinus
			}
			negative = !negative
		}
	}
	if digits == 0 {
		return 0, errNoDigits
	}
	cleaned := strings.Trim(b.String(), ".,")

	normalized, err := normalizeSeparators(cleaned)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(normalized, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %q: %w", normalized, err)
	}
	if negative {
		v = -v
	}
	return v, nil
}

func normalizeSeparators(s string) (string, error) {
	commas := strings.Count(s, ",")
	dots := strings.Count(s, ".")

	switch {
	case commas == 0 && dots == 0:
		return s, nil

	case commas > 0 && dots > 0:
		lastComma := strings.LastIndexByte(s, ',')
		lastDot := strings.LastIndexByte(s, '.')
		decimal, thousands := ",", "."
		if lastDot > lastComma {
			decimal, thousands = ".", ","
		}
		if strings.Count(s, decimal) != 1 {
			return "", errAmbiguousFormat
		}
		s = strings.ReplaceAll(s, thousands, "")
		return strings.Replace(s, decimal, ".", 1), nil

	case commas == 1:
		frac := s[strings.IndexByte(s, ',')+1:]
		if len(frac) == 3 {
			return strings.Replace(s, ",", "", 1), nil
		}
		return strings.Replace(s, ",", ".", 1), nil

	case dots == 1:
		return s, nil

	default:
		sep := ","
		if dots > 0 {
			sep = "."
		}
		parts := strings.Split(s, sep)
		last := parts[len(parts)-1]
		if len(last) <= 2 {
			return strings.Join(parts[:len(parts)-1], "") + "." + last, nil
		}
		return strings.Join(parts, ""), nil
	}
}

// ParseInteger parses a whole number such as a package count.
func ParseInteger(raw string) (float64, error) {
	v, err := ParseNumber(raw)
	if err != nil {
		return 0, err
	}
	if math.Abs(v-math.Round(v)) > 1e-9 {
		return 0, errNotInteger
	}
	return math.Round(v), nil
}

var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"02.01.2006",
	"2006/01/02",
	"02 Jan 2006",
	"2 Jan 2006",
	"02-Jan-2006",
	"02-Jan-06",
	"02 January 2006",
	"2 January 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"Jan. 2, 2006",
	"20060102",
}

// ParseDate normalizes a printed date to YYYY-MM-DD. Numeric day/month forms
// are read day first.
func ParseDate(raw string) (string, error) {
	s := strings.Join(strings.Fields(raw), " ")
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), nil
		}
	}
	return "", errUnknownDate
}

// formatNumber renders a parsed number without trailing zeros.
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNumber(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
	}{
		{"1234", 1234},
		{"1.234,56", 1234.56},
		{"1,234.56", 1234.56},
		{"USD 1 234.50", 1234.50},
		{"€ 12.345,00", 12345},
		{"1,5", 1.5},
		{"1,50", 1.5},
		{"1,234", 1234},
		{"1.234", 1.234},
		{"1.234.567", 1234567},
		{"1,234,567.89", 1234567.89},
		{"1.234.567,89", 1234567.89},
		{"12.", 12},
		{"-12.5", -12.5},
		{"(12.50)", -12.5},
		{"4.500 KG", 4.5},
		{"0,75", 0.75},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseNumber(tt.raw)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestParseNumber_Errors(t *testing.T) {
	tests := []struct {
		raw  string
		want error
	}{
		{"abc", errNoDigits},
		{"", errNoDigits},
		{"12-", errMisplacedMinus},
		{"1.234,56,7", errAmbiguousFormat},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			_, err := ParseNumber(tt.raw)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestParseInteger(t *testing.T) {
	v, err := ParseInteger("1,200 PKGS")
	require.NoError(t, err)
	assert.Equal(t, 1200.0, v)

	_, err = ParseInteger("12,5")
	assert.ErrorIs(t, err, errNotInteger)
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"2024-03-05", "2024-03-05"},
		{"05/03/2024", "2024-03-05"},
		{"5/3/2024", "2024-03-05"},
		{"05.03.2024", "2024-03-05"},
		{"05 Mar 2024", "2024-03-05"},
		{"05-Mar-24", "2024-03-05"},
		{"March 5, 2024", "2024-03-05"},
		{" 5  March  2024 ", "2024-03-05"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseDate(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseDate("next tuesday")
	assert.ErrorIs(t, err, errUnknownDate)
}

func TestIsEmptyValue(t *testing.T) {
	for _, raw := range []string{"", "  ", "-", "N/A", "null", "No detectado"} {
		assert.True(t, IsEmptyValue(raw), raw)
	}
	assert.False(t, IsEmptyValue("0"))
}

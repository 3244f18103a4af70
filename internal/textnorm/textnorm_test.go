package textnorm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"aforo/internal/textnorm"
)

func TestFold(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Pastillas de FRENO", "pastillas de freno"},
		{"  Camión / Repuesto--Motor ", "camion repuesto motor"},
		{"B/L No.: 123", "b l no 123"},
		{"Ñandú", "nandu"},
		{"", ""},
		{"***", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, textnorm.Fold(tt.in), tt.in)
	}
}

func TestContainsPhrase(t *testing.T) {
	text := textnorm.Fold("Brake pads, front axle")

	assert.True(t, textnorm.ContainsPhrase(text, "brake pads"))
	assert.True(t, textnorm.ContainsPhrase(text, "axle"))
	assert.False(t, textnorm.ContainsPhrase(text, "brake pad"))
	assert.False(t, textnorm.ContainsPhrase(text, ""))
}

func TestKey_EquivalentForms(t *testing.T) {
	forms := []string{"MSCU-123 456", " mscu123456 ", "MSCU/123.456", "mscu 123 456\t"}
	for _, f := range forms {
		assert.Equal(t, "MSCU123456", textnorm.Key(f), f)
	}
	assert.NotEqual(t, textnorm.Key("MSCU123456"), textnorm.Key("MSCU123457"))
	assert.Equal(t, "", textnorm.Key(" -/ "))
}

package currency

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeFor(t *testing.T) {
	tests := []struct {
		symbol string
		want   string
	}{
		{"$", "USD"},
		{"€", "EUR"},
		{"NZ$", "NZD"},
		{"kr", "SEK"},
		{"CHF", "CHF"},
	}
	for _, tt := range tests {
		got, ok := CodeFor(tt.symbol)
		assert.True(t, ok, tt.symbol)
		assert.Equal(t, tt.want, got)
	}

	_, ok := CodeFor("XX")
	assert.False(t, ok)
}

func TestSymbolFor(t *testing.T) {
	s, ok := SymbolFor("GBP")
	assert.True(t, ok)
	assert.Equal(t, "£", s)

	s, ok = SymbolFor("HKD")
	assert.True(t, ok)
	assert.Equal(t, "HK$", s)
}

func TestCodes_DistinctAndOrdered(t *testing.T) {
	c := Codes()
	assert.Len(t, c, len(table))
	assert.Equal(t, "USD", c[0])
	assert.Equal(t, "CHF", c[len(c)-1])

	seen := map[string]bool{}
	for _, code := range c {
		assert.False(t, seen[code], "duplicate %s", code)
		seen[code] = true
	}
}

func TestSymbols_ReturnsCopy(t *testing.T) {
	s := Symbols()
	s[0].Symbol = "mutated"
	assert.Equal(t, "$", Symbols()[0].Symbol)
	assert.True(t, IsKnown("USD"))
	assert.False(t, IsKnown("XYZ"))
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"eur", "EUR"},
		{" gbp ", "GBP"},
		{"€", "EUR"},
		{"NZ$", "NZD"},
		{"kr", "SEK"},
		{"chf", "CHF"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

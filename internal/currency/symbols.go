// Package currency holds the static symbol table used for price detection.
package currency

import "strings"

// Entry maps a printed currency symbol to its ISO 4217 code.
type Entry struct {
	Symbol string
	Code   string
}

// table is ordered; the parser generates candidates in this order.
var table = []Entry{
	{"$", "USD"},
	{"€", "EUR"},
	{"£", "GBP"},
	{"¥", "JPY"},
	{"₹", "INR"},
	{"₽", "RUB"},
	{"kr", "SEK"},
	{"₩", "KRW"},
	{"₱", "PHP"},
	{"฿", "THB"},
	{"₫", "VND"},
	{"₪", "ILS"},
	{"C$", "CAD"},
	{"A$", "AUD"},
	{"NZ$", "NZD"},
	{"HK$", "HKD"},
	{"S$", "SGD"},
	{"CHF", "CHF"},
}

var (
	bySymbol = make(map[string]string, len(table))
	byCode   = make(map[string]string, len(table))
	codes    []string
)

func init() {
	for _, e := range table {
		bySymbol[e.Symbol] = e.Code
		if _, seen := byCode[e.Code]; !seen {
			codes = append(codes, e.Code)
		}
		byCode[e.Code] = e.Symbol
	}
}

// Symbols returns the symbol table in detection order.
func Symbols() []Entry {
	out := make([]Entry, len(table))
	copy(out, table)
	return out
}

// Codes returns the distinct ISO codes in table order.
func Codes() []string {
	out := make([]string, len(codes))
	copy(out, codes)
	return out
}

// CodeFor resolves a printed symbol to its ISO code.
func CodeFor(symbol string) (string, bool) {
	c, ok := bySymbol[symbol]
	return c, ok
}

// SymbolFor returns the symbol registered for code.
func SymbolFor(code string) (string, bool) {
	s, ok := byCode[code]
	return s, ok
}

// IsKnown reports whether code is in the table.
func IsKnown(code string) bool {
	_, ok := byCode[code]
	return ok
}

// Normalize turns user input into an ISO code: a known symbol maps to its code,
// anything else is trimmed and upper-cased.
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	if code, ok := CodeFor(s); ok {
		return code
	}
	return strings.ToUpper(s)
}

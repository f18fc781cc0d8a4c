package model

import (
	"github.com/shopspring/decimal"
	"golang.org/x/net/html"
)

// PriceMatch is one recognised (amount, currency) pair inside a text string.
type PriceMatch struct {
	Raw      string          `json:"raw"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	Start    int             `json:"start"`  // rune offset into the parsed text
	Length   int             `json:"length"` // rune length of Raw
}

// End returns the offset just past the match.
func (m PriceMatch) End() int { return m.Start + m.Length }

// PriceElement is a document element whose first qualifying text node held at least one match.
type PriceElement struct {
	ID           string
	Element      *html.Node
	Matches      []PriceMatch
	OriginalText string
}

// ConvertedPrice is a single conversion result ready for display.
type ConvertedPrice struct {
	Amount    decimal.Decimal
	Currency  string
	Formatted string
}

// Mode selects how conversions are presented.
type Mode string

const (
	ModeReplace Mode = "replace"
	ModeBadge   Mode = "badge"
)

// Valid reports whether m is a known presentation mode.
func (m Mode) Valid() bool {
	return m == ModeReplace || m == ModeBadge
}

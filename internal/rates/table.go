// Package rates fetches, merges, caches and applies currency exchange rates.
package rates

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gitlab.com/tozd/go/errors"
)

var (
	ErrUnknownCurrency  = errors.Base("unknown currency")
	ErrAllSourcesFailed = errors.Base("all rate sources failed")
)

// Table is a snapshot of rates quoted as units of each currency per one unit of Base.
type Table struct {
	Base      string                     `json:"base"`
	Rates     map[string]decimal.Decimal `json:"rates"`
	Source    string                     `json:"source"`
	FetchedAt time.Time                  `json:"fetched_at"`
}

// NewTable copies rates, upper-cases the codes and pins the base rate to 1.
func NewTable(base string, rates map[string]decimal.Decimal, source string, fetchedAt time.Time) Table {
	base = strings.ToUpper(base)
	t := Table{
		Base:      base,
		Rates:     make(map[string]decimal.Decimal, len(rates)+1),
		Source:    source,
		FetchedAt: fetchedAt,
	}
	for code, r := range rates {
		t.Rates[strings.ToUpper(code)] = r
	}
	t.Rates[base] = decimal.NewFromInt(1)
	return t
}

// Rate returns the rate for code. Zero and negative rates are treated as absent.
func (t Table) Rate(code string) (decimal.Decimal, bool) {
	r, ok := t.Rates[strings.ToUpper(code)]
	if !ok || !r.IsPositive() {
		return decimal.Zero, false
	}
	return r, true
}

// Convert moves amount from one currency to another through the base:
// amount / rate[from] * rate[to].
func (t Table) Convert(amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	from, to = strings.ToUpper(from), strings.ToUpper(to)
	if from == to {
		return amount, nil
	}
	rf, ok := t.Rate(from)
	if !ok {
		return decimal.Zero, errors.Errorf("%w: %s", ErrUnknownCurrency, from)
	}
	rt, ok := t.Rate(to)
	if !ok {
		return decimal.Zero, errors.Errorf("%w: %s", ErrUnknownCurrency, to)
	}
	return amount.Div(rf).Mul(rt), nil
}

// Rebase re-expresses the table relative to another currency it contains.
func (t Table) Rebase(base string) (Table, error) {
	base = strings.ToUpper(base)
	if base == t.Base {
		return NewTable(base, t.Rates, t.Source, t.FetchedAt), nil
	}
	pivot, ok := t.Rate(base)
	if !ok {
		return Table{}, errors.Errorf("%w: %s not quoted against %s", ErrUnknownCurrency, base, t.Base)
	}
	out := make(map[string]decimal.Decimal, len(t.Rates))
	for code, r := range t.Rates {
		if !r.IsPositive() {
			continue
		}
		out[code] = r.Div(pivot)
	}
	return NewTable(base, out, t.Source, t.FetchedAt), nil
}

// Currencies returns the quoted codes in sorted order.
func (t Table) Currencies() []string {
	codes := make([]string, 0, len(t.Rates))
	for code := range t.Rates {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Expired reports whether the table is older than ttl at now.
func (t Table) Expired(ttl time.Duration, now time.Time) bool {
	return t.FetchedAt.IsZero() || now.Sub(t.FetchedAt) >= ttl
}

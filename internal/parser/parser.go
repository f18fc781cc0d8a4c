// Package parser finds currency amounts in free-form text.
//
// Matching and conflict resolution are separate steps: a table-driven candidate
// generator produces every possible match for every known symbol and ISO code,
// then ResolveOverlaps picks a non-overlapping subset.
package parser

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"PriceLens/internal/currency"
	"PriceLens/internal/model"
)

const (
	// sep covers ASCII whitespace plus NBSP and narrow NBSP, which RE2's \s does not.
	sep = `[\s\x{00A0}\x{202F}]`
	// amount is digits grouped by '.', ',' or a space, with an optional 1-2 digit fraction.
	amount = `\d+(?:[.,\s\x{00A0}\x{202F}]\d{3})*(?:[.,]\d{1,2})?`
)

// rule is one compiled candidate pattern.
// Group 1 holds the amount when the token comes first, group 2 when it comes last.
type rule struct {
	token string
	code  string
	re    *regexp.Regexp
}

// Parser holds the compiled rule table. It is immutable and safe for concurrent use.
type Parser struct {
	rules []rule
}

// New compiles one rule per symbol followed by one rule per ISO code.
func New() *Parser {
	p := &Parser{}
	for _, e := range currency.Symbols() {
		p.rules = append(p.rules, newRule(e.Symbol, e.Code))
	}
	for _, code := range currency.Codes() {
		p.rules = append(p.rules, newRule(code, code))
	}
	return p
}

func newRule(token, code string) rule {
	t := regexp.QuoteMeta(token)
	re := regexp.MustCompile(t + sep + `*(` + amount + `)|(` + amount + `)` + sep + `*` + t)
	return rule{token: token, code: code, re: re}
}

var defaultParser = New()

// Find returns the non-overlapping price matches in text, sorted by start offset.
func Find(text string) []model.PriceMatch {
	return defaultParser.Find(text)
}

// Find returns the non-overlapping price matches in text, sorted by start offset.
func (p *Parser) Find(text string) []model.PriceMatch {
	return ResolveOverlaps(p.Candidates(text))
}

// Candidates returns every raw match for every rule, in rule order. Overlaps are expected.
func (p *Parser) Candidates(text string) []model.PriceMatch {
	var out []model.PriceMatch
	for _, r := range p.rules {
		for _, loc := range r.re.FindAllStringSubmatchIndex(text, -1) {
			var digits string
			switch {
			case loc[2] >= 0:
				digits = text[loc[2]:loc[3]]
			case loc[4] >= 0:
				digits = text[loc[4]:loc[5]]
			default:
				continue
			}
			value, ok := NormalizeAmount(digits)
			if !ok {
				continue
			}
			out = append(out, model.PriceMatch{
				Raw:      text[loc[0]:loc[1]],
				Amount:   value,
				Currency: r.code,
				Start:    utf8.RuneCountInString(text[:loc[0]]),
				Length:   utf8.RuneCountInString(text[loc[0]:loc[1]]),
			})
		}
	}
	return out
}

// ResolveOverlaps sorts candidates by start and drops overlapping ones.
// When a candidate overlaps the last accepted match, the strictly longer span wins;
// ties keep the match accepted first.
func ResolveOverlaps(candidates []model.PriceMatch) []model.PriceMatch {
	sorted := make([]model.PriceMatch, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	result := make([]model.PriceMatch, 0, len(sorted))
	lastEnd := -1
	for _, m := range sorted {
		if m.Start >= lastEnd {
			result = append(result, m)
			lastEnd = m.End()
			continue
		}
		last := result[len(result)-1]
		if m.Length > last.Length {
			result[len(result)-1] = m
			lastEnd = m.End()
		}
	}
	return result
}

// NormalizeAmount parses a locale-formatted number. The rightmost of ',' and '.'
// is the decimal mark; every other mark and all whitespace are grouping.
func NormalizeAmount(s string) (decimal.Decimal, bool) {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r', '\f', '\v', '\u00a0', '\u202f':
			return -1
		}
		return r
	}, s)

	mark := "."
	if strings.LastIndex(clean, ",") > strings.LastIndex(clean, ".") {
		mark = ","
	}
	if i := strings.LastIndex(clean, mark); i >= 0 {
		intPart := strings.NewReplacer(".", "", ",", "").Replace(clean[:i])
		clean = intPart + "." + clean[i+1:]
	}

	d, err := decimal.NewFromString(clean)
	if err != nil || d.IsNegative() {
		return decimal.Decimal{}, false
	}
	return d, true
}

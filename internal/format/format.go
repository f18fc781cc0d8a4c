// Package format renders converted amounts and rate tables as display strings.
package format

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	symbols "PriceLens/internal/currency"
	"PriceLens/internal/model"
)

// Separator joins several conversions shown for one element.
const Separator = " • "

// DefaultLocale is used when a locale cannot be parsed.
const DefaultLocale = "en-US"

var printers sync.Map // locale string -> *message.Printer

func printer(locale string) *message.Printer {
	if p, ok := printers.Load(locale); ok {
		return p.(*message.Printer)
	}
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.MustParse(DefaultLocale)
	}
	p, _ := printers.LoadOrStore(locale, message.NewPrinter(tag))
	return p.(*message.Printer)
}

// Format renders amount in code for locale, e.g. "£15.45". Codes x/text does not
// know fall back to "15.45 XYZ".
func Format(amount decimal.Decimal, code, locale string) string {
	p := printer(locale)
	value := amount.Round(2).InexactFloat64()

	unit, err := currency.ParseISO(code)
	if err != nil {
		return fmt.Sprintf("%s %s", amount.StringFixed(2), strings.ToUpper(code))
	}
	return p.Sprint(currency.NarrowSymbol(unit)) + p.Sprintf("%.2f", value)
}

// Join concatenates the formatted conversions in order.
func Join(conversions []model.ConvertedPrice) string {
	parts := make([]string, 0, len(conversions))
	for _, c := range conversions {
		parts = append(parts, c.Formatted)
	}
	return strings.Join(parts, Separator)
}

// Table formats a rate table for terminal output, one currency per line.
func Table(base string, rates map[string]decimal.Decimal, source string, fetchedAt time.Time) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("Rates | base %s | %s | %s\n\n", base, source, fetchedAt.UTC().Format("2006-01-02 15:04")))

	codes := make([]string, 0, len(rates))
	for code := range rates {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		line := fmt.Sprintf("  %-4s %s", code, rates[code].StringFixed(6))
		if sym, ok := symbols.SymbolFor(code); ok {
			line += "  " + sym
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

// Stats formats a one-line summary of a conversion run.
func Stats(detected, rendered, skipped int) string {
	return fmt.Sprintf("detected %d | rendered %d | skipped %d", detected, rendered, skipped)
}

package rates

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"
)

// Fetcher produces a complete table for a requested base currency.
type Fetcher interface {
	Fetch(ctx context.Context, base string) (Table, error)
}

// DefaultSourceTimeout bounds a single source fetch inside MultiSource.
const DefaultSourceTimeout = 20 * time.Second

// MultiSource queries several sources concurrently and merges their rates in
// priority order: the first source quoting a currency wins.
type MultiSource struct {
	sources []Source
	timeout time.Duration
	now     func() time.Time
}

// NewMultiSource creates a MultiSource. Sources are listed highest priority first.
func NewMultiSource(sources ...Source) *MultiSource {
	return &MultiSource{sources: sources, timeout: DefaultSourceTimeout, now: time.Now}
}

// Sources returns the source names in priority order.
func (m *MultiSource) Sources() []string {
	names := make([]string, len(m.sources))
	for i, s := range m.sources {
		names[i] = s.Name()
	}
	return names
}

type fetchResult struct {
	rates map[string]decimal.Decimal
	err   error
}

func (m *MultiSource) Fetch(ctx context.Context, base string) (Table, error) {
	base = strings.ToUpper(base)
	if len(m.sources) == 0 {
		return Table{}, errors.Errorf("%w: no sources configured", ErrAllSourcesFailed)
	}

	// A failing or slow source only loses its own slot; cancelling ctx aborts them all.
	results := make([]fetchResult, len(m.sources))
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range m.sources {
		g.Go(func() error {
			sctx, cancel := context.WithTimeout(gctx, m.timeout)
			defer cancel()
			r, err := src.Fetch(sctx)
			if err != nil && ctx.Err() != nil {
				return ctx.Err()
			}
			results[i] = fetchResult{rates: r, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Table{}, errors.Errorf("fetch rates for %s: %w", base, err)
	}

	merged := make(map[string]decimal.Decimal)
	var used []string
	for i, src := range m.sources {
		res := results[i]
		if res.err != nil {
			log.Warn().Err(res.err).Str("source", src.Name()).Msg("rate source failed")
			continue
		}
		t, err := NewTable(src.Base(), res.rates, src.Name(), time.Time{}).Rebase(base)
		if err != nil {
			log.Warn().Err(err).Str("source", src.Name()).Msg("rate source cannot quote base")
			continue
		}
		used = append(used, src.Name())
		for code, r := range t.Rates {
			if _, ok := merged[code]; !ok {
				merged[code] = r
			}
		}
	}
	if len(used) == 0 {
		return Table{}, errors.Errorf("%w for base %s", ErrAllSourcesFailed, base)
	}

	t := NewTable(base, merged, strings.Join(used, "+"), m.now())
	log.Info().
		Str("base", base).
		Int("currencies", len(t.Rates)).
		Strs("sources", used).
		Msg("rates fetched")
	return t, nil
}

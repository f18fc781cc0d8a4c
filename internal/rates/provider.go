package rates

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gitlab.com/tozd/go/errors"
)

// DefaultTTL is how long a cached table is served before refetching.
const DefaultTTL = 24 * time.Hour

// Cache persists the latest table per base currency.
type Cache interface {
	Get(ctx context.Context, base string) (Table, bool, error)
	Put(ctx context.Context, t Table) error
	Close() error
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) ProviderOption {
	return func(p *Provider) { p.ttl = ttl }
}

// WithNow overrides the clock used for expiry checks.
func WithNow(now func() time.Time) ProviderOption {
	return func(p *Provider) { p.now = now }
}

// Provider serves rate tables from a cache, falling back to a Fetcher.
type Provider struct {
	fetcher Fetcher
	cache   Cache
	ttl     time.Duration
	now     func() time.Time

	mu sync.Mutex
}

// NewProvider creates a Provider.
func NewProvider(f Fetcher, c Cache, opts ...ProviderOption) *Provider {
	p := &Provider{fetcher: f, cache: c, ttl: DefaultTTL, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// GetRates returns a table for base, fetching when the cached one is missing or stale.
func (p *Provider) GetRates(ctx context.Context, base string) (Table, error) {
	base = strings.ToUpper(base)

	p.mu.Lock()
	defer p.mu.Unlock()

	t, ok, err := p.cache.Get(ctx, base)
	if err != nil {
		log.Warn().Err(err).Str("base", base).Msg("rate cache read failed")
	} else if ok && !t.Expired(p.ttl, p.now()) {
		log.Debug().Str("base", base).Time("fetched_at", t.FetchedAt).Msg("using cached rates")
		return t, nil
	}

	return p.fetch(ctx, base)
}

// Refresh fetches a fresh table for base regardless of the cache.
func (p *Provider) Refresh(ctx context.Context, base string) (Table, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fetch(ctx, strings.ToUpper(base))
}

func (p *Provider) fetch(ctx context.Context, base string) (Table, error) {
	t, err := p.fetcher.Fetch(ctx, base)
	if err != nil {
		return Table{}, errors.Errorf("fetch rates for %s: %w", base, err)
	}
	if err := p.cache.Put(ctx, t); err != nil {
		log.Warn().Err(err).Str("base", base).Msg("rate cache write failed")
	}
	return t, nil
}

// Convert converts amount using the table for from as base.
func (p *Provider) Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	if strings.EqualFold(from, to) {
		return amount, nil
	}
	t, err := p.GetRates(ctx, from)
	if err != nil {
		return decimal.Zero, err
	}
	return t.Convert(amount, from, to)
}

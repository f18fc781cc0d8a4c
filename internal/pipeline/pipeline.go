// Package pipeline wires detection, conversion and presentation together for one document.
package pipeline

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/net/html"

	"PriceLens/internal/detector"
	"PriceLens/internal/dom"
	"PriceLens/internal/format"
	"PriceLens/internal/loop"
	"PriceLens/internal/model"
	"PriceLens/internal/rates"
	"PriceLens/internal/render"
	"PriceLens/internal/watcher"
)

// Settings is the static configuration supplied when the pipeline starts.
type Settings struct {
	Enabled          bool
	BaseCurrency     string
	TargetCurrencies []string
	Mode             model.Mode
	Locale           string
}

// RateSource supplies a rate table for a base currency.
type RateSource interface {
	GetRates(ctx context.Context, base string) (rates.Table, error)
}

// Stats counts what the pipeline has done so far.
type Stats struct {
	Detected int `json:"detected"`
	Rendered int `json:"rendered"`
	Skipped  int `json:"skipped"`
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithWatcherOptions forwards options to the content watcher.
func WithWatcherOptions(opts ...watcher.Option) Option {
	return func(p *Pipeline) { p.detectorOpts = append(p.detectorOpts, detector.WithWatcherOptions(opts...)) }
}

// WithRenderOptions forwards options to the renderer.
func WithRenderOptions(opts ...render.Option) Option {
	return func(p *Pipeline) { p.renderOpts = append(p.renderOpts, opts...) }
}

// OnBatch registers a callback run after every discovery batch has been rendered.
func OnBatch(fn func(Stats)) Option {
	return func(p *Pipeline) { p.onBatch = fn }
}

// Pipeline owns the detector and renderer of one document. All methods except
// Start's rate fetch must run on the document's event loop.
type Pipeline struct {
	settings Settings
	doc      *dom.Document
	source   RateSource

	detector     *detector.Detector
	detectorOpts []detector.Option
	renderer     *render.Renderer
	renderOpts   []render.Option

	table   rates.Table
	stats   Stats
	onBatch func(Stats)
}

// New creates a Pipeline for doc. Timers run on sched.
func New(doc *dom.Document, sched loop.Scheduler, source RateSource, settings Settings, opts ...Option) *Pipeline {
	settings.BaseCurrency = strings.ToUpper(settings.BaseCurrency)
	p := &Pipeline{settings: settings, doc: doc, source: source}
	for _, opt := range opts {
		opt(p)
	}
	p.detector = detector.New(doc, sched, p.detectorOpts...)
	p.renderer = render.New(doc, sched, p.renderOpts...)
	return p
}

// Start loads rates, scans the document and arms the watcher. A disabled
// pipeline logs and returns without touching the document.
func (p *Pipeline) Start(ctx context.Context) error {
	if p.detector.Watching() {
		logger(ctx).Debug().Msg("pipeline already started")
		return nil
	}
	if !p.prepare(ctx) {
		return nil
	}
	if err := p.loadRates(ctx); err != nil {
		return err
	}
	p.detector.Start()
	return nil
}

// Convert runs a single scan and render pass without watching for changes.
func (p *Pipeline) Convert(ctx context.Context) (Stats, error) {
	if !p.prepare(ctx) {
		return p.stats, nil
	}
	if err := p.loadRates(ctx); err != nil {
		return Stats{}, err
	}
	root := p.doc.Body()
	if root == nil {
		root = p.doc.Root()
	}
	p.detector.Scan([]*html.Node{root})
	return p.stats, nil
}

func (p *Pipeline) prepare(ctx context.Context) bool {
	if !p.settings.Enabled {
		logger(ctx).Info().Msg("price conversion disabled")
		return false
	}
	p.detector.OnPricesFound(p.handle)
	if p.settings.Mode == model.ModeBadge {
		p.renderer.EnsureStyles()
	}
	return true
}

func (p *Pipeline) loadRates(ctx context.Context) error {
	t, err := p.source.GetRates(ctx, p.settings.BaseCurrency)
	if err != nil {
		return errors.Errorf("load rates: %w", err)
	}
	p.table = t
	logger(ctx).Info().
		Str("base", t.Base).
		Str("source", t.Source).
		Int("currencies", len(t.Rates)).
		Msg("rates loaded")
	return nil
}

// SetRates swaps the rate snapshot used for later batches. Rendered elements keep
// the values they were rendered with.
func (p *Pipeline) SetRates(t rates.Table) {
	p.table = t
}

// Rates returns the current rate snapshot.
func (p *Pipeline) Rates() rates.Table { return p.table }

// Stats returns the counters accumulated so far.
func (p *Pipeline) Stats() Stats { return p.stats }

// Watching reports whether the pipeline reacts to document changes.
func (p *Pipeline) Watching() bool { return p.detector.Watching() }

// Stop disarms the watcher, forgets tracked elements and removes badges.
func (p *Pipeline) Stop() {
	p.detector.Stop()
	p.renderer.Close()
}

func (p *Pipeline) handle(batch []*model.PriceElement) {
	for _, pe := range batch {
		p.stats.Detected++
		if len(pe.Matches) == 0 {
			p.stats.Skipped++
			continue
		}
		conversions := p.ConvertMatch(pe.Matches[0])
		if len(conversions) == 0 {
			p.stats.Skipped++
			continue
		}
		p.renderer.Render(pe, conversions, p.settings.Mode)
		p.stats.Rendered++
	}
	if p.onBatch != nil {
		p.onBatch(p.stats)
	}
}

// ConvertMatch converts m into every target currency other than its own.
// Targets the rate table cannot reach are left out.
func (p *Pipeline) ConvertMatch(m model.PriceMatch) []model.ConvertedPrice {
	var out []model.ConvertedPrice
	for _, target := range p.settings.TargetCurrencies {
		target = strings.ToUpper(target)
		if target == m.Currency {
			continue
		}
		amount, err := p.table.Convert(m.Amount, m.Currency, target)
		if err != nil {
			log.Debug().Err(err).Str("raw", m.Raw).Str("target", target).Msg("conversion failed")
			continue
		}
		out = append(out, model.ConvertedPrice{
			Amount:    amount,
			Currency:  target,
			Formatted: format.Format(amount, target, p.settings.Locale),
		})
	}
	return out
}

// logger returns the request-scoped logger, or the default context logger
// configured by the command.
func logger(ctx context.Context) *zerolog.Logger {
	return zerolog.Ctx(ctx)
}

// Package detector finds price-bearing elements in a document, once up front and
// then incrementally as the content watcher reports changes.
package detector

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"

	"PriceLens/internal/dom"
	"PriceLens/internal/loop"
	"PriceLens/internal/model"
	"PriceLens/internal/parser"
	"PriceLens/internal/watcher"
)

// Option configures a Detector.
type Option func(*Detector)

// WithParser replaces the default amount parser.
func WithParser(p *parser.Parser) Option {
	return func(d *Detector) { d.parser = p }
}

// WithWatcherOptions forwards options to the content watcher.
func WithWatcherOptions(opts ...watcher.Option) Option {
	return func(d *Detector) { d.watcherOpts = append(d.watcherOpts, opts...) }
}

type state int

const (
	idle state = iota
	scanning
)

// Detector tracks one PriceElement per element and reports new ones in batches.
type Detector struct {
	doc         *dom.Document
	parser      *parser.Parser
	watcher     *watcher.Watcher
	watcherOpts []watcher.Option

	tracked  map[*html.Node]*model.PriceElement
	onFound  func([]*model.PriceElement)
	state    state
	deferred [][]*html.Node
}

// New creates a Detector for doc. The watcher it owns schedules flushes on sched.
func New(doc *dom.Document, sched loop.Scheduler, opts ...Option) *Detector {
	d := &Detector{
		doc:     doc,
		parser:  parser.New(),
		tracked: make(map[*html.Node]*model.PriceElement),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.watcher = watcher.New(doc, sched, d.Scan, d.watcherOpts...)
	return d
}

// OnPricesFound sets the discovery listener. A later call replaces the earlier one.
func (d *Detector) OnPricesFound(cb func([]*model.PriceElement)) {
	d.onFound = cb
}

// Start scans the whole document and then arms the content watcher.
func (d *Detector) Start() {
	root := d.doc.Body()
	if root == nil {
		root = d.doc.Root()
	}
	log.Info().Msg("starting initial full document scan")
	d.Scan([]*html.Node{root})
	d.watcher.Start()
}

// Stop disarms the watcher and forgets every tracked element.
func (d *Detector) Stop() {
	d.watcher.Stop()
	clear(d.tracked)
	d.deferred = nil
}

// Watching reports whether the content watcher is armed.
func (d *Detector) Watching() bool { return d.watcher.Observing() }

// Tracked returns the number of tracked elements.
func (d *Detector) Tracked() int { return len(d.tracked) }

// Lookup returns the PriceElement tracked for n.
func (d *Detector) Lookup(n *html.Node) (*model.PriceElement, bool) {
	pe, ok := d.tracked[n]
	return pe, ok
}

// Scan walks the text under roots and dispatches newly found price elements as
// one batch. A Scan requested while another is running is queued behind it.
func (d *Detector) Scan(roots []*html.Node) {
	if d.state == scanning {
		d.deferred = append(d.deferred, roots)
		return
	}

	d.state = scanning
	defer func() { d.state = idle }()
	for {
		d.dispatch(d.scan(roots))
		if len(d.deferred) == 0 {
			return
		}
		roots = d.deferred[0]
		d.deferred = d.deferred[1:]
	}
}

// dispatch runs while the detector is still scanning, so a Scan from the
// listener is queued rather than nested.
func (d *Detector) dispatch(found []*model.PriceElement) {
	if len(found) == 0 {
		return
	}
	log.Info().Int("elements", len(found)).Msg("detected new price elements")
	if d.onFound != nil {
		d.onFound(found)
	}
}

func (d *Detector) scan(roots []*html.Node) []*model.PriceElement {
	var found []*model.PriceElement
	for _, root := range roots {
		if root == nil {
			continue
		}
		for node := range dom.TextNodes(root) {
			text := node.Data
			if strings.TrimSpace(text) == "" {
				continue
			}
			matches := d.parser.Find(text)
			if len(matches) == 0 {
				continue
			}

			element := node.Parent
			if element == nil {
				panic(fmt.Sprintf("detector: text node %q has no parent", text))
			}
			if _, ok := d.tracked[element]; ok {
				continue
			}

			pe := &model.PriceElement{
				ID:           uuid.NewString(),
				Element:      element,
				Matches:      matches,
				OriginalText: text,
			}
			d.tracked[element] = pe
			d.doc.SetAttr(element, model.AttrDetected, "true")
			found = append(found, pe)

			log.Debug().
				Str("id", pe.ID).
				Str("raw", matches[0].Raw).
				Str("currency", matches[0].Currency).
				Int("matches", len(matches)).
				Msg("price element detected")
		}
	}
	return found
}

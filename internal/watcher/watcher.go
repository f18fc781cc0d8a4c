// Package watcher turns document change records into throttled batches of elements to rescan.
package watcher

import (
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"

	"PriceLens/internal/dom"
	"PriceLens/internal/loop"
)

// DefaultThrottle is the flush window.
const DefaultThrottle = 500 * time.Millisecond

// Option configures a Watcher.
type Option func(*Watcher)

// WithThrottle overrides the flush window.
func WithThrottle(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.throttle = d
		}
	}
}

// Watcher collects elements affected by document changes and hands them to
// onBatch at most once per throttle window.
type Watcher struct {
	doc      *dom.Document
	sched    loop.Scheduler
	onBatch  func([]*html.Node)
	throttle time.Duration

	disconnect func()
	timer      loop.Timer

	pending map[*html.Node]struct{}
	order   []*html.Node
}

// New creates a stopped Watcher.
func New(doc *dom.Document, sched loop.Scheduler, onBatch func([]*html.Node), opts ...Option) *Watcher {
	w := &Watcher{
		doc:      doc,
		sched:    sched,
		onBatch:  onBatch,
		throttle: DefaultThrottle,
		pending:  make(map[*html.Node]struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins observing the document. Calling it again is a no-op.
func (w *Watcher) Start() {
	if w.disconnect != nil {
		return
	}
	w.disconnect = w.doc.Observe(w.handle)
	log.Debug().Dur("throttle", w.throttle).Msg("content watcher started")
}

// Stop disconnects from the document, cancels a scheduled flush and drops pending work.
func (w *Watcher) Stop() {
	if w.disconnect != nil {
		w.disconnect()
		w.disconnect = nil
	}
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	clear(w.pending)
	w.order = nil
}

// Observing reports whether Start has been called without a matching Stop.
func (w *Watcher) Observing() bool { return w.disconnect != nil }

// Pending returns the number of elements awaiting the next flush.
func (w *Watcher) Pending() int { return len(w.order) }

func (w *Watcher) handle(records []dom.MutationRecord) {
	added := false
	for _, rec := range records {
		switch rec.Kind {
		case dom.ChildList:
			for _, n := range rec.Added {
				if n == nil || n.Type != html.ElementNode || skip(n) {
					continue
				}
				w.add(n)
				added = true
			}
		case dom.CharacterData:
			if rec.Target == nil {
				continue
			}
			if p := rec.Target.Parent; p != nil && p.Type == html.ElementNode && !dom.InIgnored(p) {
				w.add(p)
				added = true
			}
		}
	}
	if added {
		w.schedule()
	}
}

func skip(n *html.Node) bool {
	return dom.IsExcludedTag(n) || dom.InIgnored(n)
}

func (w *Watcher) add(n *html.Node) {
	if _, ok := w.pending[n]; ok {
		return
	}
	w.pending[n] = struct{}{}
	w.order = append(w.order, n)
}

func (w *Watcher) schedule() {
	if w.timer != nil {
		return
	}
	w.timer = w.sched.AfterFunc(w.throttle, w.flush)
}

func (w *Watcher) flush() {
	w.timer = nil
	if w.disconnect == nil || len(w.order) == 0 {
		return
	}
	batch := w.order
	w.order = nil
	clear(w.pending)

	log.Debug().Int("elements", len(batch)).Msg("flushing content changes")
	w.onBatch(batch)
}

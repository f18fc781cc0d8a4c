// Package render presents converted prices in the document, either by replacing
// the element text or through a hover badge.
package render

import (
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"

	"PriceLens/internal/dom"
	"PriceLens/internal/format"
	"PriceLens/internal/loop"
	"PriceLens/internal/model"
)

// DefaultFadeOut is how long a hidden badge stays in the document before removal.
const DefaultFadeOut = 200 * time.Millisecond

// badgeOffset lifts the badge above the element's top edge.
const badgeOffset = 10

// Option configures a Renderer.
type Option func(*Renderer)

// WithFadeOut overrides DefaultFadeOut.
func WithFadeOut(d time.Duration) Option {
	return func(r *Renderer) { r.fadeOut = d }
}

// Renderer writes conversions into a document. At most one badge is visible at a time.
type Renderer struct {
	doc     *dom.Document
	sched   loop.Scheduler
	fadeOut time.Duration

	badgeText map[*html.Node]string
	active    *html.Node
	fading    *html.Node
	fadeTimer loop.Timer
}

// New creates a Renderer. Badge fade-out timers run on sched.
func New(doc *dom.Document, sched loop.Scheduler, opts ...Option) *Renderer {
	r := &Renderer{
		doc:       doc,
		sched:     sched,
		fadeOut:   DefaultFadeOut,
		badgeText: make(map[*html.Node]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render presents conversions for pe in the given mode. An empty conversion list is a no-op.
func (r *Renderer) Render(pe *model.PriceElement, conversions []model.ConvertedPrice, mode model.Mode) {
	if pe == nil || pe.Element == nil || len(conversions) == 0 {
		return
	}
	switch mode {
	case model.ModeReplace:
		r.replace(pe, conversions)
	case model.ModeBadge:
		r.badge(pe, conversions)
	default:
		log.Warn().Str("mode", string(mode)).Msg("unknown render mode")
	}
}

// replace swaps the element's entire text for the joined conversions. The original
// text is stamped once so a second render keeps the first original.
func (r *Renderer) replace(pe *model.PriceElement, conversions []model.ConvertedPrice) {
	el := pe.Element
	if !dom.HasAttr(el, model.AttrOriginalText) {
		r.doc.SetAttr(el, model.AttrOriginalText, pe.OriginalText)
	}
	r.doc.SetText(el, format.Join(conversions))
	r.doc.SetAttr(el, model.AttrConverted, "true")
}

func (r *Renderer) badge(pe *model.PriceElement, conversions []model.ConvertedPrice) {
	el := pe.Element
	r.doc.AddClass(el, ClassHighlight)

	if _, attached := r.badgeText[el]; !attached {
		r.doc.AddEventListener(el, dom.EventMouseEnter, func() { r.show(el) })
		r.doc.AddEventListener(el, dom.EventMouseLeave, r.hide)
	}
	r.badgeText[el] = format.Join(conversions)
}

func (r *Renderer) show(target *html.Node) {
	r.clearBadges()

	layout := r.doc.Layout()
	rect := layout.BoundingRect(target)
	scrollX, scrollY := layout.Scroll()

	badge := r.doc.CreateElement("div")
	r.doc.SetAttr(badge, "class", ClassBadge+" "+ClassVisible)
	r.doc.SetAttr(badge, model.AttrIgnore, "true")
	r.doc.SetAttr(badge, "style", fmt.Sprintf("top: %spx; left: %spx;",
		px(rect.Top+scrollY-badgeOffset), px(rect.Left+scrollX)))
	badge.AppendChild(r.doc.CreateText(r.badgeText[target]))

	parent := r.doc.Body()
	if parent == nil {
		parent = r.doc.Root()
	}
	r.doc.AppendChild(parent, badge)
	r.active = badge
}

func (r *Renderer) hide() {
	badge := r.active
	if badge == nil {
		return
	}
	r.active = nil
	r.doc.RemoveClass(badge, ClassVisible)

	r.fading = badge
	r.fadeTimer = r.sched.AfterFunc(r.fadeOut, func() {
		if r.fading != badge {
			return
		}
		r.fading = nil
		r.fadeTimer = nil
		r.doc.RemoveChild(badge)
	})
}

// clearBadges removes the visible badge and any badge still fading out.
func (r *Renderer) clearBadges() {
	if r.active != nil {
		r.doc.RemoveChild(r.active)
		r.active = nil
	}
	if r.fading != nil {
		if r.fadeTimer != nil {
			r.fadeTimer.Stop()
			r.fadeTimer = nil
		}
		r.doc.RemoveChild(r.fading)
		r.fading = nil
	}
}

// Close removes any badge left in the document and cancels pending fade-outs.
func (r *Renderer) Close() {
	r.clearBadges()
}

// Badges returns the badge elements currently in the document.
func (r *Renderer) Badges() []*html.Node {
	return dom.FindAll(r.doc.Root(), func(n *html.Node) bool {
		return dom.HasClass(n, ClassBadge)
	})
}

func px(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

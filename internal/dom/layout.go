package dom

import "golang.org/x/net/html"

// Rect is an element's box relative to the viewport, in CSS pixels.
type Rect struct {
	Top, Left, Width, Height float64
}

// Layout answers geometry questions. There is no layout engine; a host that knows
// where elements are drawn supplies one.
type Layout interface {
	BoundingRect(n *html.Node) Rect
	Scroll() (x, y float64)
}

// NoLayout places everything at the origin.
type NoLayout struct{}

func (NoLayout) BoundingRect(*html.Node) Rect { return Rect{} }
func (NoLayout) Scroll() (float64, float64)   { return 0, 0 }

// StaticLayout is a fixed geometry table.
type StaticLayout struct {
	Rects            map[*html.Node]Rect
	ScrollX, ScrollY float64
}

func (l *StaticLayout) BoundingRect(n *html.Node) Rect { return l.Rects[n] }
func (l *StaticLayout) Scroll() (float64, float64)     { return l.ScrollX, l.ScrollY }

// SetLayout replaces the geometry provider.
func (d *Document) SetLayout(l Layout) {
	if l == nil {
		l = NoLayout{}
	}
	d.layout = l
}

// Layout returns the current geometry provider.
func (d *Document) Layout() Layout { return d.layout }

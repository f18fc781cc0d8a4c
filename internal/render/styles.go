package render

import (
	"PriceLens/internal/dom"
)

// Class names and ids written into the document.
const (
	ClassBadge     = "pricelens-badge"
	ClassHighlight = "pricelens-highlight"
	ClassVisible   = "visible"
	StyleID        = "pricelens-styles"
)

const styles = `
.pricelens-badge {
  position: absolute;
  background: #1c1917;
  color: white;
  padding: 4px 8px;
  border-radius: 6px;
  font-size: 12px;
  font-family: system-ui, sans-serif;
  z-index: 10000;
  pointer-events: none;
  box-shadow: 0 4px 6px -1px rgb(0 0 0 / 0.1);
  opacity: 0;
  transition: opacity 0.2s ease;
  transform: translateY(-100%);
  white-space: nowrap;
}

.pricelens-highlight {
  cursor: help;
  text-decoration: underline dotted #ea580c;
  text-underline-offset: 2px;
}

.pricelens-badge.visible {
  opacity: 1;
}
`

// EnsureStyles injects the presentation stylesheet into the document head once.
func (r *Renderer) EnsureStyles() {
	if dom.ByID(r.doc.Root(), StyleID) != nil {
		return
	}
	parent := r.doc.Head()
	if parent == nil {
		parent = r.doc.Root()
	}

	style := r.doc.CreateElement("style")
	r.doc.SetAttr(style, "id", StyleID)
	style.AppendChild(r.doc.CreateText(styles))
	r.doc.AppendChild(parent, style)
}

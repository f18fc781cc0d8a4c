package dom

import "golang.org/x/net/html"

// Event types used by the badge presenter.
const (
	EventMouseEnter = "mouseenter"
	EventMouseLeave = "mouseleave"
)

// AddEventListener registers fn for events of typ dispatched on n.
func (d *Document) AddEventListener(n *html.Node, typ string, fn func()) {
	byType, ok := d.listeners[n]
	if !ok {
		byType = make(map[string][]func())
		d.listeners[n] = byType
	}
	byType[typ] = append(byType[typ], fn)
}

// Dispatch invokes the listeners registered for typ on n and returns how many ran.
func (d *Document) Dispatch(n *html.Node, typ string) int {
	fns := d.listeners[n][typ]
	if len(fns) == 0 {
		return 0
	}
	snapshot := make([]func(), len(fns))
	copy(snapshot, fns)
	for _, fn := range snapshot {
		fn()
	}
	return len(snapshot)
}

// ListenerCount returns the number of listeners for typ on n.
func (d *Document) ListenerCount(n *html.Node, typ string) int {
	return len(d.listeners[n][typ])
}

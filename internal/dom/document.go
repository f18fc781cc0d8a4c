// Package dom is the mutable, observable document the pipeline scans and rewrites.
//
// It wraps an x/net/html node tree. All mutations go through Document so that
// observers receive the same change records a browser MutationObserver would
// (child-list and character-data only).
package dom

import (
	"bytes"
	"io"
	"strings"

	"gitlab.com/tozd/go/errors"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// MutationKind classifies a change record.
type MutationKind int

const (
	ChildList MutationKind = iota
	CharacterData
)

func (k MutationKind) String() string {
	if k == CharacterData {
		return "characterData"
	}
	return "childList"
}

// MutationRecord describes one change to the tree.
type MutationRecord struct {
	Kind   MutationKind
	Target *html.Node   // parent for ChildList, the text node for CharacterData
	Added  []*html.Node // inserted nodes for ChildList
}

type observer struct {
	id int
	fn func([]MutationRecord)
}

// Document is a live HTML document. It is not safe for concurrent use; callers
// serialise access through the event loop.
type Document struct {
	root      *html.Node
	observers []observer
	nextID    int
	listeners map[*html.Node]map[string][]func()
	layout    Layout
}

// New wraps an already parsed tree.
func New(root *html.Node) *Document {
	return &Document{
		root:      root,
		listeners: make(map[*html.Node]map[string][]func()),
		layout:    NoLayout{},
	}
}

// Parse reads a full HTML document.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, errors.Errorf("parse html: %w", err)
	}
	return New(root), nil
}

// ParseString parses a full HTML document from a string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// Root returns the document node.
func (d *Document) Root() *html.Node { return d.root }

// Body returns the <body> element, or nil.
func (d *Document) Body() *html.Node { return findElement(d.root, atom.Body) }

// Head returns the <head> element, or nil.
func (d *Document) Head() *html.Node { return findElement(d.root, atom.Head) }

// Render serialises the document.
func (d *Document) Render(w io.Writer) error {
	if err := html.Render(w, d.root); err != nil {
		return errors.Errorf("render html: %w", err)
	}
	return nil
}

// String renders the document, returning "" on failure.
func (d *Document) String() string {
	var buf bytes.Buffer
	if err := d.Render(&buf); err != nil {
		return ""
	}
	return buf.String()
}

// ParseFragment parses markup in a <body> context. The returned nodes are detached.
func (d *Document) ParseFragment(s string) ([]*html.Node, error) {
	ctx := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(s), ctx)
	if err != nil {
		return nil, errors.Errorf("parse fragment: %w", err)
	}
	return nodes, nil
}

// CreateElement returns a detached element.
func (d *Document) CreateElement(tag string) *html.Node {
	return &html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag))}
}

// CreateText returns a detached text node.
func (d *Document) CreateText(data string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: data}
}

// Observe registers fn for change records and returns a function that disconnects it.
func (d *Document) Observe(fn func([]MutationRecord)) (disconnect func()) {
	d.nextID++
	id := d.nextID
	d.observers = append(d.observers, observer{id: id, fn: fn})
	return func() {
		for i, o := range d.observers {
			if o.id == id {
				d.observers = append(d.observers[:i:i], d.observers[i+1:]...)
				return
			}
		}
	}
}

func (d *Document) notify(rec MutationRecord) {
	if len(d.observers) == 0 {
		return
	}
	obs := make([]observer, len(d.observers))
	copy(obs, d.observers)
	for _, o := range obs {
		o.fn([]MutationRecord{rec})
	}
}

// AppendChild inserts child as the last child of parent, detaching it first if needed.
func (d *Document) AppendChild(parent, child *html.Node) {
	if child.Parent != nil {
		child.Parent.RemoveChild(child)
	}
	parent.AppendChild(child)
	d.notify(MutationRecord{Kind: ChildList, Target: parent, Added: []*html.Node{child}})
}

// AppendChildren inserts several nodes and reports them in a single record.
func (d *Document) AppendChildren(parent *html.Node, children []*html.Node) {
	if len(children) == 0 {
		return
	}
	for _, c := range children {
		if c.Parent != nil {
			c.Parent.RemoveChild(c)
		}
		parent.AppendChild(c)
	}
	added := make([]*html.Node, len(children))
	copy(added, children)
	d.notify(MutationRecord{Kind: ChildList, Target: parent, Added: added})
}

// RemoveChild detaches n from its parent. Detached nodes are ignored.
func (d *Document) RemoveChild(n *html.Node) {
	parent := n.Parent
	if parent == nil {
		return
	}
	parent.RemoveChild(n)
	delete(d.listeners, n)
	d.notify(MutationRecord{Kind: ChildList, Target: parent})
}

// SetText replaces all children of n with a single text node.
func (d *Document) SetText(n *html.Node, text string) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
	rec := MutationRecord{Kind: ChildList, Target: n}
	if text != "" {
		t := d.CreateText(text)
		n.AppendChild(t)
		rec.Added = []*html.Node{t}
	}
	d.notify(rec)
}

// SetData changes the character data of a text node.
func (d *Document) SetData(n *html.Node, data string) {
	if n.Type != html.TextNode || n.Data == data {
		return
	}
	n.Data = data
	d.notify(MutationRecord{Kind: CharacterData, Target: n})
}

// SetAttr sets or replaces an attribute. Attribute changes are not observed.
func (d *Document) SetAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Namespace == "" && n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// AddClass appends class to n's class list unless already present.
func (d *Document) AddClass(n *html.Node, class string) {
	if HasClass(n, class) {
		return
	}
	cur, _ := Attr(n, "class")
	if cur = strings.TrimSpace(cur); cur != "" {
		cur += " "
	}
	d.SetAttr(n, "class", cur+class)
}

// RemoveClass drops class from n's class list.
func (d *Document) RemoveClass(n *html.Node, class string) {
	cur, ok := Attr(n, "class")
	if !ok {
		return
	}
	fields := strings.Fields(cur)
	kept := fields[:0]
	for _, f := range fields {
		if f != class {
			kept = append(kept, f)
		}
	}
	d.SetAttr(n, "class", strings.Join(kept, " "))
}

package dom

import (
	"iter"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"PriceLens/internal/model"
)

// excludedTags never contain user-visible prices.
var excludedTags = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Iframe:   true,
	atom.Object:   true,
	atom.Embed:    true,
	atom.Template: true,
}

// IsExcludedTag reports whether n is a script, style or embedded-document element.
func IsExcludedTag(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	if n.DataAtom != 0 {
		return excludedTags[n.DataAtom]
	}
	return excludedTags[atom.Lookup([]byte(strings.ToLower(n.Data)))]
}

// IsIgnored reports whether n carries the ignore marker.
func IsIgnored(n *html.Node) bool {
	return n != nil && n.Type == html.ElementNode && HasAttr(n, model.AttrIgnore)
}

// InIgnored reports whether n or any ancestor carries the ignore marker.
func InIgnored(n *html.Node) bool {
	return Closest(n, IsIgnored) != nil
}

// TextNodes yields the text nodes under root in document order, skipping subtrees
// rooted at excluded or ignored elements. The sequence is lazy and can be ranged
// over repeatedly.
func TextNodes(root *html.Node) iter.Seq[*html.Node] {
	return func(yield func(*html.Node) bool) {
		walkText(root, yield)
	}
}

func walkText(n *html.Node, yield func(*html.Node) bool) bool {
	switch n.Type {
	case html.TextNode:
		return yield(n)
	case html.ElementNode:
		if IsExcludedTag(n) || IsIgnored(n) {
			return true
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !walkText(c, yield) {
			return false
		}
	}
	return true
}

// Attr returns the value of a non-namespaced attribute.
func Attr(n *html.Node, key string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// HasAttr reports whether n has the attribute.
func HasAttr(n *html.Node, key string) bool {
	_, ok := Attr(n, key)
	return ok
}

// HasClass reports whether class is in n's class list.
func HasClass(n *html.Node, class string) bool {
	v, ok := Attr(n, "class")
	if !ok {
		return false
	}
	for _, f := range strings.Fields(v) {
		if f == class {
			return true
		}
	}
	return false
}

// Closest returns the nearest of n and its ancestors for which match is true.
func Closest(n *html.Node, match func(*html.Node) bool) *html.Node {
	for cur := n; cur != nil; cur = cur.Parent {
		if match(cur) {
			return cur
		}
	}
	return nil
}

// TextContent concatenates all descendant text.
func TextContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
		for k := c.FirstChild; k != nil; k = k.NextSibling {
			walk(k)
		}
	}
	walk(n)
	return b.String()
}

// ByID returns the first element under root with the given id.
func ByID(root *html.Node, id string) *html.Node {
	var found *html.Node
	var walk func(*html.Node) bool
	walk = func(n *html.Node) bool {
		if n.Type == html.ElementNode {
			if v, ok := Attr(n, "id"); ok && v == id {
				found = n
				return false
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if !walk(c) {
				return false
			}
		}
		return true
	}
	walk(root)
	return found
}

// FindAll returns every element under root for which match is true, in document order.
func FindAll(root *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && match(n) {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

func findElement(root *html.Node, a atom.Atom) *html.Node {
	found := FindAll(root, func(n *html.Node) bool { return n.DataAtom == a })
	if len(found) == 0 {
		return nil
	}
	return found[0]
}

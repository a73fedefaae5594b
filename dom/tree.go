// Package dom holds the tree primitives the anchoring code is built on:
// text-node walks, rune-offset splitting, wrapping, unwrapping and
// normalisation over golang.org/x/net/html nodes.
//
// All offsets are rune offsets into a text node's Data.
package dom

import (
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// IsText reports whether n is a text node.
func IsText(n *html.Node) bool {
	return n != nil && n.Type == html.TextNode
}

// TextLen returns the length of a text node in runes.
func TextLen(n *html.Node) int {
	return utf8.RuneCountInString(n.Data)
}

// Substr returns the runes [from, to) of s. Bounds are clamped.
func Substr(s string, from, to int) string {
	r := []rune(s)
	if from < 0 {
		from = 0
	}
	if to > len(r) {
		to = len(r)
	}
	if from >= to {
		return ""
	}
	return string(r[from:to])
}

// Root climbs to the top of the tree containing n.
func Root(n *html.Node) *html.Node {
	for n != nil && n.Parent != nil {
		n = n.Parent
	}
	return n
}

// Body returns the <body> element of the document containing n, or the
// tree root when there is none (fragments).
func Body(n *html.Node) *html.Node {
	root := Root(n)
	var find func(*html.Node) *html.Node
	find = func(c *html.Node) *html.Node {
		if c.Type == html.ElementNode && c.DataAtom == atom.Body {
			return c
		}
		for k := c.FirstChild; k != nil; k = k.NextSibling {
			if b := find(k); b != nil {
				return b
			}
		}
		return nil
	}
	if b := find(root); b != nil {
		return b
	}
	return root
}

// Title returns the text of the first <title> element, if any.
func Title(n *html.Node) string {
	if n.Type == html.ElementNode && n.DataAtom == atom.Title {
		if n.FirstChild != nil {
			return n.FirstChild.Data
		}
		return ""
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := Title(c); t != "" {
			return t
		}
	}
	return ""
}

// SkipFunc decides whether a subtree is excluded from a text walk.
type SkipFunc func(*html.Node) bool

// SkipNonRendered excludes elements whose text never renders as page text.
func SkipNonRendered(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	switch n.DataAtom {
	case atom.Script, atom.Style, atom.Noscript, atom.Template:
		return true
	}
	return false
}

// TextNodes returns the text nodes under root in document order.
// A nil skip visits every subtree.
func TextNodes(root *html.Node, skip SkipFunc) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			out = append(out, n)
			return
		}
		if skip != nil && n != root && skip(n) {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	if root != nil {
		walk(root)
	}
	return out
}

// SplitText splits text node n at rune offset off. n keeps [0, off) and the
// returned node holds the remainder; it is inserted right after n when n is
// attached.
func SplitText(n *html.Node, off int) (*html.Node, error) {
	if !IsText(n) {
		return nil, ErrNotText
	}
	r := []rune(n.Data)
	if off < 0 || off > len(r) {
		return nil, ErrOffset
	}
	tail := &html.Node{Type: html.TextNode, Data: string(r[off:])}
	n.Data = string(r[:off])
	if n.Parent != nil {
		n.Parent.InsertBefore(tail, n.NextSibling)
	}
	return tail, nil
}

// Unwrap replaces el with its own children, in place, and returns the
// former parent. It returns nil when el is detached.
func Unwrap(el *html.Node) *html.Node {
	p := el.Parent
	if p == nil {
		return nil
	}
	for c := el.FirstChild; c != nil; c = el.FirstChild {
		el.RemoveChild(c)
		p.InsertBefore(c, el)
	}
	p.RemoveChild(el)
	return p
}

// Normalize merges adjacent text nodes and drops empty ones under n.
func Normalize(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.TextNode {
			for next != nil && next.Type == html.TextNode {
				c.Data += next.Data
				after := next.NextSibling
				n.RemoveChild(next)
				next = after
			}
			if c.Data == "" {
				n.RemoveChild(c)
			}
		} else {
			Normalize(c)
		}
		c = next
	}
}

// Clone deep-copies the subtree rooted at n. The copy is detached.
func Clone(n *html.Node) *html.Node {
	c := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
	}
	if len(n.Attr) > 0 {
		c.Attr = make([]html.Attribute, len(n.Attr))
		copy(c.Attr, n.Attr)
	}
	for k := n.FirstChild; k != nil; k = k.NextSibling {
		c.AppendChild(Clone(k))
	}
	return c
}

// Attr returns the value of attribute key on n.
func Attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttr sets attribute key on n, replacing any existing value.
func SetAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

package anchor

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/webnote/dom"
)

// Marker element attributes.
const (
	MarkerTag   = "mark"
	MarkerClass = "webnote-highlight"
	ColorPrefix = "webnote-"
	IDAttr      = "data-highlight-id"
)

// MarkerSet maps highlight ids to the marker elements wrapping their text in
// one live document. It is never persisted and starts empty on every load.
type MarkerSet struct {
	markers map[string][]*html.Node
	order   []string
}

// NewMarkerSet returns an empty set.
func NewMarkerSet() *MarkerSet {
	return &MarkerSet{markers: make(map[string][]*html.Node)}
}

// Apply wraps each text node covered by r in its own marker element for id.
// Text nodes cut by the boundaries are split first. Whitespace-only text
// under elements that do not take phrasing content is left alone.
//
// Apply either wraps at least one text node or changes nothing and returns
// ErrMarkerApply.
func (ms *MarkerSet) Apply(r dom.Range, color, id string) ([]*html.Node, error) {
	slices, err := r.Slices()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMarkerApply, err)
	}
	var todo []dom.Slice
	for _, s := range slices {
		p := s.Node.Parent
		if p == nil || p.Type != html.ElementNode || rawText(p) {
			return nil, fmt.Errorf("%w: text under %s cannot hold markers", ErrMarkerApply, describe(p))
		}
		if !phrasing(p) && isBlank(s.Text()) {
			continue
		}
		todo = append(todo, s)
	}
	if len(todo) == 0 {
		return nil, fmt.Errorf("%w: no text enclosed", ErrMarkerApply)
	}

	nodes := make([]*html.Node, len(todo))
	for i, s := range todo {
		nodes[i] = isolate(s)
	}
	marks := make([]*html.Node, 0, len(nodes))
	for _, n := range nodes {
		marks = append(marks, extractInto(n, color, id))
	}

	if _, ok := ms.markers[id]; !ok {
		ms.order = append(ms.order, id)
	}
	ms.markers[id] = append(ms.markers[id], marks...)
	return marks, nil
}

// Remove unwraps every marker of id, keeping their children in place, merges
// the text nodes left adjacent and forgets id. It reports whether id was known.
func (ms *MarkerSet) Remove(id string) bool {
	marks, ok := ms.markers[id]
	if !ok {
		return false
	}
	parents := make([]*html.Node, 0, len(marks))
	for _, m := range marks {
		if p := dom.Unwrap(m); p != nil {
			parents = append(parents, p)
		}
	}
	for _, p := range parents {
		dom.Normalize(p)
	}
	ms.forget(id)
	return true
}

// Recolor swaps the color class on every marker of id. Text is untouched.
func (ms *MarkerSet) Recolor(id, color string) bool {
	marks, ok := ms.markers[id]
	if !ok {
		return false
	}
	for _, m := range marks {
		dom.SetAttr(m, "class", markerClass(color))
	}
	return true
}

// Markers returns the markers of id in document order.
func (ms *MarkerSet) Markers(id string) []*html.Node {
	return ms.markers[id]
}

// Has reports whether id has live markers.
func (ms *MarkerSet) Has(id string) bool {
	_, ok := ms.markers[id]
	return ok
}

// Len returns the number of ids with live markers.
func (ms *MarkerSet) Len() int { return len(ms.markers) }

// IDs returns the known ids in the order they were first applied.
func (ms *MarkerSet) IDs() []string {
	out := make([]string, len(ms.order))
	copy(out, ms.order)
	return out
}

// Text returns the concatenated text under the markers of id.
func (ms *MarkerSet) Text(id string) string {
	var sb strings.Builder
	for _, m := range ms.markers[id] {
		for _, t := range dom.TextNodes(m, nil) {
			sb.WriteString(t.Data)
		}
	}
	return sb.String()
}

func (ms *MarkerSet) forget(id string) {
	delete(ms.markers, id)
	for i, v := range ms.order {
		if v == id {
			ms.order = append(ms.order[:i], ms.order[i+1:]...)
			break
		}
	}
}

// Strip unwraps every marker element found under root, whatever set created
// it, and returns how many were removed. Used on documents saved with
// markers before restoring into them.
func Strip(root *html.Node) int {
	var found []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if IsMarker(n) {
			found = append(found, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	for _, m := range found {
		if p := dom.Unwrap(m); p != nil {
			dom.Normalize(p)
		}
	}
	return len(found)
}

// IsMarker reports whether n is a marker element.
func IsMarker(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode || n.DataAtom != atom.Mark {
		return false
	}
	_, ok := dom.Attr(n, IDAttr)
	return ok
}

// isolate splits s.Node so that exactly the covered runes sit in their own
// text node, and returns that node.
func isolate(s dom.Slice) *html.Node {
	n := s.Node
	if s.End < dom.TextLen(n) {
		_, _ = dom.SplitText(n, s.End)
	}
	if s.Start > 0 {
		tail, _ := dom.SplitText(n, s.Start)
		return tail
	}
	return n
}

// extractInto detaches n and reinserts it, inside a new marker, at the same
// position.
func extractInto(n *html.Node, color, id string) *html.Node {
	p, next := n.Parent, n.NextSibling
	p.RemoveChild(n)
	m := newMarker(color, id)
	m.AppendChild(n)
	p.InsertBefore(m, next)
	return m
}

func newMarker(color, id string) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Mark,
		Data:     MarkerTag,
		Attr: []html.Attribute{
			{Key: "class", Val: markerClass(color)},
			{Key: IDAttr, Val: id},
		},
	}
}

func markerClass(color string) string {
	return MarkerClass + " " + ColorPrefix + color
}

// MarkerColor returns the color encoded in a marker's class attribute.
func MarkerColor(m *html.Node) string {
	class, _ := dom.Attr(m, "class")
	for _, f := range strings.Fields(class) {
		if f != MarkerClass && strings.HasPrefix(f, ColorPrefix) {
			return strings.TrimPrefix(f, ColorPrefix)
		}
	}
	return ""
}

// rawText reports elements whose children must be plain text.
func rawText(n *html.Node) bool {
	switch n.DataAtom {
	case atom.Script, atom.Style, atom.Textarea, atom.Title, atom.Xmp,
		atom.Iframe, atom.Noembed, atom.Noframes, atom.Noscript, atom.Plaintext:
		return true
	}
	return false
}

// phrasing reports whether n normally takes text and inline children.
func phrasing(n *html.Node) bool {
	switch n.DataAtom {
	case atom.Html, atom.Head, atom.Table, atom.Thead, atom.Tbody, atom.Tfoot,
		atom.Tr, atom.Colgroup, atom.Select, atom.Optgroup, atom.Ul, atom.Ol,
		atom.Dl, atom.Frameset:
		return false
	}
	return true
}

func isBlank(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool { return !unicode.IsSpace(r) }) < 0
}

package anchor

import (
	"fmt"
	"unicode"

	"golang.org/x/net/html"

	"github.com/hazyhaar/webnote/dom"
)

// Entry is one text node of an index and its position in the flattened text.
type Entry struct {
	Node  *html.Node
	Start int
	Text  string
}

// End returns the offset just past the entry.
func (e Entry) End() int {
	return e.Start + len([]rune(e.Text))
}

// TextIndex is the flattened text of a subtree with a map back to the text
// nodes it came from. It is a snapshot: mutating the tree invalidates it.
type TextIndex struct {
	entries []Entry
	runes   []rune
	folded  []rune
}

// Index walks root depth-first and records every rendered text node.
// Text under script, style, noscript and template is skipped.
func Index(root *html.Node) *TextIndex {
	ix := &TextIndex{}
	for _, n := range dom.TextNodes(root, dom.SkipNonRendered) {
		r := []rune(n.Data)
		if len(r) == 0 {
			continue
		}
		ix.entries = append(ix.entries, Entry{Node: n, Start: len(ix.runes), Text: n.Data})
		ix.runes = append(ix.runes, r...)
	}
	ix.folded = foldRunes(ix.runes)
	return ix
}

// Len returns the length of the flattened text in characters.
func (ix *TextIndex) Len() int { return len(ix.runes) }

// Text returns the flattened text.
func (ix *TextIndex) Text() string { return string(ix.runes) }

// Entries returns the indexed text nodes in document order.
func (ix *TextIndex) Entries() []Entry { return ix.entries }

// Find returns the offset of the first case-insensitive occurrence of
// needle at or after from, or -1.
func (ix *TextIndex) Find(needle string, from int) int {
	n := foldRunes([]rune(needle))
	if len(n) == 0 || from < 0 {
		return -1
	}
	for i := from; i+len(n) <= len(ix.folded); i++ {
		if ix.folded[i] != n[0] {
			continue
		}
		if runesEqual(ix.folded[i:i+len(n)], n) {
			return i
		}
	}
	return -1
}

// FindAll returns the offsets of every case-insensitive occurrence of
// needle, left to right. Occurrences may overlap.
func (ix *TextIndex) FindAll(needle string) []int {
	var out []int
	for pos := ix.Find(needle, 0); pos >= 0; pos = ix.Find(needle, pos+1) {
		out = append(out, pos)
	}
	return out
}

// MapRange converts flattened offsets [start, end) into a range over the
// indexed text nodes. start belongs to the entry with s <= start < e; end
// belongs to the entry with s < end <= e, so an end on a node's upper bound
// stays in that node.
func (ix *TextIndex) MapRange(start, end int) (dom.Range, error) {
	if start < 0 || end > len(ix.runes) {
		return dom.Range{}, fmt.Errorf("%w: [%d,%d) outside %d", ErrUnmapped, start, end, len(ix.runes))
	}
	if start >= end {
		return dom.Range{}, fmt.Errorf("%w: [%d,%d)", ErrRangeDegenerate, start, end)
	}
	var r dom.Range
	for _, e := range ix.entries {
		s, t := e.Start, e.End()
		if r.StartContainer == nil && start >= s && start < t {
			r.StartContainer, r.StartOffset = e.Node, start-s
		}
		if end > s && end <= t {
			r.EndContainer, r.EndOffset = e.Node, end-s
			break
		}
	}
	if r.StartContainer == nil || r.EndContainer == nil {
		return dom.Range{}, fmt.Errorf("%w: [%d,%d)", ErrUnmapped, start, end)
	}
	return r, nil
}

func foldRunes(r []rune) []rune {
	out := make([]rune, len(r))
	for i, c := range r {
		out[i] = unicode.ToLower(c)
	}
	return out
}

func runesEqual(a, b []rune) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

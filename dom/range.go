package dom

import (
	"errors"
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

var (
	// ErrNotText is returned when a boundary container is not a text node.
	ErrNotText = errors.New("dom: boundary is not a text node")

	// ErrOffset is returned when a boundary offset is outside its node.
	ErrOffset = errors.New("dom: offset out of range")

	// ErrOrder is returned when the end boundary precedes the start or the
	// boundaries live in different trees.
	ErrOrder = errors.New("dom: boundaries out of order")

	// ErrCollapsed is returned when a range holds no text.
	ErrCollapsed = errors.New("dom: range is collapsed")
)

// Range is a span between two text-node boundary points.
type Range struct {
	StartContainer *html.Node
	StartOffset    int
	EndContainer   *html.Node
	EndOffset      int
}

// Slice is the part of one text node covered by a range.
type Slice struct {
	Node  *html.Node
	Start int
	End   int
}

// Text returns the covered runes of the slice.
func (s Slice) Text() string {
	return Substr(s.Node.Data, s.Start, s.End)
}

// NewRange validates the boundaries and returns the range.
func NewRange(start *html.Node, startOff int, end *html.Node, endOff int) (Range, error) {
	r := Range{StartContainer: start, StartOffset: startOff, EndContainer: end, EndOffset: endOff}
	if err := r.Validate(); err != nil {
		return Range{}, err
	}
	return r, nil
}

// Validate checks that both boundaries are text nodes in the same tree, that
// offsets are in bounds and that start does not come after end.
func (r Range) Validate() error {
	if !IsText(r.StartContainer) || !IsText(r.EndContainer) {
		return ErrNotText
	}
	if r.StartOffset < 0 || r.StartOffset > TextLen(r.StartContainer) ||
		r.EndOffset < 0 || r.EndOffset > TextLen(r.EndContainer) {
		return ErrOffset
	}
	if r.StartContainer == r.EndContainer {
		if r.StartOffset > r.EndOffset {
			return ErrOrder
		}
		return nil
	}
	if Root(r.StartContainer) != Root(r.EndContainer) {
		return ErrOrder
	}
	si, ei := -1, -1
	for i, n := range TextNodes(Root(r.StartContainer), nil) {
		switch n {
		case r.StartContainer:
			si = i
		case r.EndContainer:
			ei = i
		}
	}
	if si < 0 || ei < 0 || si > ei {
		return ErrOrder
	}
	return nil
}

// Collapsed reports whether the range covers nothing.
func (r Range) Collapsed() bool {
	return r.StartContainer == r.EndContainer && r.StartOffset == r.EndOffset
}

// Slices returns the non-empty per-node pieces of the range in document order.
// Text inside non-rendered elements lying between the boundaries is left out.
func (r Range) Slices() ([]Slice, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if r.StartContainer == r.EndContainer {
		if r.EndOffset == r.StartOffset {
			return nil, nil
		}
		return []Slice{{Node: r.StartContainer, Start: r.StartOffset, End: r.EndOffset}}, nil
	}

	var out []Slice
	inside := false
	for _, n := range TextNodes(Root(r.StartContainer), nil) {
		if n == r.StartContainer {
			inside = true
		}
		if !inside {
			continue
		}
		if n != r.StartContainer && n != r.EndContainer && hidden(n) {
			continue
		}
		s, e := 0, TextLen(n)
		if n == r.StartContainer {
			s = r.StartOffset
		}
		if n == r.EndContainer {
			e = r.EndOffset
		}
		if e > s {
			out = append(out, Slice{Node: n, Start: s, End: e})
		}
		if n == r.EndContainer {
			break
		}
	}
	return out, nil
}

// Text returns the literal text covered by the range. An invalid range has
// no text.
func (r Range) Text() string {
	slices, err := r.Slices()
	if err != nil {
		return ""
	}
	var sb strings.Builder
	for _, s := range slices {
		sb.WriteString(s.Text())
	}
	return sb.String()
}

// Trim moves the boundaries inward past leading and trailing whitespace.
// A range that holds only whitespace yields ErrCollapsed.
func (r Range) Trim() (Range, error) {
	slices, err := r.Slices()
	if err != nil {
		return Range{}, err
	}

	type point struct {
		node *html.Node
		off  int
	}
	var first, last *point
	for _, s := range slices {
		runes := []rune(s.Node.Data)
		for i := s.Start; i < s.End; i++ {
			if unicode.IsSpace(runes[i]) {
				continue
			}
			if first == nil {
				first = &point{s.Node, i}
			}
			last = &point{s.Node, i + 1}
		}
	}
	if first == nil {
		return Range{}, ErrCollapsed
	}
	return Range{
		StartContainer: first.node,
		StartOffset:    first.off,
		EndContainer:   last.node,
		EndOffset:      last.off,
	}, nil
}

func hidden(n *html.Node) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if SkipNonRendered(p) {
			return true
		}
	}
	return false
}

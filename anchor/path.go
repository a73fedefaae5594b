// CLAUDE:SUMMARY Positional addresses (/html/body/div[2]/text()[1]) for nodes of an x/net/html tree.
package anchor

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// TextStep is the tag of the terminal step addressing a text node.
const TextStep = "text()"

// Step is one hop of a Path: the Index-th (1-based) child named Tag.
// For TextStep the index counts sibling text nodes.
type Step struct {
	Tag   string
	Index int
}

func (s Step) String() string {
	return fmt.Sprintf("%s[%d]", s.Tag, s.Index)
}

// Path addresses a node by its structural position from the document root.
// Paths are values: they hold no reference to any tree.
type Path []Step

// String renders the path in XPath form. The fixed roots render without a
// predicate: /html and /html/body.
func (p Path) String() string {
	var sb strings.Builder
	for i, s := range p {
		sb.WriteByte('/')
		if s.Index == 1 && ((i == 0 && s.Tag == "html") || (i == 1 && s.Tag == "body" && p[0].Tag == "html")) {
			sb.WriteString(s.Tag)
			continue
		}
		sb.WriteString(s.String())
	}
	return sb.String()
}

// IsText reports whether the path ends at a text node.
func (p Path) IsText() bool {
	return len(p) > 0 && p[len(p)-1].Tag == TextStep
}

// Equal reports whether two paths have identical steps.
func (p Path) Equal(o Path) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if p[i] != o[i] {
			return false
		}
	}
	return true
}

// ParsePath parses the form produced by Path.String. A step without a
// predicate has index 1.
func ParsePath(s string) (Path, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "/") || strings.HasPrefix(s, "//") {
		return nil, fmt.Errorf("%w: %q", ErrBadPath, s)
	}
	parts := strings.Split(s[1:], "/")
	p := make(Path, 0, len(parts))
	for i, part := range parts {
		st, err := parseStep(part)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrBadPath, s, err)
		}
		if st.Tag == TextStep && i != len(parts)-1 {
			return nil, fmt.Errorf("%w: %q: text() must be last", ErrBadPath, s)
		}
		p = append(p, st)
	}
	return p, nil
}

func parseStep(step string) (Step, error) {
	if step == "" {
		return Step{}, fmt.Errorf("empty step")
	}
	idx := strings.IndexByte(step, '[')
	if idx < 0 {
		return Step{Tag: strings.ToLower(step), Index: 1}, nil
	}
	if !strings.HasSuffix(step, "]") || idx == 0 {
		return Step{}, fmt.Errorf("bad step %q", step)
	}
	n, err := strconv.Atoi(step[idx+1 : len(step)-1])
	if err != nil || n < 1 {
		return Step{}, fmt.Errorf("bad position in %q", step)
	}
	return Step{Tag: strings.ToLower(step[:idx]), Index: n}, nil
}

// MarshalJSON encodes the path as its string form.
func (p Path) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON decodes a path from its string form. An empty string
// decodes to a nil path (an address that could not be computed).
func (p *Path) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*p = nil
		return nil
	}
	parsed, err := ParsePath(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// AddressOf computes the path of n. Element steps count same-tag element
// siblings; a text node adds a terminal text() step counting sibling text
// nodes. The walk stops at <html> and <body>, which get fixed steps.
func AddressOf(n *html.Node) (Path, error) {
	if n == nil {
		return nil, ErrUnaddressable
	}
	var rev Path
	for cur := n; ; cur = cur.Parent {
		switch {
		case cur.Type == html.ElementNode && cur.DataAtom == atom.Html:
			rev = append(rev, Step{Tag: "html", Index: 1})
			return reverse(rev), nil
		case cur.Type == html.ElementNode && cur.DataAtom == atom.Body:
			rev = append(rev, Step{Tag: "body", Index: 1}, Step{Tag: "html", Index: 1})
			return reverse(rev), nil
		}
		if cur.Parent == nil {
			return nil, ErrUnaddressable
		}
		switch cur.Type {
		case html.TextNode:
			if cur != n {
				return nil, ErrUnaddressable
			}
			rev = append(rev, Step{Tag: TextStep, Index: textRank(cur)})
		case html.ElementNode:
			rev = append(rev, Step{Tag: tagName(cur), Index: elementRank(cur)})
		default:
			return nil, ErrUnaddressable
		}
	}
}

// Resolve replays p from the document containing root. It fails with
// ErrAddressUnresolvable when a step has no matching child.
func Resolve(root *html.Node, p Path) (*html.Node, error) {
	if len(p) == 0 {
		return nil, fmt.Errorf("%w: empty path", ErrAddressUnresolvable)
	}
	for root.Parent != nil {
		root = root.Parent
	}
	cur := root
	for _, s := range p {
		next := child(cur, s)
		if next == nil {
			return nil, fmt.Errorf("%w: no %s under %s", ErrAddressUnresolvable, s, describe(cur))
		}
		cur = next
	}
	return cur, nil
}

func child(parent *html.Node, s Step) *html.Node {
	pos := 0
	for c := parent.FirstChild; c != nil; c = c.NextSibling {
		if s.Tag == TextStep {
			if c.Type != html.TextNode {
				continue
			}
		} else if c.Type != html.ElementNode || tagName(c) != s.Tag {
			continue
		}
		pos++
		if pos == s.Index {
			return c
		}
	}
	return nil
}

func elementRank(n *html.Node) int {
	name := tagName(n)
	idx := 1
	for s := n.PrevSibling; s != nil; s = s.PrevSibling {
		if s.Type == html.ElementNode && tagName(s) == name {
			idx++
		}
	}
	return idx
}

func textRank(n *html.Node) int {
	idx := 1
	for s := n.PrevSibling; s != nil; s = s.PrevSibling {
		if s.Type == html.TextNode {
			idx++
		}
	}
	return idx
}

func tagName(n *html.Node) string {
	return strings.ToLower(n.Data)
}

func describe(n *html.Node) string {
	if n == nil {
		return "nothing"
	}
	switch n.Type {
	case html.DocumentNode:
		return "document"
	case html.ElementNode:
		return tagName(n)
	}
	return "node"
}

func reverse(p Path) Path {
	for i, j := 0, len(p)-1; i < j; i, j = i+1, j-1 {
		p[i], p[j] = p[j], p[i]
	}
	return p
}

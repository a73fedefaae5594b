// CLAUDE:SUMMARY Re-anchors a stored span: address match, then context search, then bare text search.
package anchor

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"golang.org/x/net/html"

	"github.com/hazyhaar/webnote/dom"
)

// State is a step of the resolution state machine.
type State int

const (
	AddressMatch State = iota
	ContextSearch
	BareTextSearch
	Resolved
	Exhausted
)

func (s State) String() string {
	switch s {
	case AddressMatch:
		return "address"
	case ContextSearch:
		return "context"
	case BareTextSearch:
		return "text"
	case Resolved:
		return "resolved"
	case Exhausted:
		return "exhausted"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Target is what the resolver looks for: the recorded text of a span and
// where it was captured.
type Target struct {
	Text     string
	Position Descriptor
}

// Attempt records why a tier did not resolve.
type Attempt struct {
	Tier State
	Err  error
}

// Resolution is the outcome of Resolve. On success Range is live and By
// names the tier that produced it.
type Resolution struct {
	State    State
	By       State
	Range    dom.Range
	Attempts []Attempt
}

// Resolver locates recorded spans in one document.
type Resolver struct {
	doc *html.Node
}

// NewResolver returns a resolver over the document containing doc.
func NewResolver(doc *html.Node) *Resolver {
	return &Resolver{doc: dom.Root(doc)}
}

// Index builds a text index of the document body.
func (rv *Resolver) Index() *TextIndex {
	return Index(dom.Body(rv.doc))
}

// Resolve runs the tiers in order until one yields a range whose text is the
// recorded text. When all fail the error wraps ErrSearchExhausted.
func (rv *Resolver) Resolve(t Target) (Resolution, error) {
	res := Resolution{State: AddressMatch}
	if NormalizeText(t.Text) == "" {
		res.State = Exhausted
		return res, fmt.Errorf("%w: %w", ErrSearchExhausted, ErrRangeDegenerate)
	}

	var ix *TextIndex
	index := func() *TextIndex {
		if ix == nil {
			ix = rv.Index()
		}
		return ix
	}

	for {
		var (
			r    dom.Range
			err  error
			next State
		)
		switch res.State {
		case AddressMatch:
			r, err = rv.MatchAddress(t)
			next = ContextSearch
		case ContextSearch:
			r, err = rv.SearchContext(index(), t)
			next = BareTextSearch
		case BareTextSearch:
			r, err = rv.SearchText(index(), t)
			next = Exhausted
		case Resolved:
			return res, nil
		case Exhausted:
			errs := make([]error, 0, len(res.Attempts))
			for _, a := range res.Attempts {
				errs = append(errs, fmt.Errorf("%s: %w", a.Tier, a.Err))
			}
			return res, fmt.Errorf("%w: %w", ErrSearchExhausted, errors.Join(errs...))
		}

		if err != nil {
			res.Attempts = append(res.Attempts, Attempt{Tier: res.State, Err: err})
			res.State = next
			continue
		}
		res.By, res.Range, res.State = res.State, r, Resolved
	}
}

// MatchAddress resolves both recorded addresses and accepts the range when
// its normalized text equals the recorded text.
func (rv *Resolver) MatchAddress(t Target) (dom.Range, error) {
	pos := t.Position
	start, err := Resolve(rv.doc, pos.StartAddress)
	if err != nil {
		return dom.Range{}, err
	}
	end, err := Resolve(rv.doc, pos.EndAddress)
	if err != nil {
		return dom.Range{}, err
	}
	r, err := dom.NewRange(start, pos.StartOffset, end, pos.EndOffset)
	if err != nil {
		return dom.Range{}, fmt.Errorf("%w: %w", ErrAddressUnresolvable, err)
	}
	got, want := NormalizeText(r.Text()), NormalizeText(t.Text)
	if got != want {
		return dom.Range{}, fmt.Errorf("%w: have %q", ErrTextMismatch, truncate(got, 60))
	}
	return r, nil
}

// SearchContext looks for contextBefore+text+contextAfter, ignoring case.
// Occurrences are tried left to right; the first whose text part maps onto
// text nodes wins.
func (rv *Resolver) SearchContext(ix *TextIndex, t Target) (dom.Range, error) {
	key := t.Position.ContextBefore + t.Text + t.Position.ContextAfter
	skip := utf8.RuneCountInString(t.Position.ContextBefore)
	n := utf8.RuneCountInString(t.Text)
	for _, pos := range ix.FindAll(key) {
		r, err := ix.MapRange(pos+skip, pos+skip+n)
		if err == nil {
			return r, nil
		}
	}
	return dom.Range{}, fmt.Errorf("%w: context key of %d chars", ErrNoOccurrence, utf8.RuneCountInString(key))
}

// SearchText looks for the recorded text alone, ignoring case. Only the
// first occurrence is considered, even when the text repeats.
func (rv *Resolver) SearchText(ix *TextIndex, t Target) (dom.Range, error) {
	pos := ix.Find(t.Text, 0)
	if pos < 0 {
		return dom.Range{}, fmt.Errorf("%w: %q", ErrNoOccurrence, truncate(t.Text, 60))
	}
	return ix.MapRange(pos, pos+utf8.RuneCountInString(t.Text))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

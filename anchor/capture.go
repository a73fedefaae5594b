package anchor

import (
	"fmt"
	"unicode/utf8"

	"github.com/hazyhaar/webnote/dom"
)

// ContextLength is the number of characters captured on each side of a span.
const ContextLength = 30

// Descriptor is the serializable position of a span. Offsets are character
// offsets into the addressed text nodes. The contexts are a snapshot taken
// at capture time and are never re-derived from the addresses.
type Descriptor struct {
	StartAddress  Path   `json:"startAddress"`
	StartOffset   int    `json:"startOffset"`
	EndAddress    Path   `json:"endAddress"`
	EndOffset     int    `json:"endOffset"`
	ContextBefore string `json:"contextBefore"`
	ContextAfter  string `json:"contextAfter"`
}

// Capture describes r with ContextLength characters of context.
func Capture(r dom.Range) (Descriptor, error) {
	return CaptureContext(r, ContextLength)
}

// CaptureContext describes r with up to n characters of context on each
// side. Context never crosses the boundary text nodes.
func CaptureContext(r dom.Range, n int) (Descriptor, error) {
	if err := r.Validate(); err != nil {
		return Descriptor{}, fmt.Errorf("%w: %w", ErrRangeDegenerate, err)
	}
	if r.Collapsed() {
		return Descriptor{}, fmt.Errorf("%w: collapsed", ErrRangeDegenerate)
	}
	start, err := AddressOf(r.StartContainer)
	if err != nil {
		return Descriptor{}, fmt.Errorf("anchor: capture start: %w", err)
	}
	end, err := AddressOf(r.EndContainer)
	if err != nil {
		return Descriptor{}, fmt.Errorf("anchor: capture end: %w", err)
	}

	endLen := utf8.RuneCountInString(r.EndContainer.Data)
	return Descriptor{
		StartAddress:  start,
		StartOffset:   r.StartOffset,
		EndAddress:    end,
		EndOffset:     r.EndOffset,
		ContextBefore: dom.Substr(r.StartContainer.Data, r.StartOffset-n, r.StartOffset),
		ContextAfter:  dom.Substr(r.EndContainer.Data, r.EndOffset, min(r.EndOffset+n, endLen)),
	}, nil
}

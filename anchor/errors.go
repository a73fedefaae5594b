package anchor

import "errors"

var (
	// ErrAddressUnresolvable is returned when a path no longer leads to a
	// node in the current tree. Expected after edits; callers fall back.
	ErrAddressUnresolvable = errors.New("anchor: address unresolvable")

	// ErrTextMismatch is returned when an address resolves but the text it
	// covers differs from the recorded text.
	ErrTextMismatch = errors.New("anchor: text mismatch")

	// ErrSearchExhausted is returned when every resolution strategy failed.
	ErrSearchExhausted = errors.New("anchor: search exhausted")

	// ErrRangeDegenerate is returned for empty ranges or ranges whose
	// boundaries are not text nodes.
	ErrRangeDegenerate = errors.New("anchor: range degenerate")

	// ErrMarkerApply is returned when a marker could not enclose any text.
	ErrMarkerApply = errors.New("anchor: marker apply failed")

	// ErrUnaddressable is returned for nodes detached from any document.
	ErrUnaddressable = errors.New("anchor: node unaddressable")

	// ErrUnmapped is returned when index offsets fall outside the indexed text.
	ErrUnmapped = errors.New("anchor: offsets not mapped")

	// ErrNoOccurrence is returned by a search tier that found no usable
	// occurrence of its key.
	ErrNoOccurrence = errors.New("anchor: no occurrence")

	// ErrBadPath is returned by ParsePath for malformed addresses.
	ErrBadPath = errors.New("anchor: malformed path")
)

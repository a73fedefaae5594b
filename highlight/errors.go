package highlight

import (
	"errors"

	"github.com/hazyhaar/webnote/highlight/internal/store"
)

var (
	// ErrNoTextInRange is returned by CreateAt when the selection holds no
	// text once trimmed.
	ErrNoTextInRange = errors.New("highlight: no-text-in-range")

	// ErrUnknownColor is returned for colors outside the palette.
	ErrUnknownColor = errors.New("highlight: unknown color")

	// ErrQuoteNotFound is returned by FindQuote when the quote is not in
	// the page text.
	ErrQuoteNotFound = errors.New("highlight: quote not found")

	// ErrBadURL is returned when a document identity cannot be derived.
	ErrBadURL = errors.New("highlight: bad document url")

	// ErrPageNotOpen is returned by operations that need the live tree of a
	// page that was never opened or attached.
	ErrPageNotOpen = errors.New("highlight: page not open")

	// ErrNotFound is returned for unknown highlight or page ids.
	ErrNotFound = store.ErrNotFound
)

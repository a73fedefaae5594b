package highlight

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var notePolicy = bluemonday.StrictPolicy()

// SanitizeNote strips markup from a note. Notes are plain text: the panel
// shows them verbatim and exports embed them in Markdown.
func SanitizeNote(s string) string {
	return strings.TrimSpace(html.UnescapeString(notePolicy.Sanitize(s)))
}

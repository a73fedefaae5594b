package highlight

import (
	"fmt"
	"net/url"
	"slices"
	"sort"
	"strings"
	"unicode/utf8"
)

// Colors is the highlight palette, in menu order.
var Colors = []string{"yellow", "green", "blue", "pink", "purple"}

// DefaultColor is used when a caller does not pick one.
const DefaultColor = "yellow"

// ValidColor reports whether c is in the palette.
func ValidColor(c string) bool {
	return slices.Contains(Colors, c)
}

// DocumentID derives the identity records are stored under:
// "annotations_" + origin + path. Query and fragment are ignored so that
// tracking parameters do not split one document's highlights.
func DocumentID(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadURL, err)
	}
	switch u.Scheme {
	case "http", "https":
		if u.Host == "" {
			return "", fmt.Errorf("%w: %q has no host", ErrBadURL, rawURL)
		}
		path := u.EscapedPath()
		if path == "" {
			path = "/"
		}
		return "annotations_" + u.Scheme + "://" + origin(u) + path, nil
	case "file":
		return "annotations_file://" + u.EscapedPath(), nil
	}
	return "", fmt.Errorf("%w: unsupported scheme %q", ErrBadURL, u.Scheme)
}

// origin returns the lowercased host with the scheme's default port dropped.
func origin(u *url.URL) string {
	host := strings.ToLower(u.Host)
	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		host = strings.TrimSuffix(host, ":"+port)
	}
	return strings.TrimSuffix(host, ":")
}

// SummaryTextLen is the number of characters of text a Summary keeps.
const SummaryTextLen = 100

// Summary is the panel view of a record.
type Summary struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Color     string `json:"color"`
	Note      string `json:"note,omitempty"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt"`
	Live      bool   `json:"live"`
}

// Summaries returns records newest first with text cut to SummaryTextLen.
// live may be nil; when set it marks which ids have markers on the page.
func Summaries(records []*Record, live func(id string) bool) []Summary {
	out := make([]Summary, 0, len(records))
	for _, r := range records {
		s := Summary{
			ID:        r.ID,
			Text:      truncate(r.Text, SummaryTextLen),
			Color:     r.Color,
			Note:      r.Note,
			CreatedAt: r.CreatedAt,
			UpdatedAt: r.UpdatedAt,
		}
		if live != nil {
			s.Live = live(r.ID)
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	return out
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}

package anchor

import (
	"regexp"
	"strings"
)

var spaceRun = regexp.MustCompile(`\s+`)

// NormalizeText collapses whitespace runs to one space and trims the ends.
func NormalizeText(s string) string {
	return strings.TrimSpace(spaceRun.ReplaceAllString(s, " "))
}

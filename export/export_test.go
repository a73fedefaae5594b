package export

import (
	"strings"
	"testing"
	"time"

	"golang.org/x/net/html"

	"github.com/hazyhaar/webnote/anchor"
)

func parse(t *testing.T, s string) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

func TestPage_MarkersBecomeStrong(t *testing.T) {
	doc := parse(t, `<html><body><p>Hello <mark class="webnote-highlight webnote-yellow" data-highlight-id="hl_1">world</mark>, again.</p></body></html>`)

	md, err := New().Page(doc, "https://example.com/a")
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	if !strings.Contains(md, "**world**") {
		t.Errorf("expected strong highlight, got %q", md)
	}
	if strings.Contains(md, "mark") {
		t.Errorf("marker leaked into markdown: %q", md)
	}

	if n := anchor.Strip(doc); n != 1 {
		t.Errorf("live tree should still hold its marker, stripped %d", n)
	}
}

func TestPage_RelativeLinks(t *testing.T) {
	doc := parse(t, `<html><body><p><a href="/b">next</a></p></body></html>`)
	md, err := New().Page(doc, "https://example.com/a")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(md, "https://example.com/b") {
		t.Errorf("link not resolved against the page: %q", md)
	}
}

func TestDigest(t *testing.T) {
	items := []Item{
		{ID: "hl_1", Text: "the cat ran", Color: "green", Note: "check this", CreatedAt: time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "hl_2", Text: "gone text", Color: "yellow", Unplaced: true},
	}
	md, err := New().Digest("Field notes", "https://example.com/a", items)
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	for _, want := range []string{
		"Field notes",
		"> the cat ran",
		"green · 2026-10-01",
		"check this",
		"> gone text",
		"not found on page",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("digest missing %q:\n%s", want, md)
		}
	}
	if strings.Index(md, "the cat ran") > strings.Index(md, "gone text") {
		t.Error("items should keep their order")
	}
}

func TestDigest_Empty(t *testing.T) {
	md, err := New().Digest("", "https://example.com/a", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(md, "No highlights.") {
		t.Errorf("got %q", md)
	}
}

// CLAUDE:SUMMARY Markdown exports: annotated page body with highlights as strong text, and a per-page highlight digest with notes.
// Package export renders annotated pages and highlight digests as Markdown.
package export

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/webnote/anchor"
	"github.com/hazyhaar/webnote/dom"
)

// Item is one highlight in a digest.
type Item struct {
	ID        string
	Text      string
	Color     string
	Note      string
	CreatedAt time.Time
	// Unplaced is set when the highlight could not be found on the page.
	Unplaced bool
}

// Exporter converts html to Markdown.
type Exporter struct {
	conv *converter.Converter
}

// New creates an Exporter with the commonmark and table rules.
func New() *Exporter {
	return &Exporter{
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

// Page converts the body of doc to Markdown. Highlight markers become
// strong emphasis; the live tree is not modified. Relative links are
// resolved against pageURL.
func (e *Exporter) Page(doc *html.Node, pageURL string) (string, error) {
	body := dom.Body(doc)
	if body == nil {
		return "", fmt.Errorf("export: document has no body")
	}
	clone := dom.Clone(body)
	strongMarkers(clone)
	return e.convert(clone, pageURL)
}

// Digest lists items under the page title, with their notes.
func (e *Exporter) Digest(title, pageURL string, items []Item) (string, error) {
	root := el(atom.Div)
	if title == "" {
		title = pageURL
	}
	h := el(atom.H1)
	h.AppendChild(text(title))
	root.AppendChild(h)

	if pageURL != "" {
		p := el(atom.P)
		a := el(atom.A)
		a.Attr = []html.Attribute{{Key: "href", Val: pageURL}}
		a.AppendChild(text(pageURL))
		p.AppendChild(a)
		root.AppendChild(p)
	}

	if len(items) == 0 {
		p := el(atom.P)
		p.AppendChild(text("No highlights."))
		root.AppendChild(p)
		return e.convert(root, pageURL)
	}

	for _, it := range items {
		q := el(atom.Blockquote)
		qp := el(atom.P)
		qp.AppendChild(text(it.Text))
		q.AppendChild(qp)
		root.AppendChild(q)

		meta := el(atom.P)
		em := el(atom.Em)
		em.AppendChild(text(metaLine(it)))
		meta.AppendChild(em)
		root.AppendChild(meta)

		if note := strings.TrimSpace(it.Note); note != "" {
			np := el(atom.P)
			b := el(atom.Strong)
			b.AppendChild(text("Note:"))
			np.AppendChild(b)
			np.AppendChild(text(" " + note))
			root.AppendChild(np)
		}
	}
	return e.convert(root, pageURL)
}

func (e *Exporter) convert(n *html.Node, pageURL string) (string, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return "", fmt.Errorf("export: render: %w", err)
	}
	var md string
	var err error
	if pageURL != "" {
		md, err = e.conv.ConvertString(buf.String(), converter.WithDomain(pageURL))
	} else {
		md, err = e.conv.ConvertString(buf.String())
	}
	if err != nil {
		return "", fmt.Errorf("export: convert: %w", err)
	}
	return strings.TrimSpace(md) + "\n", nil
}

func metaLine(it Item) string {
	parts := []string{it.Color}
	if !it.CreatedAt.IsZero() {
		parts = append(parts, it.CreatedAt.UTC().Format("2006-01-02"))
	}
	if it.Unplaced {
		parts = append(parts, "not found on page")
	}
	return strings.Join(parts, " · ")
}

// strongMarkers turns every highlight marker under n into a strong element.
func strongMarkers(n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if anchor.IsMarker(c) {
			c.Data = "strong"
			c.DataAtom = atom.Strong
			c.Attr = nil
		}
		strongMarkers(c)
	}
}

func el(a atom.Atom) *html.Node {
	return &html.Node{Type: html.ElementNode, Data: a.String(), DataAtom: a}
}

func text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

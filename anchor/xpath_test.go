package anchor

import (
	"testing"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/hazyhaar/webnote/dom"
)

// Stored addresses are also evaluated by browsers with document.evaluate, so
// every path AddressOf emits must select the same node under a standard
// XPath engine.
func TestAddressOf_StandardXPath(t *testing.T) {
	doc := parse(t, `<html><head><title>t</title></head><body>
<div><p>one <b>bold</b> tail</p><p>two</p></div>
<div><span>a</span><p>three <i>it</i> and <i>it again</i></p></div>
<ul><li>x</li><li>y <em>z</em></li></ul>
</body></html>`)

	var nodes []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode || n.Type == html.TextNode {
			nodes = append(nodes, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(dom.Body(doc))
	if len(nodes) < 20 {
		t.Fatalf("fixture too small: %d nodes", len(nodes))
	}

	for _, n := range nodes {
		p, err := AddressOf(n)
		if err != nil {
			t.Fatalf("address of %q: %v", n.Data, err)
		}
		got, err := htmlquery.Query(doc, p.String())
		if err != nil {
			t.Fatalf("xpath %s: %v", p, err)
		}
		if got != n {
			t.Errorf("xpath %s selected %v, want %q", p, got, n.Data)
		}
	}
}

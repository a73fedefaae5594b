package anchor

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"golang.org/x/net/html"

	"github.com/hazyhaar/webnote/dom"
)

func parse(t *testing.T, src string) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

// selectText returns a range over the first occurrence of sub inside a
// single text node of doc.
func selectText(t *testing.T, doc *html.Node, sub string) dom.Range {
	t.Helper()
	for _, n := range dom.TextNodes(doc, nil) {
		i := strings.Index(n.Data, sub)
		if i < 0 {
			continue
		}
		start := utf8.RuneCountInString(n.Data[:i])
		r, err := dom.NewRange(n, start, n, start+utf8.RuneCountInString(sub))
		if err != nil {
			t.Fatalf("range: %v", err)
		}
		return r
	}
	t.Fatalf("text %q not found", sub)
	return dom.Range{}
}

func renderBody(t *testing.T, doc *html.Node) string {
	t.Helper()
	var sb strings.Builder
	if err := html.Render(&sb, dom.Body(doc)); err != nil {
		t.Fatalf("render: %v", err)
	}
	return sb.String()
}

func target(t *testing.T, r dom.Range) Target {
	t.Helper()
	d, err := Capture(r)
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	return Target{Text: r.Text(), Position: d}
}

// --- addressing ---

func TestAddressOf_RoundTrip(t *testing.T) {
	doc := parse(t, `<html><body><div><p>a</p><p>b <em>c</em> d</p></div><div>x</div></body></html>`)
	n := selectText(t, doc, " d").StartContainer

	p, err := AddressOf(n)
	if err != nil {
		t.Fatalf("address: %v", err)
	}
	if got, want := p.String(), "/html/body/div[1]/p[2]/text()[2]"; got != want {
		t.Errorf("path: got %s, want %s", got, want)
	}
	for i := 0; i < 2; i++ {
		got, err := Resolve(doc, p)
		if err != nil {
			t.Fatalf("resolve #%d: %v", i, err)
		}
		if got != n {
			t.Fatalf("resolve #%d: got a different node", i)
		}
	}
}

func TestAddressOf_Elements(t *testing.T) {
	doc := parse(t, `<div>x</div><div><span>y</span></div>`)
	span := selectText(t, doc, "y").StartContainer.Parent

	p, err := AddressOf(span)
	if err != nil {
		t.Fatalf("address: %v", err)
	}
	if got := p.String(); got != "/html/body/div[2]/span[1]" {
		t.Errorf("path: got %s", got)
	}
	if p.IsText() {
		t.Error("element path should not be a text path")
	}
	if b, _ := AddressOf(dom.Body(doc)); b.String() != "/html/body" {
		t.Errorf("body path: got %s", b)
	}
}

func TestAddressOf_Detached(t *testing.T) {
	el := &html.Node{Type: html.ElementNode, Data: "p"}
	txt := &html.Node{Type: html.TextNode, Data: "loose"}
	el.AppendChild(txt)

	if _, err := AddressOf(txt); !errors.Is(err, ErrUnaddressable) {
		t.Errorf("detached text: got %v, want ErrUnaddressable", err)
	}
	if _, err := AddressOf(nil); !errors.Is(err, ErrUnaddressable) {
		t.Errorf("nil: got %v, want ErrUnaddressable", err)
	}
}

func TestResolve_OutOfRange(t *testing.T) {
	doc := parse(t, `<p>only</p>`)
	p, err := ParsePath("/html/body/p[2]/text()[1]")
	if err != nil {
		t.Fatalf("parse path: %v", err)
	}
	if _, err := Resolve(doc, p); !errors.Is(err, ErrAddressUnresolvable) {
		t.Errorf("got %v, want ErrAddressUnresolvable", err)
	}
}

func TestParsePath(t *testing.T) {
	p, err := ParsePath("/html/body/div[2]/P/text()[3]")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := Path{{"html", 1}, {"body", 1}, {"div", 2}, {"p", 1}, {TextStep, 3}}
	if !p.Equal(want) {
		t.Errorf("steps: got %v", p)
	}
	if got := p.String(); got != "/html/body/div[2]/p[1]/text()[3]" {
		t.Errorf("string: got %s", got)
	}

	for _, bad := range []string{"", "div", "//p", "/html/text()[1]/p", "/html/p[0]", "/html/p[x]", "/html//p"} {
		if _, err := ParsePath(bad); !errors.Is(err, ErrBadPath) {
			t.Errorf("ParsePath(%q): got %v, want ErrBadPath", bad, err)
		}
	}
}

func TestDescriptor_JSON(t *testing.T) {
	doc := parse(t, `<p>Hello world, this is a test.</p>`)
	d, err := Capture(selectText(t, doc, "world"))
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	b, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(b), `"startAddress":"/html/body/p[1]/text()[1]"`) {
		t.Errorf("json: %s", b)
	}
	var back Descriptor
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !back.StartAddress.Equal(d.StartAddress) || back.ContextAfter != d.ContextAfter {
		t.Errorf("round trip: got %+v", back)
	}
}

// --- capture ---

func TestCapture_Context(t *testing.T) {
	doc := parse(t, `<p>Hello world, this is a test.</p>`)
	d, err := Capture(selectText(t, doc, "world"))
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if d.ContextBefore != "Hello " {
		t.Errorf("contextBefore: got %q", d.ContextBefore)
	}
	if d.ContextAfter != ", this is a test." {
		t.Errorf("contextAfter: got %q", d.ContextAfter)
	}
	if d.StartOffset != 6 || d.EndOffset != 11 {
		t.Errorf("offsets: got %d-%d", d.StartOffset, d.EndOffset)
	}
}

func TestCapture_ContextCapped(t *testing.T) {
	long := strings.Repeat("a", 40)
	doc := parse(t, `<p>`+long+`MARK`+long+`</p>`)
	d, err := Capture(selectText(t, doc, "MARK"))
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if n := utf8.RuneCountInString(d.ContextBefore); n != ContextLength {
		t.Errorf("contextBefore length: got %d", n)
	}
	if n := utf8.RuneCountInString(d.ContextAfter); n != ContextLength {
		t.Errorf("contextAfter length: got %d", n)
	}
}

func TestCapture_NoNodeCrossing(t *testing.T) {
	doc := parse(t, `<p>before <b>bold</b> after</p>`)
	d, err := Capture(selectText(t, doc, "bold"))
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if d.ContextBefore != "" || d.ContextAfter != "" {
		t.Errorf("context should stay inside the node, got %q / %q", d.ContextBefore, d.ContextAfter)
	}
}

func TestCapture_Degenerate(t *testing.T) {
	doc := parse(t, `<p>text</p>`)
	n := selectText(t, doc, "text").StartContainer

	if _, err := Capture(dom.Range{StartContainer: n, StartOffset: 2, EndContainer: n, EndOffset: 2}); !errors.Is(err, ErrRangeDegenerate) {
		t.Errorf("collapsed: got %v", err)
	}
	if _, err := Capture(dom.Range{StartContainer: n.Parent, EndContainer: n, EndOffset: 1}); !errors.Is(err, ErrRangeDegenerate) {
		t.Errorf("element boundary: got %v", err)
	}
}

// --- text index ---

func TestIndex_MapRange(t *testing.T) {
	doc := parse(t, `<body><p>ab</p><script>var x</script><p>cd</p></body>`)
	ix := Index(dom.Body(doc))

	if ix.Text() != "abcd" || ix.Len() != 4 || len(ix.Entries()) != 2 {
		t.Fatalf("index: got %q with %d entries", ix.Text(), len(ix.Entries()))
	}

	r, err := ix.MapRange(0, 2)
	if err != nil {
		t.Fatalf("map [0,2): %v", err)
	}
	if r.StartContainer != r.EndContainer || r.EndOffset != 2 {
		t.Errorf("end on a node's upper bound should stay in that node")
	}

	r, err = ix.MapRange(2, 3)
	if err != nil {
		t.Fatalf("map [2,3): %v", err)
	}
	if r.StartContainer.Data != "cd" || r.StartOffset != 0 {
		t.Errorf("start on a node's lower bound should belong to that node")
	}

	r, err = ix.MapRange(1, 3)
	if err != nil {
		t.Fatalf("map [1,3): %v", err)
	}
	if r.Text() != "bc" {
		t.Errorf("cross-node text: got %q", r.Text())
	}

	if _, err := ix.MapRange(3, 5); !errors.Is(err, ErrUnmapped) {
		t.Errorf("past end: got %v, want ErrUnmapped", err)
	}
	if _, err := ix.MapRange(2, 2); !errors.Is(err, ErrRangeDegenerate) {
		t.Errorf("empty: got %v, want ErrRangeDegenerate", err)
	}
}

func TestIndex_FindFolded(t *testing.T) {
	doc := parse(t, `<p>Ärger und ärger</p>`)
	ix := Index(dom.Body(doc))

	if got := ix.Find("ÄRGER", 0); got != 0 {
		t.Errorf("first: got %d", got)
	}
	if got := ix.FindAll("ärger"); len(got) != 2 || got[1] != 10 {
		t.Errorf("all: got %v", got)
	}
	if got := ix.Find("missing", 0); got != -1 {
		t.Errorf("missing: got %d", got)
	}
}

// --- resolver ---

func TestResolve_UnchangedTree(t *testing.T) {
	doc := parse(t, `<div><p>First paragraph.</p><p>Second <i>part</i> of the text.</p></div>`)
	for _, sub := range []string{"paragraph", "Second ", "of the"} {
		tg := target(t, selectText(t, doc, sub))

		res, err := NewResolver(doc).Resolve(tg)
		if err != nil {
			t.Fatalf("%q: %v", sub, err)
		}
		if res.By != AddressMatch || res.State != Resolved {
			t.Errorf("%q: resolved by %s", sub, res.By)
		}
		if NormalizeText(res.Range.Text()) != NormalizeText(sub) {
			t.Errorf("%q: got %q", sub, res.Range.Text())
		}
	}
}

func TestResolve_HelloWorldShift(t *testing.T) {
	before := parse(t, `<p>Hello world, this is a test.</p>`)
	tg := target(t, selectText(t, before, "world"))
	if tg.Position.ContextBefore != "Hello " || tg.Position.ContextAfter != ", this is a test." {
		t.Fatalf("context: %+v", tg.Position)
	}

	after := parse(t, `<p>Hello there, world, this is a test.</p>`)
	rv := NewResolver(after)

	if _, err := rv.MatchAddress(tg); !errors.Is(err, ErrTextMismatch) {
		t.Errorf("address tier: got %v, want ErrTextMismatch", err)
	}
	if _, err := rv.SearchContext(rv.Index(), tg); !errors.Is(err, ErrNoOccurrence) {
		t.Errorf("context tier: got %v, want ErrNoOccurrence", err)
	}

	res, err := rv.Resolve(tg)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.By != BareTextSearch {
		t.Errorf("resolved by %s, want text", res.By)
	}
	if len(res.Attempts) != 2 {
		t.Errorf("attempts: got %d", len(res.Attempts))
	}

	ms := NewMarkerSet()
	if _, err := ms.Apply(res.Range, "yellow", "hl_1"); err != nil {
		t.Fatalf("apply: %v", err)
	}
	want := `<body><p>Hello there, <mark class="webnote-highlight webnote-yellow" data-highlight-id="hl_1">world</mark>, this is a test.</p></body>`
	if got := renderBody(t, after); got != want {
		t.Errorf("markup:\n got %s\nwant %s", got, want)
	}
}

func TestResolve_SiblingInserted(t *testing.T) {
	before := parse(t, `<p>first</p><p>target text</p>`)
	tg := target(t, selectText(t, before, "target"))

	after := parse(t, `<p>new</p><p>first</p><p>target text</p>`)
	rv := NewResolver(after)

	_, err := rv.MatchAddress(tg)
	if !errors.Is(err, ErrAddressUnresolvable) && !errors.Is(err, ErrTextMismatch) {
		t.Fatalf("address tier must not accept shifted text, got %v", err)
	}

	res, err := rv.Resolve(tg)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.By == AddressMatch {
		t.Error("address tier should have been rejected")
	}
	if res.Range.Text() != "target" || res.Range.StartContainer.Data != "target text" {
		t.Errorf("landed on %q in %q", res.Range.Text(), res.Range.StartContainer.Data)
	}
}

func TestResolve_ContextBeatsFirstOccurrence(t *testing.T) {
	before := parse(t, `<p>the cat sat.</p><p>the cat ran.</p>`)
	var tg Target
	for _, n := range dom.TextNodes(before, nil) {
		if n.Data == "the cat ran." {
			r, err := dom.NewRange(n, 4, n, 7)
			if err != nil {
				t.Fatalf("range: %v", err)
			}
			tg = target(t, r)
		}
	}
	if tg.Text != "cat" || tg.Position.ContextBefore != "the " {
		t.Fatalf("target: %+v", tg)
	}

	// First sentence removed, another "cat" now comes first.
	after := parse(t, `<div><p>a cat nap.</p></div><p>the cat ran.</p>`)
	rv := NewResolver(after)

	res, err := rv.Resolve(tg)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.By != ContextSearch {
		t.Errorf("resolved by %s, want context", res.By)
	}
	if res.Range.StartContainer.Data != "the cat ran." {
		t.Errorf("landed in %q", res.Range.StartContainer.Data)
	}

	bare, err := rv.SearchText(rv.Index(), tg)
	if err != nil {
		t.Fatalf("bare: %v", err)
	}
	if bare.StartContainer.Data != "a cat nap." {
		t.Errorf("bare search keeps first occurrence, got %q", bare.StartContainer.Data)
	}
}

func TestResolve_Exhausted(t *testing.T) {
	before := parse(t, `<p>Some removed sentence.</p>`)
	tg := target(t, selectText(t, before, "removed"))

	after := parse(t, `<p>Nothing here.</p>`)
	res, err := NewResolver(after).Resolve(tg)
	if !errors.Is(err, ErrSearchExhausted) {
		t.Fatalf("got %v, want ErrSearchExhausted", err)
	}
	if res.State != Exhausted || len(res.Attempts) != 3 {
		t.Errorf("state %s with %d attempts", res.State, len(res.Attempts))
	}
}

func TestResolve_EmptyText(t *testing.T) {
	doc := parse(t, `<p>x</p>`)
	if _, err := NewResolver(doc).Resolve(Target{Text: "  "}); !errors.Is(err, ErrSearchExhausted) {
		t.Errorf("got %v", err)
	}
}

// --- markers ---

func TestMarker_ApplyRemoveRoundTrip(t *testing.T) {
	doc := parse(t, `<p>one <b>two</b> three</p><p>four</p>`)
	before := renderBody(t, doc)

	var one, four *html.Node
	for _, n := range dom.TextNodes(doc, nil) {
		switch n.Data {
		case "one ":
			one = n
		case "four":
			four = n
		}
	}
	r, err := dom.NewRange(one, 2, four, 2)
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	text := r.Text()

	ms := NewMarkerSet()
	marks, err := ms.Apply(r, "green", "hl_x")
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(marks) != 4 {
		t.Errorf("markers: got %d, want one per text node", len(marks))
	}
	if got := ms.Text("hl_x"); got != text {
		t.Errorf("marked text: got %q, want %q", got, text)
	}

	if !ms.Remove("hl_x") {
		t.Fatal("remove reported unknown id")
	}
	if got := renderBody(t, doc); got != before {
		t.Errorf("round trip:\n got %s\nwant %s", got, before)
	}
	if ms.Has("hl_x") || ms.Len() != 0 {
		t.Error("id should be forgotten")
	}
	if n := len(dom.TextNodes(dom.Body(doc), nil)); n != 4 {
		t.Errorf("text nodes after merge: got %d, want 4", n)
	}
}

func TestMarker_OnePerTextNode(t *testing.T) {
	doc := parse(t, `<p>one <b>two</b> three</p>`)
	var one, three *html.Node
	for _, n := range dom.TextNodes(doc, nil) {
		switch n.Data {
		case "one ":
			one = n
		case " three":
			three = n
		}
	}
	before := renderBody(t, doc)
	r, err := dom.NewRange(one, 0, three, 3)
	if err != nil {
		t.Fatalf("range: %v", err)
	}

	ms := NewMarkerSet()
	marks, err := ms.Apply(r, "blue", "h1")
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(marks) != 3 {
		t.Fatalf("markers: got %d, want 3", len(marks))
	}
	want := `<body><p><mark class="webnote-highlight webnote-blue" data-highlight-id="h1">one </mark>` +
		`<b><mark class="webnote-highlight webnote-blue" data-highlight-id="h1">two</mark></b>` +
		`<mark class="webnote-highlight webnote-blue" data-highlight-id="h1"> th</mark>ree</p></body>`
	if got := renderBody(t, doc); got != want {
		t.Errorf("markup:\n got %s\nwant %s", got, want)
	}

	ms.Remove("h1")
	if got := renderBody(t, doc); got != before {
		t.Errorf("after remove: got %s", got)
	}
}

func TestMarker_ListLevelText(t *testing.T) {
	tests := []struct {
		name, src, sel, want string
	}{
		{"ul", `<body><ul>Intro text<li>item</li></ul></body>`, "Intro",
			`<body><ul><mark class="webnote-highlight webnote-yellow" data-highlight-id="h">Intro</mark> text<li>item</li></ul></body>`},
		{"dl", `<body><dl>Terms<dt>a</dt><dd>b</dd></dl></body>`, "Terms",
			`<body><dl><mark class="webnote-highlight webnote-yellow" data-highlight-id="h">Terms</mark><dt>a</dt><dd>b</dd></dl></body>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := parse(t, tt.src)
			before := renderBody(t, doc)
			r := selectText(t, doc, tt.sel)
			tg := target(t, r)

			ms := NewMarkerSet()
			if _, err := ms.Apply(r, "yellow", "h"); err != nil {
				t.Fatalf("apply: %v", err)
			}
			if got := renderBody(t, doc); got != tt.want {
				t.Errorf("markup:\n got %s\nwant %s", got, tt.want)
			}
			ms.Remove("h")
			if got := renderBody(t, doc); got != before {
				t.Fatalf("after remove: got %s", got)
			}

			res, err := NewResolver(doc).Resolve(tg)
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			if res.By != AddressMatch {
				t.Errorf("resolved by %v, want address", res.By)
			}
			if _, err := ms.Apply(res.Range, "yellow", "h"); err != nil {
				t.Fatalf("apply after resolve: %v", err)
			}
			if got := ms.Text("h"); got != tt.sel {
				t.Errorf("marked text: got %q", got)
			}
		})
	}
}

func TestMarker_Recolor(t *testing.T) {
	doc := parse(t, `<p>color me</p>`)
	ms := NewMarkerSet()
	if _, err := ms.Apply(selectText(t, doc, "color"), "yellow", "h"); err != nil {
		t.Fatalf("apply: %v", err)
	}
	text := dom.Body(doc).FirstChild.FirstChild.FirstChild.Data

	if !ms.Recolor("h", "pink") {
		t.Fatal("recolor reported unknown id")
	}
	m := ms.Markers("h")[0]
	if MarkerColor(m) != "pink" {
		t.Errorf("color: got %q", MarkerColor(m))
	}
	if got := m.FirstChild.Data; got != text || got != "color" {
		t.Errorf("text changed: %q", got)
	}
	if ms.Recolor("nope", "pink") || ms.Remove("nope") {
		t.Error("unknown id should report false")
	}
}

func TestMarker_RawTextRejected(t *testing.T) {
	doc := parse(t, `<body><textarea>abc</textarea></body>`)
	before := renderBody(t, doc)

	_, err := NewMarkerSet().Apply(selectText(t, doc, "b"), "yellow", "h")
	if !errors.Is(err, ErrMarkerApply) {
		t.Fatalf("got %v, want ErrMarkerApply", err)
	}
	if got := renderBody(t, doc); got != before {
		t.Errorf("tree changed on failure: %s", got)
	}
}

func TestMarker_CollapsedRejected(t *testing.T) {
	doc := parse(t, `<p>abc</p>`)
	r := selectText(t, doc, "b")
	r.EndOffset = r.StartOffset

	if _, err := NewMarkerSet().Apply(r, "yellow", "h"); !errors.Is(err, ErrMarkerApply) {
		t.Errorf("got %v, want ErrMarkerApply", err)
	}
}

func TestStrip(t *testing.T) {
	doc := parse(t, `<p>a <mark class="webnote-highlight webnote-yellow" data-highlight-id="x">b</mark> c <mark>keep</mark></p>`)
	if n := Strip(doc); n != 1 {
		t.Fatalf("stripped %d", n)
	}
	if got := renderBody(t, doc); got != `<body><p>a b c <mark>keep</mark></p></body>` {
		t.Errorf("got %s", got)
	}
}

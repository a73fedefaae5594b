// CLAUDE:SUMMARY Per-document controller: restores stored highlights, creates/removes/recolors them, owns the live marker set.
package highlight

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/net/html"

	"github.com/hazyhaar/webnote/anchor"
	"github.com/hazyhaar/webnote/dom"
	"github.com/hazyhaar/webnote/idgen"
)

// RecordStore is the persistence a Page needs. *store.Store implements it.
type RecordStore interface {
	LoadHighlights(ctx context.Context, docID string) ([]*Record, error)
	SaveHighlight(ctx context.Context, p *PageRecord, h *Record) error
	UpdateNote(ctx context.Context, docID, id, note string) (*Record, error)
	UpdateColor(ctx context.Context, docID, id, color string) (*Record, error)
	DeleteHighlight(ctx context.Context, docID, id string) error
}

// State is where a highlight stands in one page instance.
type State int

const (
	Unrestored State = iota
	Restoring
	Applied
	Unrestorable
	Removed
)

func (s State) String() string {
	switch s {
	case Unrestored:
		return "unrestored"
	case Restoring:
		return "restoring"
	case Applied:
		return "applied"
	case Unrestorable:
		return "unrestorable"
	case Removed:
		return "removed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// RestoreReport summarises one RestoreAll pass.
type RestoreReport struct {
	RunID        string         `json:"runId"`
	DocID        string         `json:"docId"`
	Restored     int            `json:"restoredCount"`
	Failed       int            `json:"failedCount"`
	ByStrategy   map[string]int `json:"byStrategy"`
	Unrestorable []string       `json:"unrestorable,omitempty"`
	StartedAt    time.Time      `json:"startedAt"`
	Duration     time.Duration  `json:"duration"`
}

// Page is one loaded document and its highlights. It owns the live marker
// set; all mutations are serialized by its mutex.
type Page struct {
	mu sync.Mutex

	doc     *html.Node
	info    PageRecord
	store   RecordStore
	markers *anchor.MarkerSet
	records []*Record
	loaded  bool
	states  map[string]State

	newID      idgen.Generator
	runID      idgen.Generator
	contextLen int
	logger     *slog.Logger
}

// PageOption configures a Page.
type PageOption func(*Page)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) PageOption {
	return func(p *Page) { p.logger = l }
}

// WithIDGenerator overrides highlight id generation.
func WithIDGenerator(g idgen.Generator) PageOption {
	return func(p *Page) { p.newID = g }
}

// WithContextLength sets how many characters of context are captured on
// each side of a new highlight.
func WithContextLength(n int) PageOption {
	return func(p *Page) { p.contextLen = n }
}

// WithTitle overrides the title taken from the document.
func WithTitle(t string) PageOption {
	return func(p *Page) { p.info.Title = t }
}

// NewPage binds a parsed document loaded from rawURL to st. The marker set
// starts empty; call RestoreAll to bring stored highlights back.
func NewPage(doc *html.Node, rawURL string, st RecordStore, opts ...PageOption) (*Page, error) {
	docID, err := DocumentID(rawURL)
	if err != nil {
		return nil, err
	}
	p := &Page{
		doc:        dom.Root(doc),
		info:       PageRecord{DocID: docID, URL: rawURL, Title: dom.Title(doc)},
		store:      st,
		markers:    anchor.NewMarkerSet(),
		states:     make(map[string]State),
		newID:      idgen.Highlight(),
		runID:      idgen.UUIDv7(),
		contextLen: anchor.ContextLength,
	}
	for _, o := range opts {
		o(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	p.logger = p.logger.With("doc_id", docID)
	if n := anchor.Strip(p.doc); n > 0 {
		p.logger.Debug("stripped saved markers", "count", n)
	}
	return p, nil
}

// DocID returns the document identity.
func (p *Page) DocID() string { return p.info.DocID }

// Info returns the page row as it would be stored.
func (p *Page) Info() PageRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.info
}

// Document returns the live tree. Callers must not mutate it concurrently
// with Page methods.
func (p *Page) Document() *html.Node { return p.doc }

func (p *Page) load(ctx context.Context) error {
	if p.loaded {
		return nil
	}
	recs, err := p.store.LoadHighlights(ctx, p.info.DocID)
	if err != nil {
		return fmt.Errorf("highlight: load records: %w", err)
	}
	p.records = recs
	for _, r := range recs {
		if _, ok := p.states[r.ID]; !ok {
			p.states[r.ID] = Unrestored
		}
	}
	p.loaded = true
	return nil
}

// RestoreAll resolves every stored record not yet applied or found
// unrestorable, in stored order, and applies its markers. A record that
// cannot be resolved stays stored and is counted as failed.
func (p *Page) RestoreAll(ctx context.Context) (RestoreReport, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	rep := RestoreReport{
		RunID:      p.runID(),
		DocID:      p.info.DocID,
		ByStrategy: make(map[string]int),
		StartedAt:  time.Now(),
	}
	if err := p.load(ctx); err != nil {
		return rep, err
	}

	for _, rec := range p.records {
		if st := p.states[rec.ID]; st != Unrestored {
			continue
		}
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		by, err := p.restore(rec)
		if err != nil {
			p.states[rec.ID] = Unrestorable
			rep.Failed++
			rep.Unrestorable = append(rep.Unrestorable, rec.ID)
			p.logger.Warn("highlight: restore failed", "id", rec.ID, "reason", err)
			continue
		}
		p.states[rec.ID] = Applied
		rep.Restored++
		rep.ByStrategy[by.String()]++
	}

	rep.Duration = time.Since(rep.StartedAt)
	p.logger.Info("highlight: restored",
		"run_id", rep.RunID,
		"restored", rep.Restored,
		"failed", rep.Failed,
		"duration", rep.Duration,
	)
	return rep, nil
}

func (p *Page) restore(rec *Record) (anchor.State, error) {
	p.states[rec.ID] = Restoring
	res, err := anchor.NewResolver(p.doc).Resolve(rec.Target())
	if err != nil {
		return res.State, err
	}
	if _, err := p.markers.Apply(res.Range, rec.Color, rec.ID); err != nil {
		return res.State, err
	}
	return res.By, nil
}

// CreateAt highlights the text of r in color, persists the record and
// returns it. Leading and trailing whitespace is left out of the span. If
// the store rejects the record the markers are removed again.
func (p *Page) CreateAt(ctx context.Context, r dom.Range, color string) (*Record, error) {
	if color == "" {
		color = DefaultColor
	}
	if !ValidColor(color) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownColor, color)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.load(ctx); err != nil {
		return nil, err
	}

	tr, err := r.Trim()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoTextInRange, err)
	}
	text := tr.Text()
	if anchor.NormalizeText(text) == "" {
		return nil, ErrNoTextInRange
	}
	pos, err := anchor.CaptureContext(tr, p.contextLen)
	if err != nil {
		return nil, fmt.Errorf("highlight: capture: %w", err)
	}

	rec := &Record{
		ID:       p.newID(),
		Text:     text,
		Color:    color,
		Position: pos,
	}
	if _, err := p.markers.Apply(tr, color, rec.ID); err != nil {
		return nil, fmt.Errorf("highlight: apply: %w", err)
	}
	if err := p.store.SaveHighlight(ctx, &p.info, rec); err != nil {
		p.markers.Remove(rec.ID)
		return nil, fmt.Errorf("highlight: save: %w", err)
	}

	p.records = append(p.records, rec)
	p.states[rec.ID] = Applied
	p.logger.Info("highlight: created", "id", rec.ID, "color", color, "chars", len([]rune(text)))
	out := *rec
	return &out, nil
}

// RemoveByID deletes a highlight from the store and unwraps its markers.
// It reports false for unknown ids. When the store fails nothing changes
// and the record stays listed.
func (p *Page) RemoveByID(ctx context.Context, id string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.load(ctx); err != nil {
		return false, err
	}
	i := p.indexOf(id)
	if i < 0 {
		return false, nil
	}
	if err := p.store.DeleteHighlight(ctx, p.info.DocID, id); err != nil && !errors.Is(err, ErrNotFound) {
		return false, fmt.Errorf("highlight: delete: %w", err)
	}
	p.markers.Remove(id)
	p.records = append(p.records[:i], p.records[i+1:]...)
	p.states[id] = Removed
	p.logger.Info("highlight: removed", "id", id)
	return true, nil
}

// Recolor changes the color of a highlight. Markers are recolored first
// and switched back if the store fails.
func (p *Page) Recolor(ctx context.Context, id, color string) (bool, error) {
	if !ValidColor(color) {
		return false, fmt.Errorf("%w: %q", ErrUnknownColor, color)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.load(ctx); err != nil {
		return false, err
	}
	i := p.indexOf(id)
	if i < 0 {
		return false, nil
	}
	rec := p.records[i]
	prev := rec.Color
	p.markers.Recolor(id, color)

	updated, err := p.store.UpdateColor(ctx, p.info.DocID, id, color)
	if err != nil {
		p.markers.Recolor(id, prev)
		return false, fmt.Errorf("highlight: recolor: %w", err)
	}
	rec.Color, rec.UpdatedAt = updated.Color, updated.UpdatedAt
	return true, nil
}

// UpdateNote sets the note of a highlight after stripping markup.
func (p *Page) UpdateNote(ctx context.Context, id, note string) (*Record, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.load(ctx); err != nil {
		return nil, err
	}
	i := p.indexOf(id)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	updated, err := p.store.UpdateNote(ctx, p.info.DocID, id, SanitizeNote(note))
	if err != nil {
		return nil, fmt.Errorf("highlight: note: %w", err)
	}
	rec := p.records[i]
	rec.Note, rec.UpdatedAt = updated.Note, updated.UpdatedAt
	out := *rec
	return &out, nil
}

// Refresh reloads the stored records. Records deleted elsewhere lose their
// markers. Applied records whose text or position changed are unwrapped and,
// like new records, left Unrestored for the next RestoreAll. Otherwise color
// changes are applied to live markers.
func (p *Page) Refresh(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	recs, err := p.store.LoadHighlights(ctx, p.info.DocID)
	if err != nil {
		return fmt.Errorf("highlight: refresh: %w", err)
	}
	keep := make(map[string]*Record, len(recs))
	for _, r := range recs {
		keep[r.ID] = r
	}
	prev := make(map[string]*Record, len(p.records))
	for _, old := range p.records {
		prev[old.ID] = old
		if _, ok := keep[old.ID]; !ok {
			p.markers.Remove(old.ID)
			p.states[old.ID] = Removed
		}
	}
	for _, r := range recs {
		st, seen := p.states[r.ID]
		switch {
		case !seen || st == Removed:
			p.states[r.ID] = Unrestored
		case st == Applied && moved(prev[r.ID], r):
			p.markers.Remove(r.ID)
			p.states[r.ID] = Unrestored
		case st == Applied:
			p.markers.Recolor(r.ID, r.Color)
		}
	}
	p.records = recs
	p.loaded = true
	return nil
}

// Records returns copies of the records in stored order.
func (p *Page) Records() []*Record {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Record, len(p.records))
	for i, r := range p.records {
		c := *r
		out[i] = &c
	}
	return out
}

// Summaries returns the panel listing of this page.
func (p *Page) Summaries() []Summary {
	recs := p.Records()
	p.mu.Lock()
	defer p.mu.Unlock()
	return Summaries(recs, p.markers.Has)
}

// State returns the state of id in this page instance.
func (p *Page) State(id string) State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.states[id]
}

// Markers returns the live marker elements of id, for scrolling to or
// focusing a highlight.
func (p *Page) Markers(id string) []*html.Node {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.markers.Markers(id)
}

// FindQuote returns a range over the first occurrence of quote in the page
// text, ignoring case. When prefix is set, the occurrence must directly
// follow it.
func (p *Page) FindQuote(quote, prefix string) (dom.Range, error) {
	if anchor.NormalizeText(quote) == "" {
		return dom.Range{}, ErrNoTextInRange
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	ix := anchor.Index(dom.Body(p.doc))
	pos := ix.Find(prefix+quote, 0)
	if pos < 0 {
		return dom.Range{}, fmt.Errorf("%w: %q", ErrQuoteNotFound, quote)
	}
	start := pos + len([]rune(prefix))
	return ix.MapRange(start, start+len([]rune(quote)))
}

// Render writes the document with its live markers as HTML.
func (p *Page) Render(w io.Writer) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return html.Render(w, p.doc)
}

func (p *Page) indexOf(id string) int {
	for i, r := range p.records {
		if r.ID == id {
			return i
		}
	}
	return -1
}

// moved reports whether cur anchors a different span than old.
func moved(old, cur *Record) bool {
	if old == nil {
		return true
	}
	a, b := old.Position, cur.Position
	return old.Text != cur.Text ||
		a.StartAddress.String() != b.StartAddress.String() || a.StartOffset != b.StartOffset ||
		a.EndAddress.String() != b.EndAddress.String() || a.EndOffset != b.EndOffset ||
		a.ContextBefore != b.ContextBefore || a.ContextAfter != b.ContextAfter
}

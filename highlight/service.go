// CLAUDE:SUMMARY Service orchestrator: wires store, page loader, open pages and the data_version watcher; serves the panel, MCP and CLI operations.
// Package highlight keeps text highlights on web pages across page loads.
//
// Highlights are anchored with the anchor package (element path + offsets +
// surrounding context) and restored by a three-tier resolver, so they
// survive moderate changes to the page. The pipeline:
//
//	pageload → Page.RestoreAll → anchor.Resolver → anchor.MarkerSet
//	selection → Page.CreateAt → anchor.Capture → store
//
// Usage:
//
//	svc, err := highlight.New(cfg, logger)
//	defer svc.Close()
//	page, report, err := svc.OpenPage(ctx, "https://example.com/article")
//	rec, err := svc.Highlight(ctx, page.Info().URL, "some quote", "", "green")
//	go svc.Watch(ctx)
//	svc.RegisterMCP(mcpServer)
package highlight

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/net/html"

	"github.com/hazyhaar/webnote/export"
	"github.com/hazyhaar/webnote/highlight/internal/store"
	"github.com/hazyhaar/webnote/idgen"
	"github.com/hazyhaar/webnote/pageload"
	"github.com/hazyhaar/webnote/watch"
)

// Annotations is everything stored for one document.
type Annotations struct {
	PageRecord
	Highlights []*Record `json:"highlights"`
}

// Service owns the store, the page loader and the pages currently open.
type Service struct {
	store    *store.Store
	loader   *pageload.Loader
	exporter *export.Exporter
	cfg      *Config
	logger   *slog.Logger
	newID    idgen.Generator

	mu    sync.Mutex
	pages map[string]*Page

	watcher *watch.Watcher
}

// New opens the database at cfg.DBPath and creates the page loader.
func New(cfg *Config, logger *slog.Logger) (*Service, error) {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}

	s, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	ld := pageload.New(cfg.Loader, pageload.WithLogger(logger))
	return newService(s, ld, cfg, logger), nil
}

func newService(s *store.Store, ld *pageload.Loader, cfg *Config, logger *slog.Logger) *Service {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    s,
		loader:   ld,
		exporter: export.New(),
		cfg:      cfg,
		logger:   logger,
		newID:    idgen.Highlight(),
		pages:    make(map[string]*Page),
		watcher: watch.New(s.DB, watch.Options{
			Interval: cfg.Watch.Interval,
			Debounce: cfg.Watch.Debounce,
			Pin:      true,
			Logger:   logger,
		}),
	}
}

// Close releases the loader and closes the database.
func (s *Service) Close() error {
	return errors.Join(s.loader.Close(), s.store.Close())
}

// Config returns the effective configuration.
func (s *Service) Config() Config { return *s.cfg }

// OpenPage loads source (path, file:// or http(s) URL), binds it and
// restores its stored highlights.
func (s *Service) OpenPage(ctx context.Context, source string) (*Page, RestoreReport, error) {
	doc, err := s.loader.Load(ctx, source)
	if err != nil {
		return nil, RestoreReport{}, err
	}
	if doc.StableTimedOut {
		s.logger.Info("highlight: restoring on an unsettled page", "url", doc.URL)
	}
	return s.Attach(ctx, doc.Root, doc.URL)
}

// Attach binds an already parsed document and restores its highlights. It
// replaces any page open under the same document identity.
func (s *Service) Attach(ctx context.Context, root *html.Node, rawURL string) (*Page, RestoreReport, error) {
	p, err := NewPage(root, rawURL, s.store,
		WithLogger(s.logger),
		WithContextLength(s.cfg.ContextLength),
		WithIDGenerator(s.newID),
	)
	if err != nil {
		return nil, RestoreReport{}, err
	}
	rep, err := p.RestoreAll(ctx)
	if err != nil {
		return nil, rep, err
	}
	s.recordRun(ctx, rep)

	s.mu.Lock()
	s.pages[p.DocID()] = p
	s.mu.Unlock()
	return p, rep, nil
}

// Page returns the open page for rawURL.
func (s *Service) Page(rawURL string) (*Page, bool) {
	docID, err := DocumentID(rawURL)
	if err != nil {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pages[docID]
	return p, ok
}

// ClosePage forgets the open page for rawURL. Its records stay stored.
func (s *Service) ClosePage(rawURL string) bool {
	docID, err := DocumentID(rawURL)
	if err != nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pages[docID]
	delete(s.pages, docID)
	return ok
}

func (s *Service) openPages() []*Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Page, 0, len(s.pages))
	for _, p := range s.pages {
		out = append(out, p)
	}
	return out
}

func (s *Service) recordRun(ctx context.Context, rep RestoreReport) {
	run := &RestoreRun{
		ID:         rep.RunID,
		DocID:      rep.DocID,
		Restored:   rep.Restored,
		Failed:     rep.Failed,
		ByStrategy: rep.ByStrategy,
		Unrestored: rep.Unrestorable,
		StartedAt:  rep.StartedAt.UnixMilli(),
		DurationMs: rep.Duration.Milliseconds(),
	}
	if err := s.store.InsertRestoreRun(ctx, run); err != nil {
		s.logger.Warn("highlight: restore run not logged", "run_id", rep.RunID, "error", err)
	}
}

// Annotations returns the page row and records stored for rawURL. An
// unknown document yields an empty list.
func (s *Service) Annotations(ctx context.Context, rawURL string) (*Annotations, error) {
	docID, err := DocumentID(rawURL)
	if err != nil {
		return nil, err
	}
	out := &Annotations{PageRecord: PageRecord{DocID: docID, URL: rawURL}}
	pg, err := s.store.GetPage(ctx, docID)
	switch {
	case err == nil:
		out.PageRecord = *pg
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}
	recs, err := s.store.LoadHighlights(ctx, docID)
	if err != nil {
		return nil, err
	}
	if recs == nil {
		recs = []*Record{}
	}
	out.Highlights = recs
	return out, nil
}

// SaveAnnotation stores a record captured elsewhere (a browser selection)
// as an upsert by id. A missing id is generated; the note is sanitized.
// An open page for the document picks the record up immediately.
func (s *Service) SaveAnnotation(ctx context.Context, rawURL, title string, rec *Record) (*Record, error) {
	docID, err := DocumentID(rawURL)
	if err != nil {
		return nil, err
	}
	if rec.Color == "" {
		rec.Color = s.cfg.DefaultColor
	}
	if !ValidColor(rec.Color) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownColor, rec.Color)
	}
	if rec.Text == "" {
		return nil, ErrNoTextInRange
	}
	if rec.ID == "" {
		rec.ID = s.newID()
	}
	rec.Note = SanitizeNote(rec.Note)

	pg := &PageRecord{DocID: docID, URL: rawURL, Title: title}
	if err := s.store.SaveHighlight(ctx, pg, rec); err != nil {
		return nil, fmt.Errorf("highlight: save: %w", err)
	}
	s.logger.Info("highlight: saved", "doc_id", docID, "id", rec.ID)

	if p, ok := s.Page(rawURL); ok {
		if err := s.sync(ctx, p); err != nil {
			s.logger.Warn("highlight: open page not refreshed", "doc_id", docID, "error", err)
		}
	}
	out := *rec
	return &out, nil
}

// UpdateNote sets the note of a record.
func (s *Service) UpdateNote(ctx context.Context, rawURL, id, note string) (*Record, error) {
	if p, ok := s.Page(rawURL); ok {
		return p.UpdateNote(ctx, id, note)
	}
	docID, err := DocumentID(rawURL)
	if err != nil {
		return nil, err
	}
	return s.store.UpdateNote(ctx, docID, id, SanitizeNote(note))
}

// Recolor changes the color of a record. It reports false for unknown ids.
func (s *Service) Recolor(ctx context.Context, rawURL, id, color string) (bool, error) {
	if p, ok := s.Page(rawURL); ok {
		return p.Recolor(ctx, id, color)
	}
	if !ValidColor(color) {
		return false, fmt.Errorf("%w: %q", ErrUnknownColor, color)
	}
	docID, err := DocumentID(rawURL)
	if err != nil {
		return false, err
	}
	if _, err := s.store.UpdateColor(ctx, docID, id, color); err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// DeleteAnnotation removes a record. It reports false for unknown ids.
func (s *Service) DeleteAnnotation(ctx context.Context, rawURL, id string) (bool, error) {
	if p, ok := s.Page(rawURL); ok {
		return p.RemoveByID(ctx, id)
	}
	docID, err := DocumentID(rawURL)
	if err != nil {
		return false, err
	}
	if err := s.store.DeleteHighlight(ctx, docID, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	s.logger.Info("highlight: removed", "doc_id", docID, "id", id)
	return true, nil
}

// Highlight marks the first occurrence of quote (after prefix, when set)
// on the open page for rawURL.
func (s *Service) Highlight(ctx context.Context, rawURL, quote, prefix, color string) (*Record, error) {
	p, ok := s.Page(rawURL)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPageNotOpen, rawURL)
	}
	if color == "" {
		color = s.cfg.DefaultColor
	}
	r, err := p.FindQuote(quote, prefix)
	if err != nil {
		return nil, err
	}
	return p.CreateAt(ctx, r, color)
}

// Summaries returns the panel listing for rawURL: newest first, text
// shortened, with live set for highlights placed on the open page.
func (s *Service) Summaries(ctx context.Context, rawURL string) ([]Summary, error) {
	if p, ok := s.Page(rawURL); ok {
		return p.Summaries(), nil
	}
	a, err := s.Annotations(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return Summaries(a.Highlights, nil), nil
}

// Settings returns the panel settings.
func (s *Service) Settings(ctx context.Context) (Settings, error) {
	return s.store.GetSettings(ctx)
}

// SaveSettings stores the panel settings.
func (s *Service) SaveSettings(ctx context.Context, st Settings) error {
	return s.store.SaveSettings(ctx, st)
}

// ListPages returns pages holding highlights, most recently modified first.
// A non-empty match is a glob over page URLs ("https://example.com/**").
func (s *Service) ListPages(ctx context.Context, match string) ([]*PageInfo, error) {
	if match != "" && !doublestar.ValidatePattern(match) {
		return nil, fmt.Errorf("highlight: bad pattern %q: %w", match, doublestar.ErrBadPattern)
	}
	all, err := s.store.ListPages(ctx)
	if err != nil {
		return nil, err
	}
	if match == "" {
		return all, nil
	}
	out := make([]*PageInfo, 0, len(all))
	for _, pi := range all {
		if ok, _ := doublestar.Match(match, pi.URL); ok {
			out = append(out, pi)
		}
	}
	return out, nil
}

// DeletePage removes a document and all its records.
func (s *Service) DeletePage(ctx context.Context, rawURL string) error {
	docID, err := DocumentID(rawURL)
	if err != nil {
		return err
	}
	if err := s.store.DeletePage(ctx, docID); err != nil {
		return err
	}
	if p, ok := s.Page(rawURL); ok {
		return p.Refresh(ctx)
	}
	return nil
}

// RestoreRuns returns the latest restore runs for rawURL, newest first.
func (s *Service) RestoreRuns(ctx context.Context, rawURL string, limit int) ([]*RestoreRun, error) {
	docID, err := DocumentID(rawURL)
	if err != nil {
		return nil, err
	}
	return s.store.ListRestoreRuns(ctx, docID, limit)
}

// ExportMarkdown renders the open page for rawURL with its highlights in
// bold. Without an open page it returns ErrPageNotOpen.
func (s *Service) ExportMarkdown(rawURL string) (string, error) {
	p, ok := s.Page(rawURL)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrPageNotOpen, rawURL)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return s.exporter.Page(p.doc, p.info.URL)
}

// ExportDigest lists the records of rawURL, in stored order, as Markdown.
// Highlights an open page could not place are flagged.
func (s *Service) ExportDigest(ctx context.Context, rawURL string) (string, error) {
	a, err := s.Annotations(ctx, rawURL)
	if err != nil {
		return "", err
	}
	p, open := s.Page(rawURL)
	items := make([]export.Item, 0, len(a.Highlights))
	for _, r := range a.Highlights {
		it := export.Item{
			ID:        r.ID,
			Text:      r.Text,
			Color:     r.Color,
			Note:      r.Note,
			CreatedAt: time.UnixMilli(r.CreatedAt),
		}
		if open {
			it.Unplaced = p.State(r.ID) == Unrestorable
		}
		items = append(items, it)
	}
	return s.exporter.Digest(a.Title, a.URL, items)
}

// Watch follows writes made by other processes and brings open pages up to
// date. It blocks until ctx is cancelled.
func (s *Service) Watch(ctx context.Context) {
	s.logger.Info("highlight: watching", "db", s.cfg.DBPath, "interval", s.cfg.Watch.Interval)
	s.watcher.OnChange(ctx, func() error {
		var errs []error
		for _, p := range s.openPages() {
			if err := s.sync(ctx, p); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}

// WatchStats returns the watcher counters.
func (s *Service) WatchStats() watch.Stats { return s.watcher.Stats() }

// sync reloads p's records and restores the ones it has not placed yet.
func (s *Service) sync(ctx context.Context, p *Page) error {
	if err := p.Refresh(ctx); err != nil {
		return err
	}
	rep, err := p.RestoreAll(ctx)
	if err != nil {
		return err
	}
	if rep.Restored+rep.Failed > 0 {
		s.recordRun(ctx, rep)
	}
	return nil
}

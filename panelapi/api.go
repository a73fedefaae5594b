// CLAUDE:SUMMARY Panel HTTP API. Chi router over the highlight service: annotations CRUD, notes, colors, settings, pages, summaries, restore runs, export.
// Package panelapi exposes the highlight service to a side panel or any
// other HTTP client. Records are addressed by page URL plus highlight id;
// the URL is reduced to its document identity server-side.
package panelapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/webnote/highlight"
	"github.com/hazyhaar/webnote/kit"
	"github.com/hazyhaar/webnote/shield"
)

// Backend is what the API needs from the highlight service.
type Backend interface {
	Annotations(ctx context.Context, rawURL string) (*highlight.Annotations, error)
	SaveAnnotation(ctx context.Context, rawURL, title string, rec *highlight.Record) (*highlight.Record, error)
	UpdateNote(ctx context.Context, rawURL, id, note string) (*highlight.Record, error)
	Recolor(ctx context.Context, rawURL, id, color string) (bool, error)
	DeleteAnnotation(ctx context.Context, rawURL, id string) (bool, error)
	Summaries(ctx context.Context, rawURL string) ([]highlight.Summary, error)
	Settings(ctx context.Context) (highlight.Settings, error)
	SaveSettings(ctx context.Context, st highlight.Settings) error
	ListPages(ctx context.Context, match string) ([]*highlight.PageInfo, error)
	RestoreRuns(ctx context.Context, rawURL string, limit int) ([]*highlight.RestoreRun, error)
	ExportDigest(ctx context.Context, rawURL string) (string, error)
	ExportMarkdown(rawURL string) (string, error)
}

var errURLRequired = errors.New("url is required")

// API is the panel HTTP API.
type API struct {
	backend Backend
	logger  *slog.Logger
	maxBody int64
}

// Option configures an API.
type Option func(*API)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *API) { a.logger = l }
}

// WithMaxBody caps request bodies. Default: 1 MiB.
func WithMaxBody(n int64) Option {
	return func(a *API) { a.maxBody = n }
}

// New creates the API over b.
func New(b Backend, opts ...Option) *API {
	a := &API{backend: b, logger: slog.Default(), maxBody: 1 << 20}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Handler returns the router with the shield stack applied.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	for _, mw := range shield.APIStack(a.logger, a.maxBody) {
		r.Use(mw)
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		kit.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodGet, "/annotations", a.handle("get_annotations", a.getAnnotations, decodeURLQuery))
		r.Method(http.MethodPost, "/annotations", a.handle("save_annotation", a.saveAnnotation, decodeSave))
		r.Method(http.MethodDelete, "/annotations/{id}", a.handle("delete_annotation", a.deleteAnnotation, decodeDelete))
		r.Method(http.MethodPatch, "/annotations/{id}/note", a.handle("update_note", a.updateNote, decodeNote))
		r.Method(http.MethodPatch, "/annotations/{id}/color", a.handle("recolor", a.recolor, decodeColor))
		r.Method(http.MethodGet, "/summaries", a.handle("summaries", a.summaries, decodeURLQuery))
		r.Method(http.MethodGet, "/settings", a.handle("get_settings", a.getSettings, decodeNothing))
		r.Method(http.MethodPut, "/settings", a.handle("save_settings", a.saveSettings, decodeSettings))
		r.Method(http.MethodGet, "/pages", a.handle("list_pages", a.listPages, decodePages))
		r.Method(http.MethodGet, "/restore-runs", a.handle("restore_runs", a.restoreRuns, decodeRuns))
		r.Method(http.MethodGet, "/export", a.handle("export", a.export, decodeExport))
	})
	return r
}

func (a *API) handle(name string, ep kit.Endpoint, decode kit.HTTPDecode) http.Handler {
	return kit.HTTPHandler(kit.Logging(a.logger, name)(ep), decode, statusOf)
}

// statusOf maps service errors to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, highlight.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, highlight.ErrPageNotOpen):
		return http.StatusConflict
	case errors.Is(err, highlight.ErrBadURL),
		errors.Is(err, highlight.ErrUnknownColor),
		errors.Is(err, highlight.ErrNoTextInRange),
		errors.Is(err, highlight.ErrQuoteNotFound),
		errors.Is(err, doublestar.ErrBadPattern):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// --- requests ---

type urlReq struct {
	URL string
}

type saveReq struct {
	URL       string            `json:"url"`
	Title     string            `json:"title"`
	Highlight *highlight.Record `json:"highlight"`
}

type idReq struct {
	URL string
	ID  string
}

type noteReq struct {
	URL  string `json:"url"`
	ID   string `json:"-"`
	Note string `json:"note"`
}

type colorReq struct {
	URL   string `json:"url"`
	ID    string `json:"-"`
	Color string `json:"color"`
}

type pagesReq struct {
	Match string
}

type runsReq struct {
	URL   string
	Limit int
}

type exportReq struct {
	URL    string
	Format string
}

func queryURL(r *http.Request) (string, error) {
	u := r.URL.Query().Get("url")
	if u == "" {
		return "", errURLRequired
	}
	return u, nil
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

func decodeNothing(*http.Request) (any, error) { return nil, nil }

func decodeURLQuery(r *http.Request) (any, error) {
	u, err := queryURL(r)
	if err != nil {
		return nil, err
	}
	return &urlReq{URL: u}, nil
}

func decodeSave(r *http.Request) (any, error) {
	var req saveReq
	if err := decodeBody(r, &req); err != nil {
		return nil, err
	}
	if req.URL == "" {
		return nil, errURLRequired
	}
	if req.Highlight == nil {
		return nil, errors.New("highlight is required")
	}
	return &req, nil
}

func decodeDelete(r *http.Request) (any, error) {
	u, err := queryURL(r)
	if err != nil {
		return nil, err
	}
	return &idReq{URL: u, ID: chi.URLParam(r, "id")}, nil
}

func decodeNote(r *http.Request) (any, error) {
	var req noteReq
	if err := decodeBody(r, &req); err != nil {
		return nil, err
	}
	if req.URL == "" {
		return nil, errURLRequired
	}
	req.ID = chi.URLParam(r, "id")
	return &req, nil
}

func decodeColor(r *http.Request) (any, error) {
	var req colorReq
	if err := decodeBody(r, &req); err != nil {
		return nil, err
	}
	if req.URL == "" {
		return nil, errURLRequired
	}
	req.ID = chi.URLParam(r, "id")
	return &req, nil
}

func decodeSettings(r *http.Request) (any, error) {
	var st highlight.Settings
	if err := decodeBody(r, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func decodePages(r *http.Request) (any, error) {
	return &pagesReq{Match: r.URL.Query().Get("match")}, nil
}

func decodeRuns(r *http.Request) (any, error) {
	u, err := queryURL(r)
	if err != nil {
		return nil, err
	}
	req := &runsReq{URL: u}
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("bad limit %q", s)
		}
		req.Limit = n
	}
	return req, nil
}

func decodeExport(r *http.Request) (any, error) {
	u, err := queryURL(r)
	if err != nil {
		return nil, err
	}
	f := r.URL.Query().Get("format")
	switch f {
	case "", "digest", "page":
	default:
		return nil, fmt.Errorf("unknown format %q", f)
	}
	return &exportReq{URL: u, Format: f}, nil
}

// --- endpoints ---

func (a *API) getAnnotations(ctx context.Context, req any) (any, error) {
	return a.backend.Annotations(ctx, req.(*urlReq).URL)
}

func (a *API) saveAnnotation(ctx context.Context, req any) (any, error) {
	r := req.(*saveReq)
	return a.backend.SaveAnnotation(ctx, r.URL, r.Title, r.Highlight)
}

func (a *API) deleteAnnotation(ctx context.Context, req any) (any, error) {
	r := req.(*idReq)
	ok, err := a.backend.DeleteAnnotation(ctx, r.URL, r.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", highlight.ErrNotFound, r.ID)
	}
	return map[string]any{"deleted": true, "id": r.ID}, nil
}

func (a *API) updateNote(ctx context.Context, req any) (any, error) {
	r := req.(*noteReq)
	return a.backend.UpdateNote(ctx, r.URL, r.ID, r.Note)
}

func (a *API) recolor(ctx context.Context, req any) (any, error) {
	r := req.(*colorReq)
	ok, err := a.backend.Recolor(ctx, r.URL, r.ID, r.Color)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", highlight.ErrNotFound, r.ID)
	}
	return map[string]any{"id": r.ID, "color": r.Color}, nil
}

func (a *API) summaries(ctx context.Context, req any) (any, error) {
	return a.backend.Summaries(ctx, req.(*urlReq).URL)
}

func (a *API) getSettings(ctx context.Context, _ any) (any, error) {
	return a.backend.Settings(ctx)
}

func (a *API) saveSettings(ctx context.Context, req any) (any, error) {
	st := req.(*highlight.Settings)
	if err := a.backend.SaveSettings(ctx, *st); err != nil {
		return nil, err
	}
	return st, nil
}

func (a *API) listPages(ctx context.Context, req any) (any, error) {
	pages, err := a.backend.ListPages(ctx, req.(*pagesReq).Match)
	if err != nil {
		return nil, err
	}
	if pages == nil {
		pages = []*highlight.PageInfo{}
	}
	return pages, nil
}

func (a *API) restoreRuns(ctx context.Context, req any) (any, error) {
	r := req.(*runsReq)
	runs, err := a.backend.RestoreRuns(ctx, r.URL, r.Limit)
	if err != nil {
		return nil, err
	}
	if runs == nil {
		runs = []*highlight.RestoreRun{}
	}
	return runs, nil
}

func (a *API) export(ctx context.Context, req any) (any, error) {
	r := req.(*exportReq)
	var md string
	var err error
	if r.Format == "page" {
		md, err = a.backend.ExportMarkdown(r.URL)
	} else {
		md, err = a.backend.ExportDigest(ctx, r.URL)
	}
	if err != nil {
		return nil, err
	}
	return map[string]string{"markdown": md}, nil
}

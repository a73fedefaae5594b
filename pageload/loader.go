// CLAUDE:SUMMARY Acquires pages as parsed html trees from local files, plain HTTP, or a rod-driven browser after a bounded stability wait.
// Package pageload turns a page source (local path, file:// URL, or http(s)
// URL) into a parsed document tree ready for highlight restoration.
package pageload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/hazyhaar/webnote/dom"
	"github.com/hazyhaar/webnote/horosafe"
)

// Source names how a Document was acquired.
type Source string

const (
	SourceFile    Source = "file"
	SourceHTTP    Source = "http"
	SourceBrowser Source = "browser"
	SourceReader  Source = "reader"
)

var (
	// ErrStatus is returned when a remote page answers with an error status.
	ErrStatus = errors.New("pageload: unexpected status")

	// ErrNotHTML is returned when a remote page is not an HTML document.
	ErrNotHTML = errors.New("pageload: not an html document")
)

// Document is a loaded page.
type Document struct {
	// URL identifies the page: the requested http(s) URL, or file://<abs path>.
	URL    string
	Title  string
	Root   *html.Node
	Source Source
	// StableTimedOut is set when the browser path gave up waiting for the
	// page to settle and the tree was read as-is.
	StableTimedOut bool
	LoadedAt       time.Time
}

// Loader acquires pages.
type Loader struct {
	cfg     Config
	client  *http.Client
	browser *Browser
	logger  *slog.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithClient sets a custom HTTP client.
func WithClient(c *http.Client) Option {
	return func(l *Loader) { l.client = c }
}

// WithUserAgent overrides the configured User-Agent header.
func WithUserAgent(ua string) Option {
	return func(l *Loader) { l.cfg.UserAgent = ua }
}

// WithLogger sets a custom logger.
func WithLogger(lg *slog.Logger) Option {
	return func(l *Loader) { l.logger = lg }
}

// WithBrowser routes remote pages through b instead of plain HTTP.
func WithBrowser(b *Browser) Option {
	return func(l *Loader) { l.browser = b }
}

// New creates a Loader. When cfg.Browser.Enabled is set and no browser was
// given, one is created lazily on first remote load.
func New(cfg Config, opts ...Option) *Loader {
	cfg.defaults()
	l := &Loader{
		cfg:    cfg,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(l)
	}
	if l.client == nil {
		l.client = &http.Client{Timeout: cfg.Timeout}
	}
	if l.browser == nil && cfg.Browser.Enabled {
		l.browser = NewBrowser(cfg.Browser, cfg.Stable, l.logger)
	}
	return l
}

// Close releases the browser, if any.
func (l *Loader) Close() error {
	if l.browser == nil {
		return nil
	}
	return l.browser.Close()
}

// Load acquires source. http(s) sources go through the browser when one is
// configured and through plain HTTP otherwise; anything else is a local path.
func (l *Loader) Load(ctx context.Context, source string) (*Document, error) {
	if IsRemote(source) {
		if !l.cfg.AllowPrivate {
			if _, err := horosafe.ValidateURL(ctx, source); err != nil {
				return nil, fmt.Errorf("pageload: %s: %w", source, err)
			}
		}
		if l.browser != nil {
			return l.browser.Load(ctx, source)
		}
		return l.fetch(ctx, source)
	}
	return l.readFile(source)
}

// IsRemote reports whether source is an http(s) URL.
func IsRemote(source string) bool {
	s := strings.ToLower(source)
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func (l *Loader) fetch(ctx context.Context, pageURL string) (*Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("pageload: new request: %w", err)
	}
	req.Header.Set("User-Agent", l.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pageload: do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("%w: %s: %d", ErrStatus, pageURL, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") {
		return nil, fmt.Errorf("%w: %s: %s", ErrNotHTML, pageURL, ct)
	}

	body, err := horosafe.LimitedReadAll(resp.Body, l.cfg.MaxBody)
	if err != nil {
		return nil, fmt.Errorf("pageload: read body: %w", err)
	}

	doc, err := Parse(bytes.NewReader(body), pageURL)
	if err != nil {
		return nil, err
	}
	doc.Source = SourceHTTP

	l.logger.Debug("pageload: fetched",
		"url", pageURL, "status", resp.StatusCode, "size", len(body))
	return doc, nil
}

func (l *Loader) readFile(source string) (*Document, error) {
	name := strings.TrimPrefix(source, "file://")
	path, err := horosafe.SafePath(l.cfg.FileRoot, name)
	if err != nil {
		return nil, fmt.Errorf("pageload: %s: %w", source, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("pageload: %s: %w", source, err)
	}

	f, err := os.Open(abs)
	if err != nil {
		return nil, fmt.Errorf("pageload: open: %w", err)
	}
	defer f.Close()

	body, err := horosafe.LimitedReadAll(f, l.cfg.MaxBody)
	if err != nil {
		return nil, fmt.Errorf("pageload: read %s: %w", abs, err)
	}

	doc, err := Parse(bytes.NewReader(body), "file://"+filepath.ToSlash(abs))
	if err != nil {
		return nil, err
	}
	doc.Source = SourceFile

	l.logger.Debug("pageload: read file", "path", abs, "size", len(body))
	return doc, nil
}

// Parse builds a Document from HTML read from r.
func Parse(r io.Reader, pageURL string) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("pageload: parse: %w", err)
	}
	return &Document{
		URL:      pageURL,
		Title:    dom.Title(root),
		Root:     root,
		Source:   SourceReader,
		LoadedAt: time.Now(),
	}, nil
}

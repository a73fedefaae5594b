package pageload

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/webnote/dom"
	"github.com/hazyhaar/webnote/horosafe"
)

const page = `<html><head><title>Field notes</title></head><body><p>Hello world</p></body></html>`

func TestLoad_HTTP(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(page))
	}))
	defer srv.Close()

	l := New(Config{AllowPrivate: true}, WithUserAgent("webnote-test"))
	doc, err := l.Load(context.Background(), srv.URL+"/article")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if doc.Source != SourceHTTP {
		t.Errorf("source = %q", doc.Source)
	}
	if doc.Title != "Field notes" {
		t.Errorf("title = %q", doc.Title)
	}
	if doc.URL != srv.URL+"/article" {
		t.Errorf("url = %q", doc.URL)
	}
	if gotUA != "webnote-test" {
		t.Errorf("user agent = %q", gotUA)
	}
	if dom.Body(doc.Root) == nil {
		t.Fatal("expected a body")
	}
}

func TestLoad_HTTPPrivateRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not reach the server")
	}))
	defer srv.Close()

	l := New(Config{})
	_, err := l.Load(context.Background(), srv.URL)
	if !errors.Is(err, horosafe.ErrSSRF) {
		t.Fatalf("expected ErrSSRF, got %v", err)
	}
}

func TestLoad_HTTPStatus(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	l := New(Config{AllowPrivate: true})
	_, err := l.Load(context.Background(), srv.URL)
	if !errors.Is(err, ErrStatus) {
		t.Fatalf("expected ErrStatus, got %v", err)
	}
}

func TestLoad_HTTPNotHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	l := New(Config{AllowPrivate: true})
	_, err := l.Load(context.Background(), srv.URL)
	if !errors.Is(err, ErrNotHTML) {
		t.Fatalf("expected ErrNotHTML, got %v", err)
	}
}

func TestLoad_HTTPBodyCap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer srv.Close()

	l := New(Config{AllowPrivate: true, MaxBody: 16})
	_, err := l.Load(context.Background(), srv.URL)
	if !errors.Is(err, horosafe.ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.html")
	if err := os.WriteFile(path, []byte(page), 0o644); err != nil {
		t.Fatal(err)
	}

	l := New(Config{})
	for _, src := range []string{path, "file://" + path} {
		doc, err := l.Load(context.Background(), src)
		if err != nil {
			t.Fatalf("load %s: %v", src, err)
		}
		if doc.Source != SourceFile {
			t.Errorf("source = %q", doc.Source)
		}
		if doc.URL != "file://"+filepath.ToSlash(path) {
			t.Errorf("url = %q", doc.URL)
		}
		if doc.Title != "Field notes" {
			t.Errorf("title = %q", doc.Title)
		}
	}
}

func TestLoad_FileRoot(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "in.html"), []byte(page), 0o644); err != nil {
		t.Fatal(err)
	}

	l := New(Config{FileRoot: dir})
	if _, err := l.Load(context.Background(), "in.html"); err != nil {
		t.Fatalf("load inside root: %v", err)
	}
	_, err := l.Load(context.Background(), "../escape.html")
	if !errors.Is(err, horosafe.ErrPathTraversal) {
		t.Fatalf("expected ErrPathTraversal, got %v", err)
	}
}

func TestLoad_FileMissing(t *testing.T) {
	l := New(Config{})
	_, err := l.Load(context.Background(), filepath.Join(t.TempDir(), "missing.html"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not exist, got %v", err)
	}
}

func TestIsRemote(t *testing.T) {
	tests := map[string]bool{
		"https://example.com": true,
		"HTTP://example.com":  true,
		"file:///tmp/a.html":  false,
		"/tmp/a.html":         false,
		"ftp://example.com":   false,
	}
	for src, want := range tests {
		if got := IsRemote(src); got != want {
			t.Errorf("IsRemote(%q) = %v, want %v", src, got, want)
		}
	}
}

func TestBrowser_ClosedBeforeUse(t *testing.T) {
	b := NewBrowser(BrowserConfig{}, StableConfig{}, nil)
	if err := b.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	_, err := b.Load(context.Background(), "https://example.com")
	if !errors.Is(err, ErrBrowserClosed) {
		t.Fatalf("expected ErrBrowserClosed, got %v", err)
	}
}

func testStable() StableConfig {
	return StableConfig{
		Quiet:   30 * time.Millisecond,
		Timeout: 500 * time.Millisecond,
		Settle:  10 * time.Millisecond,
	}
}

func TestWaitStable_Complete(t *testing.T) {
	start := time.Now()
	if WaitStable(context.Background(), testStable(), true, nil) {
		t.Fatal("complete page should not time out")
	}
	if time.Since(start) > 200*time.Millisecond {
		t.Errorf("settle took %v", time.Since(start))
	}
}

func TestWaitStable_QuietAfterChanges(t *testing.T) {
	changes := make(chan struct{})
	go func() {
		for i := 0; i < 3; i++ {
			changes <- struct{}{}
			time.Sleep(5 * time.Millisecond)
		}
	}()

	start := time.Now()
	if WaitStable(context.Background(), testStable(), false, changes) {
		t.Fatal("expected quiet window to end the wait")
	}
	if time.Since(start) >= 500*time.Millisecond {
		t.Errorf("wait reached timeout: %v", time.Since(start))
	}
}

func TestWaitStable_ContinuousChangesTimeOut(t *testing.T) {
	changes := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		ticker := time.NewTicker(5 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				select {
				case changes <- struct{}{}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	if !WaitStable(context.Background(), testStable(), false, changes) {
		t.Fatal("expected timeout while the page keeps changing")
	}
}

func TestWaitStable_NoChangesWaitsForTimeout(t *testing.T) {
	cfg := testStable()
	cfg.Timeout = 50 * time.Millisecond
	start := time.Now()
	if !WaitStable(context.Background(), cfg, false, make(chan struct{})) {
		t.Fatal("expected timeout without any change")
	}
	if time.Since(start) < 50*time.Millisecond {
		t.Errorf("returned early: %v", time.Since(start))
	}
}

func TestWaitStable_ClosedChannel(t *testing.T) {
	cfg := testStable()
	cfg.Timeout = 50 * time.Millisecond
	changes := make(chan struct{})
	close(changes)
	if !WaitStable(context.Background(), cfg, false, changes) {
		t.Fatal("closed channel should fall back to the timeout")
	}
}

func TestWaitStable_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if !WaitStable(ctx, testStable(), false, nil) {
		t.Fatal("cancelled wait should report timedOut")
	}
}

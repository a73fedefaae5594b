package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/hazyhaar/webnote/anchor"
	"github.com/hazyhaar/webnote/dbopen"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	return &Store{DB: dbopen.OpenMemory(t, dbopen.WithSchema(Schema))}
}

func testHighlight(id, text string) *Highlight {
	p, _ := anchor.ParsePath("/html/body/p[1]/text()[1]")
	return &Highlight{
		ID:    id,
		Text:  text,
		Color: "yellow",
		Position: anchor.Descriptor{
			StartAddress:  p,
			StartOffset:   6,
			EndAddress:    p,
			EndOffset:     6 + len(text),
			ContextBefore: "Hello ",
			ContextAfter:  ", this is a test.",
		},
	}
}

func TestHighlightCRUD(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	page := &Page{DocID: "annotations_https://example.com/a", URL: "https://example.com/a?x=1", Title: "A"}

	h1 := testHighlight("hl_1", "world")
	if err := s.SaveHighlight(ctx, page, h1); err != nil {
		t.Fatalf("save: %v", err)
	}
	if h1.CreatedAt == 0 || h1.UpdatedAt != h1.CreatedAt {
		t.Errorf("timestamps: created %d updated %d", h1.CreatedAt, h1.UpdatedAt)
	}
	if err := s.SaveHighlight(ctx, page, testHighlight("hl_0", "Hello")); err != nil {
		t.Fatalf("save second: %v", err)
	}

	list, err := s.LoadHighlights(ctx, page.DocID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(list) != 2 || list[0].ID != "hl_1" || list[1].ID != "hl_0" {
		t.Fatalf("load should keep stored order, got %d records", len(list))
	}
	if got := list[0].Position.StartAddress.String(); got != "/html/body/p[1]/text()[1]" {
		t.Errorf("position address: got %s", got)
	}
	if list[0].Position.ContextAfter != ", this is a test." {
		t.Errorf("contextAfter: got %q", list[0].Position.ContextAfter)
	}

	// Upsert keeps the row and its creation time.
	created := h1.CreatedAt
	h1.Color = "green"
	h1.CreatedAt = 0
	if err := s.SaveHighlight(ctx, page, h1); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, err := s.GetHighlight(ctx, page.DocID, "hl_1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Color != "green" || got.CreatedAt != created {
		t.Errorf("after upsert: color %q created %d (want %d)", got.Color, got.CreatedAt, created)
	}
	if list, _ := s.LoadHighlights(ctx, page.DocID); len(list) != 2 || list[0].ID != "hl_1" {
		t.Error("upsert should not duplicate or reorder")
	}

	// Note.
	got, err = s.UpdateNote(ctx, page.DocID, "hl_1", "remember this")
	if err != nil {
		t.Fatalf("update note: %v", err)
	}
	if got.Note != "remember this" {
		t.Errorf("note: got %q", got.Note)
	}
	if _, err := s.UpdateNote(ctx, page.DocID, "missing", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("update missing: got %v", err)
	}

	// Color.
	if got, err = s.UpdateColor(ctx, page.DocID, "hl_1", "pink"); err != nil || got.Color != "pink" {
		t.Errorf("update color: %v %+v", err, got)
	}

	// Delete.
	if err := s.DeleteHighlight(ctx, page.DocID, "hl_1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeleteHighlight(ctx, page.DocID, "hl_1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete: got %v", err)
	}
	if _, err := s.GetHighlight(ctx, page.DocID, "hl_1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("get deleted: got %v", err)
	}
}

func TestSaveHighlight_OtherPage(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.SaveHighlight(ctx, &Page{DocID: "a"}, testHighlight("hl_1", "x")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.SaveHighlight(ctx, &Page{DocID: "b"}, testHighlight("hl_1", "x")); err == nil {
		t.Fatal("an id owned by another page must not be overwritten")
	}
}

func TestPages(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	a := &Page{DocID: "a", URL: "https://a.example/", Title: "A"}
	if err := s.SaveHighlight(ctx, a, testHighlight("hl_a", "x")); err != nil {
		t.Fatal(err)
	}
	// An empty title on a later save keeps the known one.
	if err := s.SaveHighlight(ctx, &Page{DocID: "a"}, testHighlight("hl_a2", "y")); err != nil {
		t.Fatal(err)
	}

	p, err := s.GetPage(ctx, "a")
	if err != nil {
		t.Fatalf("get page: %v", err)
	}
	if p.Title != "A" || p.URL != "https://a.example/" || p.LastModified == 0 {
		t.Errorf("page: %+v", p)
	}

	pages, err := s.ListPages(ctx)
	if err != nil {
		t.Fatalf("list pages: %v", err)
	}
	if len(pages) != 1 || pages[0].Highlights != 2 {
		t.Fatalf("pages: %+v", pages)
	}

	if err := s.DeletePage(ctx, "a"); err != nil {
		t.Fatalf("delete page: %v", err)
	}
	if list, _ := s.LoadHighlights(ctx, "a"); len(list) != 0 {
		t.Errorf("highlights should go with the page, got %d", len(list))
	}
	if _, err := s.GetPage(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("get deleted page: %v", err)
	}
}

func TestSettings(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	st, err := s.GetSettings(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !st.AutoOpenPanel {
		t.Error("autoOpenPanel should default to true")
	}

	if err := s.SaveSettings(ctx, Settings{AutoOpenPanel: false}); err != nil {
		t.Fatal(err)
	}
	if st, _ = s.GetSettings(ctx); st.AutoOpenPanel {
		t.Error("saved setting not returned")
	}
}

func TestRestoreRuns(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for i, id := range []string{"run-1", "run-2"} {
		err := s.InsertRestoreRun(ctx, &RestoreRun{
			ID: id, DocID: "a", Restored: i, Failed: 1,
			ByStrategy: map[string]int{"address": i},
			Unrestored: []string{"hl_gone"},
			StartedAt:  int64(1000 + i),
		})
		if err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
	}
	runs, err := s.ListRestoreRuns(ctx, "a", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 || runs[0].ID != "run-2" {
		t.Fatalf("runs: %+v", runs)
	}
	if runs[0].ByStrategy["address"] != 1 || runs[0].Unrestored[0] != "hl_gone" {
		t.Errorf("decoded run: %+v", runs[0])
	}
}

func TestOpen_Migrates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "webnote.db")
	for range 2 {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		v, err := dbopen.SchemaVersion(context.Background(), s.DB)
		if err != nil || v != len(Migrations) {
			t.Errorf("schema version = %d (%v), want %d", v, err, len(Migrations))
		}
		s.Close()
	}
}

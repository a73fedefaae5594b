package watch

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hazyhaar/webnote/dbopen"
)

func setUserVersion(t *testing.T, db *sql.DB, v int) {
	t.Helper()
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", v)); err != nil {
		t.Fatal(err)
	}
}

func TestPragmaDataVersion(t *testing.T) {
	db := dbopen.OpenMemory(t)
	v, err := PragmaDataVersion(context.Background(), db)
	if err != nil {
		t.Fatal(err)
	}
	if v < 0 {
		t.Fatalf("expected non-negative version, got %d", v)
	}
}

func TestOnChange_FiresOnVersionChange(t *testing.T) {
	db := dbopen.OpenMemory(t)

	var reloads atomic.Int32
	w := New(db, Options{Interval: 20 * time.Millisecond, Detector: PragmaUserVersion})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.OnChange(ctx, func() error {
		reloads.Add(1)
		return nil
	})
	time.Sleep(50 * time.Millisecond)

	setUserVersion(t, db, 1)
	time.Sleep(100 * time.Millisecond)
	if got := reloads.Load(); got != 1 {
		t.Fatalf("expected 1 reload, got %d", got)
	}

	time.Sleep(100 * time.Millisecond)
	if got := reloads.Load(); got != 1 {
		t.Fatalf("no change should not reload, got %d", got)
	}
	if s := w.Stats(); s.Checks == 0 || s.Reloads != 1 {
		t.Fatalf("stats: %+v", s)
	}
}

func TestOnChange_Debounce(t *testing.T) {
	db := dbopen.OpenMemory(t)

	var reloads atomic.Int32
	w := New(db, Options{
		Interval: 20 * time.Millisecond,
		Debounce: 150 * time.Millisecond,
		Detector: PragmaUserVersion,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.OnChange(ctx, func() error {
		reloads.Add(1)
		return nil
	})
	time.Sleep(50 * time.Millisecond)

	for i := 1; i <= 4; i++ {
		setUserVersion(t, db, i)
		time.Sleep(25 * time.Millisecond)
	}
	if got := reloads.Load(); got != 0 {
		t.Fatalf("expected 0 reloads during debounce, got %d", got)
	}

	time.Sleep(300 * time.Millisecond)
	if got := reloads.Load(); got != 1 {
		t.Fatalf("expected exactly 1 debounced reload, got %d", got)
	}
	if v := w.Version(); v != 4 {
		t.Fatalf("version: got %d, want 4", v)
	}
}

func TestOnChange_FailureRetries(t *testing.T) {
	db := dbopen.OpenMemory(t)

	var calls atomic.Int32
	w := New(db, Options{Interval: 20 * time.Millisecond, Detector: PragmaUserVersion})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.OnChange(ctx, func() error {
		if calls.Add(1) == 1 {
			return errors.New("transient")
		}
		return nil
	})
	time.Sleep(50 * time.Millisecond)

	setUserVersion(t, db, 7)
	time.Sleep(150 * time.Millisecond)

	if got := calls.Load(); got < 2 {
		t.Fatalf("expected a retry after failure, got %d calls", got)
	}
	if v := w.Version(); v != 7 {
		t.Fatalf("version: got %d, want 7", v)
	}
}

func TestOnChange_PinnedDataVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "w.db")
	watched, err := dbopen.Open(path, dbopen.WithSchema(`CREATE TABLE t (id INTEGER)`))
	if err != nil {
		t.Fatal(err)
	}
	defer watched.Close()
	writer, err := dbopen.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer writer.Close()

	var reloads atomic.Int32
	w := New(watched, Options{Interval: 20 * time.Millisecond, Pin: true})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.OnChange(ctx, func() error {
		reloads.Add(1)
		return nil
	})
	time.Sleep(60 * time.Millisecond)
	if got := reloads.Load(); got != 0 {
		t.Fatalf("reload without any write: %d", got)
	}

	if _, err := writer.Exec(`INSERT INTO t (id) VALUES (1)`); err != nil {
		t.Fatal(err)
	}
	time.Sleep(150 * time.Millisecond)
	if got := reloads.Load(); got != 1 {
		t.Fatalf("expected 1 reload after a write from another handle, got %d", got)
	}
}

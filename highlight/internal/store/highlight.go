// CLAUDE:SUMMARY CRUD for highlights: ordered load, upsert by id, note/color updates, delete.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/webnote/anchor"
	"github.com/hazyhaar/webnote/dbopen"
)

// Highlight is a stored highlight record. Field names in JSON are the
// record schema shared with browser clients and must not change.
type Highlight struct {
	ID        string            `json:"id"`
	Text      string            `json:"text"`
	Color     string            `json:"color"`
	Note      string            `json:"note"`
	CreatedAt int64             `json:"createdAt"`
	UpdatedAt int64             `json:"updatedAt"`
	Position  anchor.Descriptor `json:"position"`
}

// Target returns what the resolver needs to find h again.
func (h *Highlight) Target() anchor.Target {
	return anchor.Target{Text: h.Text, Position: h.Position}
}

const highlightCols = `id, text, color, note, position, created_at, updated_at`

func scanHighlight(sc interface{ Scan(...any) error }) (*Highlight, error) {
	h := &Highlight{}
	var pos string
	if err := sc.Scan(&h.ID, &h.Text, &h.Color, &h.Note, &pos, &h.CreatedAt, &h.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(pos), &h.Position); err != nil {
		return nil, fmt.Errorf("store: highlight %s position: %w", h.ID, err)
	}
	return h, nil
}

// LoadHighlights returns the highlights of docID in stored order.
func (s *Store) LoadHighlights(ctx context.Context, docID string) ([]*Highlight, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+highlightCols+` FROM highlights WHERE doc_id = ? ORDER BY rowid`, docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Highlight
	for rows.Next() {
		h, err := scanHighlight(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// GetHighlight returns one highlight of docID, or ErrNotFound.
func (s *Store) GetHighlight(ctx context.Context, docID, id string) (*Highlight, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT `+highlightCols+` FROM highlights WHERE doc_id = ? AND id = ?`, docID, id)
	h, err := scanHighlight(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return h, err
}

// SaveHighlight upserts h by id under docID and touches the page row.
// UpdatedAt is set to now; CreatedAt is kept from the first save.
func (s *Store) SaveHighlight(ctx context.Context, p *Page, h *Highlight) error {
	pos, err := json.Marshal(h.Position)
	if err != nil {
		return fmt.Errorf("store: marshal position: %w", err)
	}
	now := time.Now().UnixMilli()
	if h.CreatedAt == 0 {
		h.CreatedAt = now
	}
	h.UpdatedAt = now
	p.LastModified = now

	return dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		if err := upsertPage(ctx, tx, p); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO highlights (id, doc_id, text, color, note, position, created_at, updated_at)
			VALUES (?,?,?,?,?,?,?,?)
			ON CONFLICT(id) DO UPDATE SET
				text = excluded.text,
				color = excluded.color,
				note = excluded.note,
				position = excluded.position,
				updated_at = excluded.updated_at
			WHERE highlights.doc_id = excluded.doc_id`,
			h.ID, p.DocID, h.Text, h.Color, h.Note, string(pos), h.CreatedAt, h.UpdatedAt,
		)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("store: highlight %s belongs to another page", h.ID)
		}
		return nil
	})
}

// UpdateNote sets the note of one highlight and returns the updated row.
func (s *Store) UpdateNote(ctx context.Context, docID, id, note string) (*Highlight, error) {
	return s.update(ctx, docID, id, `note = ?`, note)
}

// UpdateColor sets the color of one highlight and returns the updated row.
func (s *Store) UpdateColor(ctx context.Context, docID, id, color string) (*Highlight, error) {
	return s.update(ctx, docID, id, `color = ?`, color)
}

func (s *Store) update(ctx context.Context, docID, id, set string, val any) (*Highlight, error) {
	now := time.Now().UnixMilli()
	err := dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE highlights SET `+set+`, updated_at = ? WHERE doc_id = ? AND id = ?`,
			val, now, docID, id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE pages SET last_modified = ? WHERE doc_id = ?`, now, docID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.GetHighlight(ctx, docID, id)
}

// DeleteHighlight removes one highlight of docID.
func (s *Store) DeleteHighlight(ctx context.Context, docID, id string) error {
	now := time.Now().UnixMilli()
	return dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM highlights WHERE doc_id = ? AND id = ?`, docID, id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE pages SET last_modified = ? WHERE doc_id = ?`, now, docID)
		return err
	})
}

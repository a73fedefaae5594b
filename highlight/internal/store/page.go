package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/hazyhaar/webnote/dbopen"
)

// Page is the per-document row: where the highlights were made and when
// they last changed.
type Page struct {
	DocID        string `json:"docId"`
	URL          string `json:"url"`
	Title        string `json:"title"`
	LastModified int64  `json:"lastModified"`
}

// PageInfo is a Page with its highlight count, for listings.
type PageInfo struct {
	Page
	Highlights int `json:"highlights"`
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertPage(ctx context.Context, db execer, p *Page) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO pages (doc_id, url, title, last_modified) VALUES (?,?,?,?)
		ON CONFLICT(doc_id) DO UPDATE SET
			url = CASE WHEN excluded.url != '' THEN excluded.url ELSE pages.url END,
			title = CASE WHEN excluded.title != '' THEN excluded.title ELSE pages.title END,
			last_modified = excluded.last_modified`,
		p.DocID, p.URL, p.Title, p.LastModified,
	)
	return err
}

// GetPage returns the page row for docID, or ErrNotFound.
func (s *Store) GetPage(ctx context.Context, docID string) (*Page, error) {
	p := &Page{}
	err := s.DB.QueryRowContext(ctx,
		`SELECT doc_id, url, title, last_modified FROM pages WHERE doc_id = ?`, docID,
	).Scan(&p.DocID, &p.URL, &p.Title, &p.LastModified)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ListPages returns every page with at least one highlight, most recently
// modified first.
func (s *Store) ListPages(ctx context.Context) ([]*PageInfo, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT p.doc_id, p.url, p.title, p.last_modified, COUNT(h.id)
		FROM pages p JOIN highlights h ON h.doc_id = p.doc_id
		GROUP BY p.doc_id
		ORDER BY p.last_modified DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*PageInfo
	for rows.Next() {
		pi := &PageInfo{}
		if err := rows.Scan(&pi.DocID, &pi.URL, &pi.Title, &pi.LastModified, &pi.Highlights); err != nil {
			return nil, err
		}
		out = append(out, pi)
	}
	return out, rows.Err()
}

// DeletePage removes a page and its highlights. Highlights are deleted
// explicitly: foreign_keys is a per-connection pragma and pooled
// connections opened later do not carry it.
func (s *Store) DeletePage(ctx context.Context, docID string) error {
	return dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM highlights WHERE doc_id = ?`, docID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM pages WHERE doc_id = ?`, docID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

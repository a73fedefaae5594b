package store

import (
	"context"
	"encoding/json"
)

// RestoreRun is the outcome of restoring one page load.
type RestoreRun struct {
	ID         string         `json:"id"`
	DocID      string         `json:"docId"`
	Restored   int            `json:"restored"`
	Failed     int            `json:"failed"`
	ByStrategy map[string]int `json:"byStrategy"`
	Unrestored []string       `json:"unrestored"`
	StartedAt  int64          `json:"startedAt"`
	DurationMs int64          `json:"durationMs"`
}

// InsertRestoreRun appends a run to the restore log.
func (s *Store) InsertRestoreRun(ctx context.Context, r *RestoreRun) error {
	by, _ := json.Marshal(r.ByStrategy)
	un, _ := json.Marshal(r.Unrestored)
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO restore_runs (id, doc_id, restored, failed, by_strategy, unrestored, started_at, duration_ms)
		VALUES (?,?,?,?,?,?,?,?)`,
		r.ID, r.DocID, r.Restored, r.Failed, string(by), string(un), r.StartedAt, r.DurationMs,
	)
	return err
}

// ListRestoreRuns returns the latest runs for docID, newest first.
func (s *Store) ListRestoreRuns(ctx context.Context, docID string, limit int) ([]*RestoreRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, doc_id, restored, failed, by_strategy, unrestored, started_at, duration_ms
		FROM restore_runs WHERE doc_id = ?
		ORDER BY started_at DESC, rowid DESC LIMIT ?`, docID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*RestoreRun
	for rows.Next() {
		r := &RestoreRun{}
		var by, un string
		if err := rows.Scan(&r.ID, &r.DocID, &r.Restored, &r.Failed, &by, &un, &r.StartedAt, &r.DurationMs); err != nil {
			return nil, err
		}
		json.Unmarshal([]byte(by), &r.ByStrategy)
		json.Unmarshal([]byte(un), &r.Unrestored)
		out = append(out, r)
	}
	return out, rows.Err()
}

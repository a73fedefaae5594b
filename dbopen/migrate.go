package dbopen

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrSchemaTooNew is returned when the database was migrated past the
// steps this build knows, i.e. written by a newer release.
var ErrSchemaTooNew = errors.New("dbopen: schema version newer than this build")

// SchemaVersion returns PRAGMA user_version.
func SchemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var v int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("dbopen: user_version: %w", err)
	}
	return v, nil
}

// Migrate brings the schema up to len(steps). Step i (0-based) runs in its
// own transaction and leaves user_version at i+1, so a failed step can be
// retried on the next open without replaying the earlier ones.
func Migrate(ctx context.Context, db *sql.DB, steps []string) error {
	cur, err := SchemaVersion(ctx, db)
	if err != nil {
		return err
	}
	if cur > len(steps) {
		return fmt.Errorf("%w: database at %d, known %d", ErrSchemaTooNew, cur, len(steps))
	}
	for i := cur; i < len(steps); i++ {
		err := RunTx(ctx, db, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, steps[i]); err != nil {
				return err
			}
			// PRAGMA does not take bind parameters.
			_, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", i+1))
			return err
		})
		if err != nil {
			return fmt.Errorf("dbopen: migration %d: %w", i+1, err)
		}
	}
	return nil
}

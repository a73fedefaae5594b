// CLAUDE:SUMMARY SQLite handle for webnote: opens the DB with the standard pragmas and runs the schema migrations.
// Package store is the SQLite persistence layer for highlight records, the
// pages they belong to, panel settings and the restore log.
package store

import (
	"database/sql"
	"errors"

	"github.com/hazyhaar/webnote/dbopen"
)

// ErrNotFound is returned when a row addressed by id does not exist.
var ErrNotFound = errors.New("store: not found")

// Store is the webnote database handle.
type Store struct {
	DB *sql.DB
}

// Open opens (or creates) the database at path and migrates it to the
// current schema.
func Open(path string, opts ...dbopen.Option) (*Store, error) {
	allOpts := append([]dbopen.Option{
		dbopen.WithMkdirAll(),
		dbopen.WithMigrations(Migrations...),
	}, opts...)

	db, err := dbopen.Open(path, allOpts...)
	if err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.DB.Close()
}

package store

import "strings"

// Migrations are the schema steps in order; PRAGMA user_version counts how
// many have run. Append only.
var Migrations = []string{schemaRecords, schemaRestoreRuns}

// Schema is the complete DDL, for tests that build a database in one go.
var Schema = strings.Join(Migrations, "\n")

const schemaRecords = `
-- Pages: one row per document identity (origin + path)
CREATE TABLE IF NOT EXISTS pages (
    doc_id        TEXT PRIMARY KEY,
    url           TEXT NOT NULL DEFAULT '',
    title         TEXT NOT NULL DEFAULT '',
    last_modified INTEGER NOT NULL
);

-- Highlights: rowid order is the stored order restoration follows
CREATE TABLE IF NOT EXISTS highlights (
    id         TEXT PRIMARY KEY,
    doc_id     TEXT NOT NULL,
    text       TEXT NOT NULL,
    color      TEXT NOT NULL,
    note       TEXT NOT NULL DEFAULT '',
    position   TEXT NOT NULL DEFAULT '{}',
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,
    FOREIGN KEY (doc_id) REFERENCES pages(doc_id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_highlights_doc ON highlights(doc_id);

-- Settings: JSON values by key
CREATE TABLE IF NOT EXISTS settings (
    key        TEXT PRIMARY KEY,
    value      TEXT NOT NULL,
    updated_at INTEGER NOT NULL
);
`

const schemaRestoreRuns = `
-- Restore runs: one row per page load
CREATE TABLE IF NOT EXISTS restore_runs (
    id          TEXT PRIMARY KEY,
    doc_id      TEXT NOT NULL,
    restored    INTEGER NOT NULL,
    failed      INTEGER NOT NULL,
    by_strategy TEXT NOT NULL DEFAULT '{}',
    unrestored  TEXT NOT NULL DEFAULT '[]',
    started_at  INTEGER NOT NULL,
    duration_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_restore_runs_doc ON restore_runs(doc_id, started_at DESC);
`

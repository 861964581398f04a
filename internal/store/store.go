package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite report database: one row per checked unit with the
// diagnostics, dynamic markers and generated methods recorded for it.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database at dbPath with WAL mode enabled.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate creates the report tables and indexes. Idempotent.
func (s *Store) Migrate() error {
	_, err := s.db.Exec(schemaDDL)
	if err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS units (
  id              INTEGER PRIMARY KEY,
  unit            TEXT NOT NULL UNIQUE,
  path            TEXT NOT NULL,
  hash            TEXT,
  classes         INTEGER DEFAULT 0,
  methods         INTEGER DEFAULT 0,
  calls           INTEGER DEFAULT 0,
  disabled        BOOLEAN DEFAULT FALSE,
  checked_at      TIMESTAMP
);

CREATE TABLE IF NOT EXISTS diagnostics (
  id              INTEGER PRIMARY KEY,
  unit_id         INTEGER NOT NULL REFERENCES units(id) ON DELETE CASCADE,
  severity        TEXT NOT NULL,
  kind            TEXT NOT NULL,
  point           TEXT,
  message         TEXT NOT NULL,
  line            INTEGER,
  col             INTEGER
);

CREATE TABLE IF NOT EXISTS dynamic_markers (
  id              INTEGER PRIMARY KEY,
  unit_id         INTEGER NOT NULL REFERENCES units(id) ON DELETE CASCADE,
  node_kind       TEXT NOT NULL,
  text            TEXT,
  type_name       TEXT,
  line            INTEGER,
  col             INTEGER
);

CREATE TABLE IF NOT EXISTS generated_methods (
  id              INTEGER PRIMARY KEY,
  unit_id         INTEGER NOT NULL REFERENCES units(id) ON DELETE CASCADE,
  descriptor_id   INTEGER NOT NULL,
  name            TEXT NOT NULL,
  return_type     TEXT,
  deferred        BOOLEAN DEFAULT FALSE
);

CREATE INDEX IF NOT EXISTS idx_units_path ON units(path);
CREATE INDEX IF NOT EXISTS idx_diagnostics_unit ON diagnostics(unit_id);
CREATE INDEX IF NOT EXISTS idx_diagnostics_severity ON diagnostics(severity);
CREATE INDEX IF NOT EXISTS idx_dynamic_markers_unit ON dynamic_markers(unit_id);
CREATE INDEX IF NOT EXISTS idx_generated_methods_unit ON generated_methods(unit_id);
`

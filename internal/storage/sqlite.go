// Package storage implements the local SQLite cache of Scopus authors and papers.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database connection.
type DB struct {
	db *sql.DB
}

// Tx is a scoped write transaction. It is only valid inside DB.WithTx.
type Tx struct {
	tx *sql.Tx
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// OpenDB opens or creates a SQLite database at the given path, creating the
// parent directory if needed.
func OpenDB(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// createSchema creates the database schema if it doesn't exist.
func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS authors (
			scopus_id INTEGER NOT NULL PRIMARY KEY,
			given_name TEXT,
			surname TEXT,
			base_id INTEGER DEFAULT NULL REFERENCES authors(scopus_id),
			created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE INDEX IF NOT EXISTS idx_authors_name ON authors(given_name, surname);
		CREATE INDEX IF NOT EXISTS idx_authors_base ON authors(base_id) WHERE base_id IS NOT NULL;

		CREATE TABLE IF NOT EXISTS papers (
			scopus_id INTEGER NOT NULL PRIMARY KEY,
			title TEXT,
			date TEXT,
			origin TEXT,
			affiliation TEXT,
			page_range TEXT,
			issue_id TEXT,
			issn TEXT,
			isbn TEXT,
			eid TEXT,
			publication_name TEXT,
			created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		-- Authorship; author ids may name co-authors without an authors row
		CREATE TABLE IF NOT EXISTS written_by (
			author INTEGER NOT NULL,
			paper INTEGER NOT NULL REFERENCES papers(scopus_id)
		);

		CREATE UNIQUE INDEX IF NOT EXISTS written_by_uniq ON written_by(author, paper);
		CREATE INDEX IF NOT EXISTS idx_written_by_paper ON written_by(paper);

		CREATE TABLE IF NOT EXISTS affiliations (
			afid INTEGER NOT NULL PRIMARY KEY,
			affilname TEXT,
			created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS affiliated_to (
			afil INTEGER NOT NULL REFERENCES affiliations(afid),
			paper INTEGER NOT NULL REFERENCES papers(scopus_id)
		);

		CREATE INDEX IF NOT EXISTS idx_affiliated_to_paper ON affiliated_to(paper);
	`

	_, err := db.Exec(schema)
	return err
}

// WithTx runs fn inside a transaction. The transaction commits when fn
// returns nil and rolls back otherwise, so writes are visible to later reads
// only once fn has succeeded.
func (d *DB) WithTx(fn func(*Tx) error) error {
	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	if err := fn(&Tx{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Stats holds row counts for each table.
type Stats struct {
	Authors      int `json:"authors"`
	Aliases      int `json:"aliases"`
	Papers       int `json:"papers"`
	WrittenBy    int `json:"written_by"`
	Affiliations int `json:"affiliations"`
	AffiliatedTo int `json:"affiliated_to"`
}

// Stats returns the number of rows in each table.
func (d *DB) Stats() (Stats, error) {
	var s Stats
	counts := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM authors", &s.Authors},
		{"SELECT COUNT(*) FROM authors WHERE base_id IS NOT NULL", &s.Aliases},
		{"SELECT COUNT(*) FROM papers", &s.Papers},
		{"SELECT COUNT(*) FROM written_by", &s.WrittenBy},
		{"SELECT COUNT(*) FROM affiliations", &s.Affiliations},
		{"SELECT COUNT(*) FROM affiliated_to", &s.AffiliatedTo},
	}
	for _, c := range counts {
		if err := d.db.QueryRow(c.query).Scan(c.dest); err != nil {
			return Stats{}, fmt.Errorf("counting rows: %w", err)
		}
	}
	return s, nil
}

// nullableStringPtr converts an optional string to sql.NullString.
// A nil pointer is stored as NULL; an empty string is stored as "".
func nullableStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// stringPtr converts sql.NullString back to an optional string.
func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// nullableInt64 converts an optional id to sql.NullInt64.
func nullableInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

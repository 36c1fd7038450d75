package storage

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/dadope/scopus-search/internal/reference"
)

const selectAuthorFields = `scopus_id, given_name, surname, base_id, created_at, updated_at`

// InsertAuthor inserts an author row unless one with the same id exists.
// Existing rows are never updated.
func (t *Tx) InsertAuthor(a reference.Author) error {
	_, err := t.tx.Exec(`
		INSERT INTO authors (scopus_id, given_name, surname, base_id, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT DO NOTHING
	`, a.ScopusID, a.GivenName, a.Surname, nullableInt64(a.BaseID))
	if err != nil {
		return fmt.Errorf("inserting author %d: %w", a.ScopusID, err)
	}
	return nil
}

// FindAuthor retrieves an author by id. Returns nil if not found.
func (d *DB) FindAuthor(id int64) (*reference.Author, error) {
	row := d.db.QueryRow(`SELECT `+selectAuthorFields+` FROM authors WHERE scopus_id = ?`, id)
	a, err := scanAuthor(row)
	if err != nil {
		return nil, fmt.Errorf("finding author %d: %w", id, err)
	}
	return a, nil
}

// FindAuthorByName retrieves an author by exact given name and surname,
// preferring canonical rows over aliases. Returns nil if not found.
func (d *DB) FindAuthorByName(givenName, surname string) (*reference.Author, error) {
	row := d.db.QueryRow(`
		SELECT `+selectAuthorFields+`
		FROM authors
		WHERE given_name = ? AND surname = ?
		ORDER BY base_id IS NOT NULL, scopus_id
		LIMIT 1
	`, givenName, surname)
	a, err := scanAuthor(row)
	if err != nil {
		return nil, fmt.Errorf("finding author %q %q: %w", givenName, surname, err)
	}
	return a, nil
}

// AuthorGroup returns the canonical author baseID followed by all of its
// aliases, ordered by id.
func (d *DB) AuthorGroup(baseID int64) ([]reference.Author, error) {
	rows, err := d.db.Query(`
		SELECT `+selectAuthorFields+`
		FROM authors
		WHERE base_id = ? OR scopus_id = ?
		ORDER BY base_id IS NOT NULL, scopus_id
	`, baseID, baseID)
	if err != nil {
		return nil, fmt.Errorf("querying author group %d: %w", baseID, err)
	}
	defer rows.Close()

	return scanAuthors(rows)
}

// ListAuthors returns all cached authors, canonical rows first.
func (d *DB) ListAuthors() ([]reference.Author, error) {
	rows, err := d.db.Query(`
		SELECT ` + selectAuthorFields + `
		FROM authors
		ORDER BY COALESCE(base_id, scopus_id), base_id IS NOT NULL, scopus_id
	`)
	if err != nil {
		return nil, fmt.Errorf("listing authors: %w", err)
	}
	defer rows.Close()

	return scanAuthors(rows)
}

// scanner interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

func scanAuthor(s scanner) (*reference.Author, error) {
	var a reference.Author
	var given, surname sql.NullString
	var baseID sql.NullInt64

	err := s.Scan(&a.ScopusID, &given, &surname, &baseID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	a.GivenName = given.String
	a.Surname = surname.String
	if baseID.Valid {
		id := baseID.Int64
		a.BaseID = &id
	}
	return &a, nil
}

func scanAuthors(rows *sql.Rows) ([]reference.Author, error) {
	var authors []reference.Author
	for rows.Next() {
		a, err := scanAuthor(rows)
		if err != nil {
			return nil, err
		}
		if a != nil {
			authors = append(authors, *a)
		}
	}
	return authors, rows.Err()
}

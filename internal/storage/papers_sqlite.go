package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/dadope/scopus-search/internal/reference"
)

const selectPaperFields = `p.scopus_id, p.title, p.date, p.origin, p.affiliation,
	p.page_range, p.issue_id, p.issn, p.isbn, p.eid, p.publication_name,
	p.created_at, p.updated_at`

// PaperExists reports whether a paper with the given id is cached.
func (d *DB) PaperExists(id int64) (bool, error) {
	return exists(d.db, `SELECT 1 FROM papers WHERE scopus_id = ?`, id)
}

// PaperExists reports whether a paper is cached, including rows written
// earlier in the transaction.
func (t *Tx) PaperExists(id int64) (bool, error) {
	return exists(t.tx, `SELECT 1 FROM papers WHERE scopus_id = ?`, id)
}

// AffiliationExists reports whether an affiliation is cached.
func (t *Tx) AffiliationExists(afid int64) (bool, error) {
	return exists(t.tx, `SELECT 1 FROM affiliations WHERE afid = ?`, afid)
}

func exists(q queryer, query string, id int64) (bool, error) {
	var one int
	err := q.QueryRow(query, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetPaper retrieves a paper and its authors by id. Returns nil if not found.
func (d *DB) GetPaper(id int64) (*reference.Paper, error) {
	row := d.db.QueryRow(`SELECT `+selectPaperFields+` FROM papers p WHERE p.scopus_id = ?`, id)
	p, err := scanPaper(row)
	if err != nil {
		return nil, fmt.Errorf("getting paper %d: %w", id, err)
	}
	if p == nil {
		return nil, nil
	}

	p.Authors, err = d.PaperAuthors(id)
	if err != nil {
		return nil, err
	}
	p.FromDB = true
	return p, nil
}

// PaperAuthors returns the author ids recorded for a paper in insertion order.
func (d *DB) PaperAuthors(paperID int64) ([]int64, error) {
	rows, err := d.db.Query(`SELECT author FROM written_by WHERE paper = ? ORDER BY rowid`, paperID)
	if err != nil {
		return nil, fmt.Errorf("querying authors of paper %d: %w", paperID, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// LatestPaperDate returns the most recent cover date among the author's
// cached papers. ok is false when the author has no cached papers.
func (d *DB) LatestPaperDate(authorID int64) (date string, ok bool, err error) {
	var ns sql.NullString
	err = d.db.QueryRow(`
		SELECT p.date
		FROM papers p
		JOIN written_by w ON p.scopus_id = w.paper
		WHERE w.author = ?
		ORDER BY p.date DESC
		LIMIT 1
	`, authorID).Scan(&ns)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("querying latest paper of author %d: %w", authorID, err)
	}
	return ns.String, true, nil
}

// PapersByAuthor returns the author's cached papers, most recent first, with
// their author sets filled in and FromDB set. minYear is inclusive, maxYear
// exclusive; zero disables a bound.
func (d *DB) PapersByAuthor(authorID int64, minYear, maxYear int) ([]reference.Paper, error) {
	query := `SELECT ` + selectPaperFields + `
		FROM papers p
		JOIN written_by w ON p.scopus_id = w.paper
		WHERE w.author = ?`
	args := []any{authorID}

	if minYear > 0 {
		query += " AND CAST(substr(p.date, 1, 4) AS INTEGER) >= ?"
		args = append(args, minYear)
	}
	if maxYear > 0 {
		query += " AND CAST(substr(p.date, 1, 4) AS INTEGER) < ?"
		args = append(args, maxYear)
	}
	query += " ORDER BY p.date DESC, p.scopus_id"

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying papers of author %d: %w", authorID, err)
	}
	papers, err := scanPapers(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}

	// Rows are closed before the second query; the pool has one connection.
	coauthors, err := d.coauthorsOf(authorID)
	if err != nil {
		return nil, err
	}
	for i := range papers {
		papers[i].Authors = coauthors[papers[i].ScopusID]
		papers[i].FromDB = true
	}
	return papers, nil
}

// coauthorsOf maps every paper written by authorID to its full author list.
func (d *DB) coauthorsOf(authorID int64) (map[int64][]int64, error) {
	rows, err := d.db.Query(`
		SELECT paper, author
		FROM written_by
		WHERE paper IN (SELECT paper FROM written_by WHERE author = ?)
		ORDER BY rowid
	`, authorID)
	if err != nil {
		return nil, fmt.Errorf("querying coauthors of %d: %w", authorID, err)
	}
	defer rows.Close()

	out := make(map[int64][]int64)
	for rows.Next() {
		var paper, author int64
		if err := rows.Scan(&paper, &author); err != nil {
			return nil, err
		}
		out[paper] = append(out[paper], author)
	}
	return out, rows.Err()
}

// InsertPaper inserts a paper row unless one with the same id exists.
func (t *Tx) InsertPaper(p reference.Paper) error {
	var affiliation sql.NullString
	if p.Affiliation != nil {
		data, err := json.Marshal(p.Affiliation)
		if err != nil {
			return fmt.Errorf("marshaling affiliation for %d: %w", p.ScopusID, err)
		}
		affiliation = sql.NullString{String: string(data), Valid: true}
	}

	_, err := t.tx.Exec(`
		INSERT INTO papers (
			scopus_id, title, date, origin, affiliation,
			page_range, issue_id, issn, isbn, eid, publication_name,
			updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT DO NOTHING
	`,
		p.ScopusID, p.Title, p.Date, string(p.Origin), affiliation,
		nullableStringPtr(p.PageRange), nullableStringPtr(p.IssueID),
		nullableStringPtr(p.ISSN), nullableStringPtr(p.ISBN),
		nullableStringPtr(p.EID), nullableStringPtr(p.PublicationName),
	)
	if err != nil {
		return fmt.Errorf("inserting paper %d: %w", p.ScopusID, err)
	}
	return nil
}

// InsertWrittenBy records authorship, ignoring duplicates. It reports
// whether a new row was written.
func (t *Tx) InsertWrittenBy(authorID, paperID int64) (bool, error) {
	res, err := t.tx.Exec(`INSERT OR IGNORE INTO written_by (author, paper) VALUES (?, ?)`, authorID, paperID)
	if err != nil {
		return false, fmt.Errorf("inserting written_by (%d, %d): %w", authorID, paperID, err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// InsertAffiliation inserts an affiliation unless it already exists.
func (t *Tx) InsertAffiliation(afid int64, name string) error {
	_, err := t.tx.Exec(`
		INSERT INTO affiliations (afid, affilname, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT DO NOTHING
	`, afid, name)
	if err != nil {
		return fmt.Errorf("inserting affiliation %d: %w", afid, err)
	}
	return nil
}

// InsertAffiliatedTo records a paper-affiliation edge.
func (t *Tx) InsertAffiliatedTo(afid, paperID int64) error {
	_, err := t.tx.Exec(`INSERT INTO affiliated_to (afil, paper) VALUES (?, ?)`, afid, paperID)
	if err != nil {
		return fmt.Errorf("inserting affiliated_to (%d, %d): %w", afid, paperID, err)
	}
	return nil
}

// PaperAffiliations returns the affiliation edges of a paper keyed by afid.
func (d *DB) PaperAffiliations(paperID int64) (map[int64]string, error) {
	rows, err := d.db.Query(`
		SELECT a.afid, a.affilname
		FROM affiliated_to t
		JOIN affiliations a ON a.afid = t.afil
		WHERE t.paper = ?
	`, paperID)
	if err != nil {
		return nil, fmt.Errorf("querying affiliations of paper %d: %w", paperID, err)
	}
	defer rows.Close()

	out := make(map[int64]string)
	for rows.Next() {
		var afid int64
		var name sql.NullString
		if err := rows.Scan(&afid, &name); err != nil {
			return nil, err
		}
		out[afid] = name.String
	}
	return out, rows.Err()
}

func scanPaper(s scanner) (*reference.Paper, error) {
	var p reference.Paper
	var title, date, origin, affiliation sql.NullString
	var pageRange, issueID, issn, isbn, eid, pubName sql.NullString

	err := s.Scan(
		&p.ScopusID, &title, &date, &origin, &affiliation,
		&pageRange, &issueID, &issn, &isbn, &eid, &pubName,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	p.Title = title.String
	p.Date = date.String
	p.Origin = reference.Origin(origin.String)
	p.PageRange = stringPtr(pageRange)
	p.IssueID = stringPtr(issueID)
	p.ISSN = stringPtr(issn)
	p.ISBN = stringPtr(isbn)
	p.EID = stringPtr(eid)
	p.PublicationName = stringPtr(pubName)

	if affiliation.Valid && affiliation.String != "" {
		if err := json.Unmarshal([]byte(affiliation.String), &p.Affiliation); err != nil {
			return nil, fmt.Errorf("parsing affiliation JSON for %d: %w", p.ScopusID, err)
		}
	}

	return &p, nil
}

func scanPapers(rows *sql.Rows) ([]reference.Paper, error) {
	var papers []reference.Paper
	for rows.Next() {
		p, err := scanPaper(rows)
		if err != nil {
			return nil, err
		}
		if p != nil {
			papers = append(papers, *p)
		}
	}
	return papers, rows.Err()
}

// BatchResult counts the rows written by InsertPaperBatch.
type BatchResult struct {
	Papers       int `json:"papers"`
	Skipped      int `json:"skipped"` // already cached or duplicated in the batch
	WrittenBy    int `json:"written_by"`
	Affiliations int `json:"affiliations"`
	AffiliatedTo int `json:"affiliated_to"`
}

// InsertPaperBatch persists one author's freshly fetched papers in a single
// transaction. The author row is inserted if missing. Papers already cached
// are not touched apart from asserting the author's own authorship edge;
// the remaining papers are deduplicated by id and inserted together with
// their authorship, affiliation and affiliation-edge rows. The author is
// always recorded as a writer of every paper in the batch, whether or not
// the paper's own author list names it.
func (d *DB) InsertPaperBatch(author reference.Author, papers []reference.Paper) (BatchResult, error) {
	var res BatchResult

	err := d.WithTx(func(tx *Tx) error {
		if err := tx.InsertAuthor(author); err != nil {
			return err
		}

		seen := make(map[int64]bool)
		var fresh []reference.Paper
		for _, p := range papers {
			if seen[p.ScopusID] {
				res.Skipped++
				continue
			}
			seen[p.ScopusID] = true

			cached, err := tx.PaperExists(p.ScopusID)
			if err != nil {
				return fmt.Errorf("checking paper %d: %w", p.ScopusID, err)
			}
			if cached {
				res.Skipped++
				added, err := tx.InsertWrittenBy(author.ScopusID, p.ScopusID)
				if err != nil {
					return err
				}
				if added {
					res.WrittenBy++
				}
				continue
			}
			fresh = append(fresh, p)
		}

		for _, p := range fresh {
			if err := tx.InsertPaper(p); err != nil {
				return err
			}
			res.Papers++
		}

		type pair struct{ author, paper int64 }
		pairs := make(map[pair]bool)
		for _, p := range fresh {
			authors := p.Authors
			if !p.HasAuthor(author.ScopusID) {
				authors = append(authors[:len(authors):len(authors)], author.ScopusID)
			}
			for _, a := range authors {
				k := pair{a, p.ScopusID}
				if pairs[k] {
					continue
				}
				pairs[k] = true
				added, err := tx.InsertWrittenBy(a, p.ScopusID)
				if err != nil {
					return err
				}
				if added {
					res.WrittenBy++
				}
			}
		}

		known := make(map[int64]bool)
		for _, p := range fresh {
			for _, afid := range sortedAfids(p.Affiliation) {
				if !known[afid] {
					known[afid] = true
					cached, err := tx.AffiliationExists(afid)
					if err != nil {
						return fmt.Errorf("checking affiliation %d: %w", afid, err)
					}
					if !cached {
						if err := tx.InsertAffiliation(afid, p.Affiliation[afid]); err != nil {
							return err
						}
						res.Affiliations++
					}
				}
				if err := tx.InsertAffiliatedTo(afid, p.ScopusID); err != nil {
					return err
				}
				res.AffiliatedTo++
			}
		}

		return nil
	})
	if err != nil {
		return BatchResult{}, err
	}
	return res, nil
}

func sortedAfids(m map[int64]string) []int64 {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

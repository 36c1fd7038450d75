package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/dadope/scopus-search/internal/reference"
)

var csvHeader = []string{
	"author_key", "author_id", "scopus_id", "date", "title", "origin",
	"authors", "publication_name", "issn", "isbn", "page_range", "eid",
}

// writeCSV renders one row per paper and identity.
func writeCSV(w io.Writer, reports []AuthorReport) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range reports {
		for _, b := range r.Buckets {
			for _, p := range b.Papers {
				row := []string{
					r.Key,
					strconv.FormatInt(b.Author.ScopusID, 10),
					strconv.FormatInt(p.ScopusID, 10),
					p.Date,
					p.Title,
					string(p.Origin),
					joinIDs(p.Authors, ";"),
					reference.Deref(p.PublicationName),
					reference.Deref(p.ISSN),
					reference.Deref(p.ISBN),
					reference.Deref(p.PageRange),
					reference.Deref(p.EID),
				}
				if err := cw.Write(row); err != nil {
					return err
				}
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// Package export renders synchronized papers in the supported output formats.
package export

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/dadope/scopus-search/internal/reference"
)

// Kind is an output format.
type Kind string

const (
	KindJSON     Kind = "json"
	KindMarkdown Kind = "markdown"
	KindCSV      Kind = "csv"
	KindBibTeX   Kind = "bibtex"
)

// Bucket holds the papers of one Scopus identity.
type Bucket struct {
	Author reference.Author
	Papers []reference.Paper
}

// AuthorReport is everything rendered for one requested author: the output
// key and one bucket per identity, canonical first.
type AuthorReport struct {
	Key     string
	Buckets []Bucket
}

// Writer renders reports to w.
type Writer func(w io.Writer, reports []AuthorReport) error

var writers = map[Kind]Writer{
	KindJSON:     writeJSON,
	KindMarkdown: writeMarkdown,
	KindCSV:      writeCSV,
	KindBibTeX:   writeBibTeX,
}

var aliases = map[string]Kind{
	"md":  KindMarkdown,
	"bib": KindBibTeX,
}

// ParseKind maps a format name, including short aliases, to a Kind.
func ParseKind(s string) (Kind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if k, ok := aliases[name]; ok {
		return k, nil
	}
	if _, ok := writers[Kind(name)]; ok {
		return Kind(name), nil
	}
	return "", fmt.Errorf("unknown output format %q (valid: %s)", s, strings.Join(KindNames(), ", "))
}

// KindNames lists the canonical format names in sorted order.
func KindNames() []string {
	names := make([]string, 0, len(writers))
	for k := range writers {
		names = append(names, string(k))
	}
	sort.Strings(names)
	return names
}

// Write renders reports in the given format. Reports sharing a key are
// merged first. Papers in every bucket are ordered by date, most recent first.
func Write(w io.Writer, kind Kind, reports []AuthorReport) error {
	fn, ok := writers[kind]
	if !ok {
		return fmt.Errorf("unknown output format %q", kind)
	}
	return fn(w, sorted(merge(reports)))
}

// merge combines reports with the same key, keeping the first occurrence's
// position. Buckets of an identity already present are dropped.
func merge(reports []AuthorReport) []AuthorReport {
	index := make(map[string]int, len(reports))
	out := make([]AuthorReport, 0, len(reports))
	for _, r := range reports {
		i, ok := index[r.Key]
		if !ok {
			index[r.Key] = len(out)
			out = append(out, AuthorReport{Key: r.Key, Buckets: append([]Bucket(nil), r.Buckets...)})
			continue
		}
		for _, b := range r.Buckets {
			if !hasIdentity(out[i].Buckets, b.Author.ScopusID) {
				out[i].Buckets = append(out[i].Buckets, b)
			}
		}
	}
	return out
}

func hasIdentity(buckets []Bucket, id int64) bool {
	for _, b := range buckets {
		if b.Author.ScopusID == id {
			return true
		}
	}
	return false
}

// sorted returns a copy of reports with each bucket's papers date-sorted.
func sorted(reports []AuthorReport) []AuthorReport {
	out := make([]AuthorReport, len(reports))
	for i, r := range reports {
		out[i] = AuthorReport{Key: r.Key, Buckets: make([]Bucket, len(r.Buckets))}
		for j, b := range r.Buckets {
			papers := append([]reference.Paper(nil), b.Papers...)
			reference.SortByDateDesc(papers)
			out[i].Buckets[j] = Bucket{Author: b.Author, Papers: papers}
		}
	}
	return out
}

func joinIDs(ids []int64, sep string) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return strings.Join(parts, sep)
}

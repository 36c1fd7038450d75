// Package filter applies declarative post-filters to synchronized papers.
package filter

import "github.com/dadope/scopus-search/internal/reference"

// Filter holds optional predicates. A nil bound or empty set is a no-op;
// set predicates combine with AND.
type Filter struct {
	MaxYear           *int    `json:"max_year,omitempty"` // keep year < MaxYear
	MinYear           *int    `json:"min_year,omitempty"` // keep year > MinYear
	ExcludeAuthors    []int64 `json:"exclude_authors,omitempty"`
	IncludeAnyAuthors []int64 `json:"include_any_authors,omitempty"`
	IncludeAllAuthors []int64 `json:"include_all_authors,omitempty"`
}

// IsZero reports whether the filter keeps every paper.
func (f Filter) IsZero() bool {
	return f.MaxYear == nil && f.MinYear == nil &&
		len(f.ExcludeAuthors) == 0 && len(f.IncludeAnyAuthors) == 0 && len(f.IncludeAllAuthors) == 0
}

// Apply returns the papers that satisfy every predicate, in their original
// order. The input slice is not modified.
func (f Filter) Apply(papers []reference.Paper) []reference.Paper {
	out := make([]reference.Paper, 0, len(papers))
	for _, p := range papers {
		if f.Keep(p) {
			out = append(out, p)
		}
	}
	return out
}

// Keep reports whether a single paper satisfies every predicate.
func (f Filter) Keep(p reference.Paper) bool {
	year := p.Year()
	if f.MaxYear != nil && year >= *f.MaxYear {
		return false
	}
	if f.MinYear != nil && year <= *f.MinYear {
		return false
	}
	if len(f.ExcludeAuthors) > 0 && intersects(p.Authors, f.ExcludeAuthors) {
		return false
	}
	if len(f.IncludeAnyAuthors) > 0 && !intersects(p.Authors, f.IncludeAnyAuthors) {
		return false
	}
	for _, id := range f.IncludeAllAuthors {
		if !p.HasAuthor(id) {
			return false
		}
	}
	return true
}

func intersects(authors, set []int64) bool {
	for _, a := range authors {
		for _, s := range set {
			if a == s {
				return true
			}
		}
	}
	return false
}

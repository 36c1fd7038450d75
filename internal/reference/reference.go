// Package reference defines the core domain types for cached bibliographic records.
package reference

import (
	"sort"
	"strconv"
)

// Origin records which Scopus data source produced a paper.
type Origin string

const (
	OriginAuthorsAPI Origin = "authors_api" // author document listing
	OriginSearchAPI  Origin = "search_api"  // general bibliographic search
)

// Paper represents a publication in canonical form.
type Paper struct {
	// Identity
	ScopusID int64  `json:"scopus_id"`
	Title    string `json:"title"`
	Date     string `json:"date"` // ISO yyyy-mm-dd cover date
	Origin   Origin `json:"origin"`

	// Affiliation maps afid to name. Nil means the source did not provide
	// affiliations, which is distinct from an empty map.
	Affiliation map[int64]string `json:"affiliation,omitempty"`

	// Optional bibliographic fields; nil means "not provided by source"
	PageRange       *string `json:"page_range,omitempty"`
	IssueID         *string `json:"issue_id,omitempty"`
	ISSN            *string `json:"issn,omitempty"`
	ISBN            *string `json:"isbn,omitempty"`
	EID             *string `json:"eid,omitempty"`
	PublicationName *string `json:"publication_name,omitempty"`

	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`

	// In-memory batch columns, not stored on the papers row
	Authors []int64 `json:"authors"`
	FromDB  bool    `json:"-"`
}

// Year returns the publication year taken from the date prefix, or 0 when
// the date is missing or malformed.
func (p Paper) Year() int {
	if len(p.Date) < 4 {
		return 0
	}
	y, err := strconv.Atoi(p.Date[:4])
	if err != nil {
		return 0
	}
	return y
}

// HasAuthor reports whether id is in the paper's author set.
func (p Paper) HasAuthor(id int64) bool {
	for _, a := range p.Authors {
		if a == id {
			return true
		}
	}
	return false
}

// SortByDateDesc orders papers most recent first. Ties keep their order.
func SortByDateDesc(papers []Paper) {
	sort.SliceStable(papers, func(i, j int) bool {
		return papers[i].Date > papers[j].Date
	})
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

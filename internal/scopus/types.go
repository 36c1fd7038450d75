// Package scopus provides a client for the Elsevier Scopus search and retrieval APIs.
package scopus

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Identifier prefixes used by the Scopus APIs.
const (
	AuthorIDPrefix = "AUTHOR_ID:"
	ScopusIDPrefix = "SCOPUS_ID:"
)

// oneOrMany decodes a JSON value that Scopus returns either as a single
// object or as an array of objects.
type oneOrMany[T any] []T

// UnmarshalJSON implements json.Unmarshaler.
func (o *oneOrMany[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*o = nil
		return nil
	}
	if data[0] == '[' {
		var many []T
		if err := json.Unmarshal(data, &many); err != nil {
			return err
		}
		*o = many
		return nil
	}
	var one T
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	*o = oneOrMany[T]{one}
	return nil
}

// flexString decodes a string that may arrive as a plain string, a number,
// a {"$": "..."} object, or an array of either. The first non-empty value wins.
type flexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
	case '{':
		var obj struct {
			Value flexString `json:"$"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		*f = obj.Value
	case '[':
		var items []flexString
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		*f = ""
		for _, item := range items {
			if item != "" {
				*f = item
				break
			}
		}
	default:
		// numbers and booleans
		*f = flexString(string(data))
	}
	return nil
}

// String returns the decoded value.
func (f flexString) String() string { return string(f) }

// Link is a navigation link in a search response.
type Link struct {
	Ref  string `json:"@ref"`
	Href string `json:"@href"`
}

// searchResults is the envelope shared by the author and document indexes.
type searchResults struct {
	Results struct {
		TotalResults flexString        `json:"opensearch:totalResults"`
		Links        oneOrMany[Link]   `json:"link"`
		Entries      []json.RawMessage `json:"entry"`
	} `json:"search-results"`
}

// nextHref returns the href of the "next" link, or "".
func (s searchResults) nextHref() string {
	for _, l := range s.Results.Links {
		if l.Ref == "next" {
			return l.Href
		}
	}
	return ""
}

// PreferredName is the display name attached to an author record.
type PreferredName struct {
	GivenName flexString `json:"given-name"`
	Surname   flexString `json:"surname"`
}

// AuthorCandidate is one entry of an author index search.
type AuthorCandidate struct {
	Identifier    string        `json:"dc:identifier"`
	PreferredName PreferredName `json:"preferred-name"`
}

// ID parses the numeric author id from the identifier field.
func (c AuthorCandidate) ID() (int64, error) {
	return parsePrefixedID(c.Identifier, AuthorIDPrefix)
}

// AffiliationRef is an affiliation embedded in a document record.
type AffiliationRef struct {
	AfID      flexString `json:"afid"`
	AffilName flexString `json:"affilname"`
}

// AuthorRef is an author embedded in a document record.
type AuthorRef struct {
	AuthID flexString `json:"authid"`
	AuID   flexString `json:"@auid"`
}

// ID returns the author id from whichever field the endpoint populated.
func (a AuthorRef) ID() string {
	if a.AuthID != "" {
		return a.AuthID.String()
	}
	return a.AuID.String()
}

// SearchRecord is one entry of a document index search (STANDARD view).
type SearchRecord struct {
	Identifier      string                    `json:"dc:identifier"`
	EID             flexString                `json:"eid"`
	Title           flexString                `json:"dc:title"`
	Creator         flexString                `json:"dc:creator"`
	PublicationName flexString                `json:"prism:publicationName"`
	ISSN            flexString                `json:"prism:issn"`
	ISBN            flexString                `json:"prism:isbn"`
	PageRange       flexString                `json:"prism:pageRange"`
	CoverDate       flexString                `json:"prism:coverDate"`
	IssueIdentifier flexString                `json:"prism:issueIdentifier"`
	Affiliations    oneOrMany[AffiliationRef] `json:"affiliation"`
}

// ScopusID parses the numeric document id from the identifier field.
func (r SearchRecord) ScopusID() (int64, error) {
	return parsePrefixedID(r.Identifier, ScopusIDPrefix)
}

// DocRecord is one entry of an author's full document listing. It carries
// everything a SearchRecord does plus the embedded author list.
type DocRecord struct {
	SearchRecord
	Author  oneOrMany[AuthorRef] `json:"author"`
	Authors *struct {
		Author oneOrMany[AuthorRef] `json:"author"`
	} `json:"authors"`
}

// AuthorRefs returns the embedded authors regardless of which envelope the
// endpoint used.
func (d DocRecord) AuthorRefs() []AuthorRef {
	if len(d.Author) > 0 {
		return d.Author
	}
	if d.Authors != nil {
		return d.Authors.Author
	}
	return nil
}

// AuthorProfile holds the names read from an author retrieval.
type AuthorProfile struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type authorRetrieval struct {
	Response oneOrMany[struct {
		Profile struct {
			PreferredName PreferredName `json:"preferred-name"`
		} `json:"author-profile"`
	}] `json:"author-retrieval-response"`
}

// DocumentDetail holds the fields read from an abstract retrieval.
type DocumentDetail struct {
	Authors []int64 `json:"authors"`
}

type abstractRetrieval struct {
	Response struct {
		Authors *struct {
			Author oneOrMany[AuthorRef] `json:"author"`
		} `json:"authors"`
	} `json:"abstracts-retrieval-response"`
}

// parsePrefixedID strips prefix from s and parses the remainder as int64.
func parsePrefixedID(s, prefix string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(strings.TrimPrefix(s, prefix)), 10, 64)
}

package scopus

import (
	"fmt"
	"strings"
)

// AuthorNameQuery builds an exact-phrase author index query.
func AuthorNameQuery(givenName, surname string) string {
	return fmt.Sprintf("AUTHFIRST({%s}) AND AUTHLASTNAME({%s})", escapePhrase(givenName), escapePhrase(surname))
}

// DocumentQuery builds a document index query for one author. Year bounds
// are inclusive; zero disables a bound.
func DocumentQuery(authorID int64, minYear, maxYear int) string {
	q := fmt.Sprintf("AU-ID(%d)", authorID)
	if minYear > 0 {
		q += fmt.Sprintf(" AND PUBYEAR > %d", minYear-1)
	}
	if maxYear > 0 {
		q += fmt.Sprintf(" AND PUBYEAR < %d", maxYear+1)
	}
	return q
}

// escapePhrase removes characters that would terminate an exact phrase.
func escapePhrase(s string) string {
	return strings.NewReplacer("{", "", "}", "").Replace(strings.TrimSpace(s))
}

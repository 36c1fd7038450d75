package export

import (
	"fmt"
	"io"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/dadope/scopus-search/internal/reference"
)

// writeBibTeX renders one entry per paper. A paper listed under several
// identities is written once.
func writeBibTeX(w io.Writer, reports []AuthorReport) error {
	seen := make(map[int64]bool)
	var entries []string
	for _, r := range reports {
		for _, b := range r.Buckets {
			for _, p := range b.Papers {
				if seen[p.ScopusID] {
					continue
				}
				seen[p.ScopusID] = true
				entries = append(entries, ToBibTeX(p, b.Author))
			}
		}
	}
	_, err := io.WriteString(w, strings.Join(entries, "\n"))
	return err
}

// ToBibTeX converts a paper to a BibTeX entry. owner is the identity the
// paper was synchronized for and seeds the citation key.
func ToBibTeX(p reference.Paper, owner reference.Author) string {
	venue := reference.Deref(p.PublicationName)
	entryType := determineEntryType(venue)
	var b strings.Builder

	b.WriteString(fmt.Sprintf("@%s{%s,\n", entryType, citeKey(p, owner)))

	b.WriteString(fmt.Sprintf("  title = {%s},\n", escapeLatex(p.Title)))

	if venue != "" {
		fieldName := "journal"
		if entryType == "inproceedings" {
			fieldName = "booktitle"
		}
		b.WriteString(fmt.Sprintf("  %s = {%s},\n", fieldName, escapeLatex(venue)))
	}

	if year := p.Year(); year > 0 {
		b.WriteString(fmt.Sprintf("  year = {%d},\n", year))
	}

	if p.PageRange != nil {
		b.WriteString(fmt.Sprintf("  pages = {%s},\n", strings.ReplaceAll(*p.PageRange, "-", "--")))
	}
	if p.IssueID != nil {
		b.WriteString(fmt.Sprintf("  number = {%s},\n", escapeLatex(*p.IssueID)))
	}
	if p.ISSN != nil {
		b.WriteString(fmt.Sprintf("  issn = {%s},\n", *p.ISSN))
	}
	if p.ISBN != nil {
		b.WriteString(fmt.Sprintf("  isbn = {%s},\n", *p.ISBN))
	}

	b.WriteString(fmt.Sprintf("  note = {Scopus ID %d", p.ScopusID))
	if p.EID != nil {
		b.WriteString(fmt.Sprintf(", EID %s", *p.EID))
	}
	b.WriteString("},\n")

	b.WriteString("}\n")

	return b.String()
}

// determineEntryType returns the BibTeX entry type for a publication name.
func determineEntryType(venue string) string {
	venue = strings.ToLower(venue)

	if strings.Contains(venue, "proceedings") ||
		strings.Contains(venue, "conference") ||
		strings.Contains(venue, "workshop") ||
		strings.Contains(venue, "symposium") {
		return "inproceedings"
	}

	return "article"
}

// citeKey builds "Surname2021word" from the owner's surname, the year and
// the first significant title word, folded to ASCII. Papers without a
// usable surname fall back to "scopus<id>".
func citeKey(p reference.Paper, owner reference.Author) string {
	surname := asciiFold(owner.Surname)
	if surname == "" {
		return fmt.Sprintf("scopus%d", p.ScopusID)
	}

	year := p.Year()
	if year == 0 {
		year = 9999
	}
	return fmt.Sprintf("%s%d%s", surname, year, titleWord(p.Title))
}

var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "of": true, "and": true,
	"in": true, "on": true, "for": true, "to": true, "with": true,
}

func titleWord(title string) string {
	for _, word := range strings.Fields(strings.ToLower(title)) {
		if w := asciiFold(word); w != "" && !stopWords[w] {
			return w
		}
	}
	return ""
}

// asciiFold strips diacritics and drops every rune that is not an ASCII
// letter or digit.
func asciiFold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	for _, r := range folded {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// escapeLatex escapes special LaTeX characters.
func escapeLatex(s string) string {
	replacer := strings.NewReplacer(
		`\`, `\textbackslash{}`,
		"&", `\&`,
		"%", `\%`,
		"$", `\$`,
		"#", `\#`,
		"_", `\_`,
		"{", `\{`,
		"}", `\}`,
		"~", `\textasciitilde{}`,
		"^", `\textasciicircum{}`,
	)
	return replacer.Replace(s)
}

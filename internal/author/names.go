// Package author resolves author names and ids to canonical Scopus author
// identities and handles the name heuristics used during disambiguation.
package author

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// DefaultNameFormat is used for both parsing typed names and rendering
// output keys when no format is configured.
const DefaultNameFormat = "{surname}, {given_name}"

// MissingSurname is the surname recorded when a name has no whitespace to
// split on.
const MissingSurname = " "

// ErrMalformedNameInput indicates a name could not be split into given name
// and surname. It is informational: callers still receive a usable pair.
var ErrMalformedNameInput = errors.New("malformed name input")

// SplitName splits s on its last whitespace boundary into given name and
// surname. Without whitespace the whole string becomes the given name, the
// surname is MissingSurname and ErrMalformedNameInput is returned.
func SplitName(s string) (givenName, surname string, err error) {
	s = strings.TrimSpace(s)
	idx := strings.LastIndexFunc(s, unicode.IsSpace)
	if idx < 0 {
		return s, MissingSurname, fmt.Errorf("%w: %q", ErrMalformedNameInput, s)
	}
	return strings.TrimSpace(s[:idx]), strings.TrimSpace(s[idx+1:]), nil
}

var placeholderRe = regexp.MustCompile(`\{([a-z_]+)\}`)

// ParseName parses a full name typed by the user according to format, which
// uses {given_name} and {surname} placeholders:
//
//   - "{surname}, {given_name}": "Lovelace, Ada" → given="Ada", surname="Lovelace"
//   - "{given_name} {surname}":  "Ada King Lovelace" → given="Ada", surname="King Lovelace"
//
// An empty format means DefaultNameFormat. Input that does not fit the
// format falls back to SplitName and reports ErrMalformedNameInput.
func ParseName(full, format string) (givenName, surname string, err error) {
	if format == "" {
		format = DefaultNameFormat
	}
	full = strings.TrimSpace(full)

	re, err := formatPattern(format)
	if err == nil {
		if m := re.FindStringSubmatch(full); m != nil {
			givenName = strings.TrimSpace(m[re.SubexpIndex("given_name")])
			surname = strings.TrimSpace(m[re.SubexpIndex("surname")])
			if givenName != "" && surname != "" {
				return givenName, surname, nil
			}
		}
	}

	givenName, surname, _ = SplitName(full)
	return givenName, surname, fmt.Errorf("%w: %q does not match %q", ErrMalformedNameInput, full, format)
}

// formatPattern compiles a name format into an anchored regexp with named
// groups. Both placeholders must appear exactly once.
func formatPattern(format string) (*regexp.Regexp, error) {
	counts := map[string]int{}
	for _, m := range placeholderRe.FindAllStringSubmatch(format, -1) {
		counts[m[1]]++
	}
	if counts["given_name"] != 1 || counts["surname"] != 1 {
		return nil, fmt.Errorf("name format %q needs {given_name} and {surname}", format)
	}

	var b strings.Builder
	b.WriteString(`^`)
	last := 0
	for _, loc := range placeholderRe.FindAllStringSubmatchIndex(format, -1) {
		b.WriteString(regexp.QuoteMeta(format[last:loc[0]]))
		name := format[loc[2]:loc[3]]
		switch name {
		case "given_name", "surname":
			fmt.Fprintf(&b, `(?P<%s>.+?)`, name)
		default:
			b.WriteString(`.*?`)
		}
		last = loc[1]
	}
	b.WriteString(regexp.QuoteMeta(format[last:]))
	b.WriteString(`$`)
	return regexp.Compile(b.String())
}

// FormatName renders an output key from format using {scopus_id},
// {given_name} and {surname}. A format with any other placeholder, or an
// empty one, falls back to DefaultNameFormat.
func FormatName(format string, id int64, givenName, surname string) string {
	if format == "" || !knownPlaceholders(format) {
		format = DefaultNameFormat
	}
	r := strings.NewReplacer(
		"{scopus_id}", strconv.FormatInt(id, 10),
		"{given_name}", givenName,
		"{surname}", surname,
	)
	return r.Replace(format)
}

func knownPlaceholders(format string) bool {
	for _, m := range placeholderRe.FindAllStringSubmatch(format, -1) {
		switch m[1] {
		case "scopus_id", "given_name", "surname":
		default:
			return false
		}
	}
	return true
}

// NameGuess is a candidate display name with the number of records that
// carry it.
type NameGuess struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// String renders the guess as "[count] name".
func (g NameGuess) String() string {
	return fmt.Sprintf("[%d] %s", g.Count, g.Name)
}

// NameGuesses groups creator strings by exact value and ranks them by
// count, most frequent first. Equal counts are ordered by name. Empty
// strings are ignored.
func NameGuesses(creators []string) []NameGuess {
	counts := make(map[string]int)
	for _, c := range creators {
		if c == "" {
			continue
		}
		counts[c]++
	}

	guesses := make([]NameGuess, 0, len(counts))
	for name, n := range counts {
		guesses = append(guesses, NameGuess{Name: name, Count: n})
	}
	sort.Slice(guesses, func(i, j int) bool {
		if guesses[i].Count != guesses[j].Count {
			return guesses[i].Count > guesses[j].Count
		}
		return guesses[i].Name < guesses[j].Name
	})
	return guesses
}

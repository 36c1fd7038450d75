package export

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/dadope/scopus-search/internal/reference"
)

// writeMarkdown renders a section per report and a table per identity.
func writeMarkdown(w io.Writer, reports []AuthorReport) error {
	bw := bufio.NewWriter(w)
	for i, r := range reports {
		if i > 0 {
			fmt.Fprintln(bw)
		}
		fmt.Fprintf(bw, "## %s\n", escapeMarkdown(r.Key))
		for _, b := range r.Buckets {
			if len(r.Buckets) > 1 {
				fmt.Fprintf(bw, "\n### Scopus ID %d\n", b.Author.ScopusID)
			}
			fmt.Fprintln(bw)
			writeMarkdownTable(bw, b.Papers)
		}
	}
	return bw.Flush()
}

func writeMarkdownTable(w io.Writer, papers []reference.Paper) {
	if len(papers) == 0 {
		fmt.Fprintln(w, "_No papers._")
		return
	}
	fmt.Fprintln(w, "| Date | Title | Publication | Authors | Scopus ID |")
	fmt.Fprintln(w, "|------|-------|-------------|---------|-----------|")
	for _, p := range papers {
		fmt.Fprintf(w, "| %s | %s | %s | %s | %d |\n",
			p.Date,
			escapeMarkdown(p.Title),
			escapeMarkdown(reference.Deref(p.PublicationName)),
			joinIDs(p.Authors, ", "),
			p.ScopusID)
	}
}

// escapeMarkdown keeps table cells on one line and away from column breaks.
func escapeMarkdown(s string) string {
	return strings.NewReplacer(
		"|", `\|`,
		"\r\n", " ",
		"\n", " ",
	).Replace(s)
}

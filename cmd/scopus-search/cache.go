package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dadope/scopus-search/internal/reference"
	"github.com/dadope/scopus-search/internal/storage"
)

// Title truncation length for cache listings
const paperTitleMaxLen = 70

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheAuthorsCmd)
	cacheCmd.AddCommand(cachePaperCmd)
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect the local cache",
	Long: `Inspect the local cache without contacting Scopus.

Examples:
  scopus-search cache stats
  scopus-search cache authors --human
  scopus-search cache paper 85012345678`,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show row counts for each table",
	Args:  cobra.NoArgs,
	RunE:  runCacheStats,
}

var cacheAuthorsCmd = &cobra.Command{
	Use:   "authors",
	Short: "List cached authors and their aliases",
	Args:  cobra.NoArgs,
	RunE:  runCacheAuthors,
}

var cachePaperCmd = &cobra.Command{
	Use:   "paper <scopus-id>",
	Short: "Show one cached paper",
	Args:  cobra.ExactArgs(1),
	RunE:  runCachePaper,
}

// CacheStatsResponse is the JSON response for cache stats.
type CacheStatsResponse struct {
	Path string        `json:"path"`
	Rows storage.Stats `json:"rows"`
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig()
	db := mustOpenDatabase(cfg)
	defer db.Close()

	stats, err := db.Stats()
	if err != nil {
		exitWithError(ExitDataError, "%v", err)
	}

	if humanOutput {
		fmt.Printf("Cache: %s\n\n", cfg.DBPath)
		fmt.Printf("  authors:       %d (%d aliases)\n", stats.Authors, stats.Aliases)
		fmt.Printf("  papers:        %d\n", stats.Papers)
		fmt.Printf("  written_by:    %d\n", stats.WrittenBy)
		fmt.Printf("  affiliations:  %d\n", stats.Affiliations)
		fmt.Printf("  affiliated_to: %d\n", stats.AffiliatedTo)
		return nil
	}
	return outputJSON(CacheStatsResponse{Path: cfg.DBPath, Rows: stats})
}

// AuthorGroupResponse is a canonical author with its aliases.
type AuthorGroupResponse struct {
	reference.Author
	Aliases []reference.Author `json:"aliases"`
}

func runCacheAuthors(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig()
	db := mustOpenDatabase(cfg)
	defer db.Close()

	authors, err := db.ListAuthors()
	if err != nil {
		exitWithError(ExitDataError, "%v", err)
	}

	groups := groupAuthors(authors)
	if humanOutput {
		if len(groups) == 0 {
			fmt.Println("No cached authors.")
			return nil
		}
		for _, g := range groups {
			fmt.Printf("%d  %s\n", g.ScopusID, displayName(g.Author))
			for _, a := range g.Aliases {
				fmt.Printf("  alias %d\n", a.ScopusID)
			}
		}
		return nil
	}
	return outputJSON(groups)
}

// groupAuthors nests aliases under their canonical author. Canonical authors
// keep the input order; aliases whose canonical row is missing are listed as
// their own group.
func groupAuthors(authors []reference.Author) []AuthorGroupResponse {
	index := make(map[int64]int)
	groups := make([]AuthorGroupResponse, 0, len(authors))
	for _, a := range authors {
		if !a.IsAlias() {
			index[a.ScopusID] = len(groups)
			groups = append(groups, AuthorGroupResponse{Author: a, Aliases: []reference.Author{}})
		}
	}
	for _, a := range authors {
		if !a.IsAlias() {
			continue
		}
		if i, ok := index[a.CanonicalID()]; ok {
			groups[i].Aliases = append(groups[i].Aliases, a)
			continue
		}
		groups = append(groups, AuthorGroupResponse{Author: a, Aliases: []reference.Author{}})
	}
	for i := range groups {
		sort.Slice(groups[i].Aliases, func(x, y int) bool {
			return groups[i].Aliases[x].ScopusID < groups[i].Aliases[y].ScopusID
		})
	}
	return groups
}

func displayName(a reference.Author) string {
	name := strings.TrimSpace(a.GivenName + " " + a.Surname)
	if name == "" {
		return "(unnamed)"
	}
	return name
}

// PaperResponse is a cached paper with its affiliations.
type PaperResponse struct {
	reference.Paper
	Affiliations map[int64]string `json:"affiliations,omitempty"`
}

func runCachePaper(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		exitWithError(ExitError, "invalid paper id %q", args[0])
	}

	cfg := mustLoadConfig()
	db := mustOpenDatabase(cfg)
	defer db.Close()

	p, err := db.GetPaper(id)
	if err != nil {
		exitWithError(ExitDataError, "%v", err)
	}
	if p == nil {
		exitWithError(ExitError, "paper %d is not cached", id)
	}
	affiliations, err := db.PaperAffiliations(id)
	if err != nil {
		exitWithError(ExitDataError, "%v", err)
	}

	if humanOutput {
		fmt.Printf("%s\n", truncateString(p.Title, paperTitleMaxLen))
		fmt.Printf("  date:    %s\n", p.Date)
		if p.PublicationName != nil {
			fmt.Printf("  venue:   %s\n", *p.PublicationName)
		}
		fmt.Printf("  authors: %s\n", formatIDs(p.Authors))
		afids := make([]int64, 0, len(affiliations))
		for afid := range affiliations {
			afids = append(afids, afid)
		}
		sort.Slice(afids, func(i, j int) bool { return afids[i] < afids[j] })
		for _, afid := range afids {
			fmt.Printf("  affiliation %d: %s\n", afid, affiliations[afid])
		}
		return nil
	}
	return outputJSON(PaperResponse{Paper: *p, Affiliations: affiliations})
}

func formatIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ", ")
}

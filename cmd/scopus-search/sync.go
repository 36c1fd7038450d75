package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/dadope/scopus-search/internal/author"
	"github.com/dadope/scopus-search/internal/export"
	"github.com/dadope/scopus-search/internal/filter"
	"github.com/dadope/scopus-search/internal/syncer"
)

var (
	syncMaxYear           int
	syncMinYear           int
	syncExcludeAuthors    []int64
	syncIncludeAnyAuthors []int64
	syncIncludeAllAuthors []int64
	syncExcludeIDs        []int64
	syncFormat            string
	syncInputNameFormat   string
	syncOutputNameFormat  string
	syncNoInput           bool
)

func init() {
	rootCmd.AddCommand(syncCmd)

	f := syncCmd.Flags()
	f.IntVar(&syncMaxYear, "max-year", 0, "Keep papers published before this year")
	f.IntVar(&syncMinYear, "min-year", 0, "Keep papers published after this year")
	f.Int64SliceVar(&syncExcludeAuthors, "exclude-authors", nil, "Drop papers written by any of these author ids")
	f.Int64SliceVar(&syncIncludeAnyAuthors, "include-any-authors", nil, "Keep papers written by at least one of these author ids")
	f.Int64SliceVar(&syncIncludeAllAuthors, "include-all-authors", nil, "Keep papers written by all of these author ids")
	f.Int64SliceVar(&syncExcludeIDs, "exclude-ids", nil, "Author ids to ignore when resolving names")
	f.StringVarP(&syncFormat, "format", "f", "", "Output format: "+strings.Join(export.KindNames(), ", ")+" (default from config)")
	f.StringVar(&syncInputNameFormat, "input-name-format", "", "Format of name arguments (default from config)")
	f.StringVar(&syncOutputNameFormat, "output-name-format", "", "Format of output keys (default from config)")
	f.BoolVar(&syncNoInput, "no-input", false, "Never prompt; authors without a known name stay unnamed")
}

var syncCmd = &cobra.Command{
	Use:   "sync <author>...",
	Short: "Synchronize and print the papers of one or more authors",
	Long: `Synchronize the papers of each author into the local cache and print them.

An all-numeric argument is a Scopus author id; anything else is a name parsed
with the input name format ("{surname}, {given_name}" by default). A name may
resolve to several Scopus identities; the first becomes canonical and the rest
its aliases, and every identity is synchronized.

Filters apply to the printed papers only; the cache always holds everything.

Examples:
  scopus-search sync 7004212771
  scopus-search sync "Lovelace, Ada" --format md
  scopus-search sync "Ada Lovelace" --input-name-format "{given_name} {surname}"
  scopus-search sync "Hopper, Grace" --min-year 2015 --exclude-ids 57190000000
  scopus-search sync 7004212771 --include-any-authors 35500000000,35500000001`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSync,
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig()

	format := cfg.OutputFormat
	if cmd.Flags().Changed("format") {
		format = syncFormat
	} else if humanOutput {
		format = string(export.KindMarkdown)
	}
	kind, err := export.ParseKind(format)
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}

	opts := syncOptions{
		Exclude:      idSet(syncExcludeIDs),
		InputFormat:  firstNonEmpty(syncInputNameFormat, cfg.NameInputFormat),
		OutputFormat: firstNonEmpty(syncOutputNameFormat, cfg.NameOutputFormat),
		Filter: filter.Filter{
			ExcludeAuthors:    syncExcludeAuthors,
			IncludeAnyAuthors: syncIncludeAnyAuthors,
			IncludeAllAuthors: syncIncludeAllAuthors,
		},
	}
	if cmd.Flags().Changed("max-year") {
		opts.Filter.MaxYear = &syncMaxYear
	}
	if cmd.Flags().Changed("min-year") {
		opts.Filter.MinYear = &syncMinYear
	}

	logger := mustNewLogger()
	defer func() { _ = logger.Sync() }()

	db := mustOpenDatabase(cfg)
	defer db.Close()
	client := mustNewClient(cfg)

	engineOpts := []syncer.Option{syncer.WithLogger(logger)}
	if !syncNoInput {
		engineOpts = append(engineOpts, syncer.WithNamePicker(newPromptPicker(os.Stdin, os.Stderr)))
	}

	runner := &syncRunner{
		resolver: author.NewResolver(db, client, logger),
		engine:   syncer.New(db, client, engineOpts...),
		logger:   logger,
		opts:     opts,
	}

	reports, syncErr := runner.run(cmd.Context(), args)

	if len(reports) > 0 {
		if err := export.Write(os.Stdout, kind, reports); err != nil {
			exitWithError(ExitError, "writing output: %v", err)
		}
	}

	if syncErr != nil {
		reportFailures(syncErr)
		os.Exit(ExitError)
	}
	return nil
}

// authorError is the failure of one command-line author.
type authorError struct {
	Query string
	Err   error
}

func (e *authorError) Error() string { return e.Query + ": " + e.Err.Error() }

func (e *authorError) Unwrap() error { return e.Err }

// failedAuthors flattens combined sync errors for reporting.
func failedAuthors(err error) []FailedAuthor {
	var out []FailedAuthor
	for _, e := range multierr.Errors(err) {
		var ae *authorError
		if errors.As(e, &ae) {
			out = append(out, FailedAuthor{Query: ae.Query, Error: ae.Err.Error()})
			continue
		}
		out = append(out, FailedAuthor{Error: e.Error()})
	}
	return out
}

// reportFailures writes failed authors to stderr, keeping stdout for the
// rendered papers.
func reportFailures(err error) {
	failed := failedAuthors(err)
	if humanOutput {
		for _, f := range failed {
			outputError(ExitError, "%s: %s", f.Query, f.Error)
		}
		return
	}
	enc := json.NewEncoder(os.Stderr)
	enc.SetIndent("", "  ")
	_ = enc.Encode(FailedAuthorsResponse{Failed: failed})
}

// syncOptions holds the per-run settings of a syncRunner.
type syncOptions struct {
	Exclude      map[int64]bool
	Filter       filter.Filter
	InputFormat  string
	OutputFormat string
}

// syncRunner resolves and synchronizes each command-line author in turn.
type syncRunner struct {
	resolver *author.Resolver
	engine   *syncer.Engine
	logger   *zap.Logger
	opts     syncOptions
}

// run returns one report per author that synchronized, in argument order.
// Failures do not stop later authors; they are combined into the returned
// error.
func (r *syncRunner) run(ctx context.Context, args []string) ([]export.AuthorReport, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	var reports []export.AuthorReport
	var errs error
	for _, arg := range args {
		report, err := r.syncAuthor(ctx, arg)
		if err != nil {
			errs = multierr.Append(errs, &authorError{Query: arg, Err: err})
			continue
		}
		reports = append(reports, report)
	}
	return reports, errs
}

// syncAuthor synchronizes every identity of one argument independently.
// The report holds the identities that succeeded; identity failures are
// logged and only fail the argument when no identity succeeded. An alias
// without papers is skipped silently.
func (r *syncRunner) syncAuthor(ctx context.Context, arg string) (export.AuthorReport, error) {
	res, err := r.resolve(ctx, arg)
	if err != nil {
		return export.AuthorReport{}, err
	}

	var report export.AuthorReport
	var errs error
	for i, identity := range res.Identities {
		out, err := r.engine.Sync(ctx, identity)
		if err != nil {
			if ctx.Err() != nil {
				return export.AuthorReport{}, err
			}
			if i > 0 && errors.Is(err, syncer.ErrNoPapersFound) {
				r.logger.Info("skipping alias without papers", zap.Int64("author", identity.ScopusID))
				continue
			}
			r.logger.Warn("identity failed", zap.Int64("author", identity.ScopusID), zap.Error(err))
			errs = multierr.Append(errs, err)
			continue
		}
		r.logger.Info("loaded papers",
			zap.Int64("author", identity.ScopusID),
			zap.Int("cached", out.Cached),
			zap.Int("downloaded", out.Downloaded))

		papers := out.Papers
		if !r.opts.Filter.IsZero() {
			papers = r.opts.Filter.Apply(papers)
		}
		report.Buckets = append(report.Buckets, export.Bucket{Author: out.Author, Papers: papers})
	}

	if len(report.Buckets) == 0 {
		if errs == nil {
			errs = fmt.Errorf("%w: %s", syncer.ErrNoPapersFound, arg)
		}
		return export.AuthorReport{}, errs
	}

	base := res.Base()
	if report.Buckets[0].Author.ScopusID == base.ScopusID {
		base = report.Buckets[0].Author
	}
	report.Key = outputKey(r.opts.OutputFormat, base.ScopusID, base.GivenName, base.Surname)
	return report, nil
}

func (r *syncRunner) resolve(ctx context.Context, arg string) (*author.Resolution, error) {
	q, err := parseAuthorArg(arg, r.opts.InputFormat)
	if err != nil {
		if !errors.Is(err, author.ErrMalformedNameInput) {
			return nil, err
		}
		r.logger.Warn("name does not match input format",
			zap.String("input", arg),
			zap.String("given_name", q.GivenName),
			zap.String("surname", q.Surname))
	}

	if q.ID != 0 {
		return r.resolver.ResolveByID(ctx, q.ID)
	}
	return r.resolver.ResolveByName(ctx, q.GivenName, q.Surname, r.opts.Exclude)
}

// authorQuery is one positional argument: an author id or a name.
type authorQuery struct {
	ID        int64
	GivenName string
	Surname   string
}

// parseAuthorArg treats an all-digit argument as an author id and anything
// else as a name in nameFormat. A name that does not fit the format is still
// split on its last whitespace and returned with ErrMalformedNameInput.
func parseAuthorArg(arg, nameFormat string) (authorQuery, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return authorQuery{}, errors.New("empty author argument")
	}
	if isDigits(arg) {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil || id == 0 {
			return authorQuery{}, fmt.Errorf("invalid author id %q", arg)
		}
		return authorQuery{ID: id}, nil
	}

	given, surname, err := author.ParseName(arg, nameFormat)
	return authorQuery{GivenName: given, Surname: surname}, err
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// outputKey formats the output key of an author. Authors without any name
// are keyed by id.
func outputKey(format string, id int64, givenName, surname string) string {
	if strings.TrimSpace(givenName) == "" && strings.TrimSpace(surname) == "" {
		return strconv.FormatInt(id, 10)
	}
	return author.FormatName(format, id, givenName, surname)
}

func idSet(ids []int64) map[int64]bool {
	if len(ids) == 0 {
		return nil
	}
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Package syncer refreshes one author's papers: cached rows are merged with
// a remote delta bounded by a year watermark, and new rows are persisted.
package syncer

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/dadope/scopus-search/internal/author"
	"github.com/dadope/scopus-search/internal/normalize"
	"github.com/dadope/scopus-search/internal/reference"
	"github.com/dadope/scopus-search/internal/scopus"
	"github.com/dadope/scopus-search/internal/storage"
)

var (
	// ErrNoPapersFound indicates neither the document listing nor the
	// search fallback returned any paper for a cold author.
	ErrNoPapersFound = errors.New("no papers found")

	// ErrStoreInconsistency indicates a cached author without cached papers.
	ErrStoreInconsistency = errors.New("cached author has no cached papers")
)

// Store is the part of the local cache the engine uses.
type Store interface {
	normalize.Store
	FindAuthor(id int64) (*reference.Author, error)
	LatestPaperDate(authorID int64) (string, bool, error)
	PapersByAuthor(authorID int64, minYear, maxYear int) ([]reference.Paper, error)
	InsertPaperBatch(a reference.Author, papers []reference.Paper) (storage.BatchResult, error)
}

// Remote is the part of the Scopus client the engine uses.
type Remote interface {
	normalize.DetailReader
	ReadAuthorDocumentList(ctx context.Context, authorID int64) ([]scopus.DocRecord, error)
	SearchDocumentIndex(ctx context.Context, authorID int64, minYear, maxYear int) ([]scopus.SearchRecord, error)
}

// NamePicker chooses a display name for an author whose names are unknown,
// given candidates ranked by frequency. An empty return leaves the names
// unset.
type NamePicker interface {
	PickName(ctx context.Context, a reference.Author, guesses []author.NameGuess) (string, error)
}

// Result is the outcome of one sync cycle.
type Result struct {
	Author      reference.Author    `json:"author"`
	Papers      []reference.Paper   `json:"papers"`
	NameGuesses []author.NameGuess  `json:"name_guesses,omitempty"`
	Cold        bool                `json:"cold"`
	Watermark   int                 `json:"watermark,omitempty"`
	Cached      int                 `json:"cached"`
	Downloaded  int                 `json:"downloaded"`
	Batch       storage.BatchResult `json:"batch"`
}

// Engine runs sync cycles. It is not safe for concurrent use; authors are
// synchronized one at a time.
type Engine struct {
	store      Store
	remote     Remote
	normalizer *normalize.Normalizer
	picker     NamePicker
	logger     *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithNamePicker enables disambiguation on the search fallback path.
func WithNamePicker(p NamePicker) Option {
	return func(e *Engine) {
		e.picker = p
	}
}

// New creates an Engine.
func New(store Store, remote Remote, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		remote: remote,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.normalizer = normalize.New(store, remote, e.logger)
	return e
}

// Sync refreshes the papers of a single author identity. A cached author
// is warm: only papers from the watermark year on are fetched and merged
// in front of the cached set. Otherwise the author is cold and everything
// is fetched. New rows are persisted in one transaction.
func (e *Engine) Sync(ctx context.Context, a reference.Author) (*Result, error) {
	cached, err := e.store.FindAuthor(a.ScopusID)
	if err != nil {
		return nil, err
	}

	log := e.logger.With(zap.Int64("author", a.ScopusID))
	if cached != nil {
		return e.syncWarm(ctx, *cached, log)
	}
	return e.syncCold(ctx, a, log)
}

func (e *Engine) syncWarm(ctx context.Context, a reference.Author, log *zap.Logger) (*Result, error) {
	latest, ok, err := e.store.LatestPaperDate(a.ScopusID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: author %d", ErrStoreInconsistency, a.ScopusID)
	}
	watermark := reference.Paper{Date: latest}.Year()

	cachedPapers, err := e.store.PapersByAuthor(a.ScopusID, 0, 0)
	if err != nil {
		return nil, err
	}

	log.Info("downloading papers since watermark", zap.Int("watermark", watermark))
	records, err := e.remote.SearchDocumentIndex(ctx, a.ScopusID, watermark, 0)
	if err != nil && !scopus.IsNotFound(err) {
		return nil, fmt.Errorf("fetching papers of author %d: %w", a.ScopusID, err)
	}
	delta, err := e.normalizer.FromSearchResults(ctx, records, a.ScopusID)
	if err != nil {
		return nil, err
	}

	known := make(map[int64]bool, len(cachedPapers))
	for _, p := range cachedPapers {
		known[p.ScopusID] = true
	}
	var merged []reference.Paper
	var fresh []reference.Paper
	for _, p := range dedupe(delta) {
		if known[p.ScopusID] {
			continue
		}
		merged = append(merged, p)
		fresh = append(fresh, p)
	}
	merged = append(merged, cachedPapers...)

	batch, err := e.store.InsertPaperBatch(a, fresh)
	if err != nil {
		return nil, fmt.Errorf("persisting papers of author %d: %w", a.ScopusID, err)
	}

	log.Info("synchronized author",
		zap.Int("loaded_from_database", len(cachedPapers)),
		zap.Int("downloaded", len(fresh)),
		zap.Int("inserted", batch.Papers))

	return &Result{
		Author:     a,
		Papers:     merged,
		Watermark:  watermark,
		Cached:     len(cachedPapers),
		Downloaded: len(fresh),
		Batch:      batch,
	}, nil
}

func (e *Engine) syncCold(ctx context.Context, a reference.Author, log *zap.Logger) (*Result, error) {
	res := &Result{Cold: true}

	log.Info("downloading paper list")
	papers, err := e.fetchDocumentList(ctx, a.ScopusID, log)
	if err != nil {
		return nil, err
	}

	if len(papers) == 0 {
		log.Info("document listing unavailable, searching by author id")
		records, err := e.remote.SearchDocumentIndex(ctx, a.ScopusID, 0, 0)
		if err != nil && !scopus.IsNotFound(err) {
			return nil, fmt.Errorf("searching papers of author %d: %w", a.ScopusID, err)
		}
		if len(records) == 0 {
			return nil, fmt.Errorf("%w: author %d", ErrNoPapersFound, a.ScopusID)
		}

		papers, err = e.normalizer.FromSearchResults(ctx, records, a.ScopusID)
		if err != nil {
			return nil, err
		}
		res.NameGuesses = author.NameGuesses(normalize.Creators(records))

		if a.GivenName == "" && a.Surname == "" {
			a = e.pickName(ctx, a, res.NameGuesses, log)
		}
	}

	papers = dedupe(papers)
	if len(papers) == 0 {
		return nil, fmt.Errorf("%w: author %d", ErrNoPapersFound, a.ScopusID)
	}

	batch, err := e.store.InsertPaperBatch(a, papers)
	if err != nil {
		return nil, fmt.Errorf("persisting papers of author %d: %w", a.ScopusID, err)
	}

	log.Info("synchronized author",
		zap.Int("downloaded", len(papers)),
		zap.Int("inserted", batch.Papers))

	res.Author = a
	res.Papers = papers
	res.Downloaded = len(papers)
	res.Batch = batch
	return res, nil
}

// fetchDocumentList reads the full listing. An unavailable listing yields
// no papers so the caller can fall back to the search index.
func (e *Engine) fetchDocumentList(ctx context.Context, authorID int64, log *zap.Logger) ([]reference.Paper, error) {
	records, err := e.remote.ReadAuthorDocumentList(ctx, authorID)
	if err != nil {
		if scopus.IsUnavailable(err) {
			log.Info("document listing failed", zap.Error(err))
			return nil, nil
		}
		return nil, fmt.Errorf("reading document list of author %d: %w", authorID, err)
	}

	papers := normalize.FromDocumentList(records)
	for i := range papers {
		cached, err := e.store.PaperExists(papers[i].ScopusID)
		if err != nil {
			return nil, err
		}
		papers[i].FromDB = cached
	}
	return papers, nil
}

// pickName asks the picker for a display name and splits it. Any failure
// leaves the author unnamed.
func (e *Engine) pickName(ctx context.Context, a reference.Author, guesses []author.NameGuess, log *zap.Logger) reference.Author {
	if e.picker == nil {
		return a
	}
	name, err := e.picker.PickName(ctx, a, guesses)
	if err != nil {
		log.Warn("name selection failed", zap.Error(err))
		return a
	}
	if name == "" {
		return a
	}

	given, surname, err := author.SplitName(name)
	if err != nil {
		log.Warn("using unsplit name", zap.Error(err))
	}
	a.GivenName = given
	a.Surname = surname
	return a
}

// dedupe drops repeated paper ids, keeping the first occurrence.
func dedupe(papers []reference.Paper) []reference.Paper {
	seen := make(map[int64]bool, len(papers))
	out := papers[:0:0]
	for _, p := range papers {
		if seen[p.ScopusID] {
			continue
		}
		seen[p.ScopusID] = true
		out = append(out, p)
	}
	return out
}

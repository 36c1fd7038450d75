package author

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/dadope/scopus-search/internal/reference"
	"github.com/dadope/scopus-search/internal/scopus"
)

var (
	// ErrIdentityNotFound indicates the author index returned nothing usable
	// for a name query.
	ErrIdentityNotFound = errors.New("author identity not found")

	// ErrNoAuthorsRemaining indicates every candidate of a name query was
	// excluded by the caller.
	ErrNoAuthorsRemaining = errors.New("no authors remaining after exclusion")
)

// Store is the part of the local cache the resolver reads.
type Store interface {
	FindAuthor(id int64) (*reference.Author, error)
	FindAuthorByName(givenName, surname string) (*reference.Author, error)
	AuthorGroup(baseID int64) ([]reference.Author, error)
}

// Remote is the part of the Scopus client the resolver calls.
type Remote interface {
	SearchAuthorIndex(ctx context.Context, givenName, surname string) ([]scopus.AuthorCandidate, error)
	ReadAuthorProfile(ctx context.Context, authorID int64) (*scopus.AuthorProfile, error)
}

// Resolution is the outcome of resolving one caller-supplied author hint.
// Identities[0] is the canonical author; the rest are its aliases.
type Resolution struct {
	Query      string             `json:"query"`
	Identities []reference.Author `json:"identities"`
	Cached     bool               `json:"cached"`
}

// Base returns the canonical identity.
func (r Resolution) Base() reference.Author {
	return r.Identities[0]
}

// Resolver maps author ids and names to canonical identities. It never
// writes to the store; identities are persisted when they are synchronized.
type Resolver struct {
	store  Store
	remote Remote
	logger *zap.Logger
}

// NewResolver creates a Resolver. A nil logger disables logging.
func NewResolver(store Store, remote Remote, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{store: store, remote: remote, logger: logger}
}

// ResolveByID resolves a numeric author id. A cached author is returned as
// stored. Otherwise the names are read from the author profile; when the
// profile is unavailable the identity is returned without names.
func (r *Resolver) ResolveByID(ctx context.Context, id int64) (*Resolution, error) {
	query := fmt.Sprint(id)

	cached, err := r.store.FindAuthor(id)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		return &Resolution{Query: query, Identities: []reference.Author{*cached}, Cached: true}, nil
	}

	a := reference.Author{ScopusID: id}
	profile, err := r.remote.ReadAuthorProfile(ctx, id)
	switch {
	case err == nil:
		a.GivenName = profile.FirstName
		a.Surname = profile.LastName
	case scopus.IsUnavailable(err):
		r.logger.Info("author profile unavailable", zap.Int64("author", id), zap.Error(err))
	default:
		return nil, fmt.Errorf("reading profile of author %d: %w", id, err)
	}

	return &Resolution{Query: query, Identities: []reference.Author{a}}, nil
}

// ResolveByName resolves a (given name, surname) pair.
//
// A cached match returns the whole alias group, canonical first, without
// contacting the remote service. Otherwise the author index is queried;
// candidates in exclude are dropped, the first remaining candidate becomes
// canonical and the others its aliases. Remote candidates carry the queried
// names so the next lookup finds the group in the cache.
func (r *Resolver) ResolveByName(ctx context.Context, givenName, surname string, exclude map[int64]bool) (*Resolution, error) {
	query := givenName + " " + surname

	cached, err := r.store.FindAuthorByName(givenName, surname)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		group, err := r.store.AuthorGroup(cached.CanonicalID())
		if err != nil {
			return nil, err
		}
		if len(group) > 0 {
			return &Resolution{Query: query, Identities: group, Cached: true}, nil
		}
	}

	candidates, err := r.remote.SearchAuthorIndex(ctx, givenName, surname)
	switch {
	case err == nil:
	case scopus.IsUnavailable(err):
		return nil, fmt.Errorf("%w: %q: %w", ErrIdentityNotFound, query, err)
	default:
		return nil, fmt.Errorf("searching author index for %q: %w", query, err)
	}

	var ids []int64
	seen := make(map[int64]bool)
	for _, c := range candidates {
		id, err := c.ID()
		if err != nil {
			r.logger.Debug("skipping author candidate", zap.String("identifier", c.Identifier), zap.Error(err))
			continue
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrIdentityNotFound, query)
	}

	var identities []reference.Author
	for _, id := range ids {
		if exclude[id] {
			continue
		}
		a := reference.Author{ScopusID: id, GivenName: givenName, Surname: surname}
		if len(identities) > 0 {
			base := identities[0].ScopusID
			a.BaseID = &base
		}
		identities = append(identities, a)
	}
	if len(identities) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoAuthorsRemaining, query)
	}

	r.logger.Info("resolved author by name",
		zap.String("query", query),
		zap.Int64("canonical", identities[0].ScopusID),
		zap.Int("aliases", len(identities)-1))
	return &Resolution{Query: query, Identities: identities}, nil
}

package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/dadope/scopus-search/internal/author"
	"github.com/dadope/scopus-search/internal/reference"
	"github.com/dadope/scopus-search/internal/scopus"
	"github.com/dadope/scopus-search/internal/storage"
)

type searchCall struct {
	authorID         int64
	minYear, maxYear int
}

type fakeRemote struct {
	listing     string // JSON array of document records; empty means unavailable
	search      string // JSON array of search records; empty means not found
	details     map[int64][]int64
	searchCalls []searchCall
}

func (r *fakeRemote) ReadAuthorDocumentList(_ context.Context, _ int64) ([]scopus.DocRecord, error) {
	if r.listing == "" {
		return nil, fmt.Errorf("%w: not entitled", scopus.ErrAuthError)
	}
	var out []scopus.DocRecord
	if err := json.Unmarshal([]byte(r.listing), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *fakeRemote) SearchDocumentIndex(_ context.Context, authorID int64, minYear, maxYear int) ([]scopus.SearchRecord, error) {
	r.searchCalls = append(r.searchCalls, searchCall{authorID, minYear, maxYear})
	if r.search == "" {
		return nil, scopus.ErrNotFound
	}
	var all []scopus.SearchRecord
	if err := json.Unmarshal([]byte(r.search), &all); err != nil {
		return nil, err
	}
	var out []scopus.SearchRecord
	for _, rec := range all {
		year := (reference.Paper{Date: rec.CoverDate.String()}).Year()
		if minYear > 0 && year < minYear {
			continue
		}
		out = append(out, rec)
	}
	if len(out) == 0 {
		return nil, scopus.ErrNotFound
	}
	return out, nil
}

func (r *fakeRemote) ReadDocumentDetail(_ context.Context, id int64) (*scopus.DocumentDetail, error) {
	if a, ok := r.details[id]; ok {
		return &scopus.DocumentDetail{Authors: a}, nil
	}
	return nil, scopus.ErrNotFound
}

type fixedPicker struct {
	name    string
	guesses []author.NameGuess
}

func (p *fixedPicker) PickName(_ context.Context, _ reference.Author, guesses []author.NameGuess) (string, error) {
	p.guesses = guesses
	return p.name, nil
}

func openStore(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.OpenDB(filepath.Join(t.TempDir(), "sync.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func paperIDs(papers []reference.Paper) []int64 {
	ids := make([]int64, len(papers))
	for i, p := range papers {
		ids[i] = p.ScopusID
	}
	return ids
}

const listing = `[
	{"dc:identifier": "SCOPUS_ID:1", "prism:coverDate": "2019-05-01", "author": [{"authid": "7"}, {"authid": "8"}],
	 "affiliation": [{"afid": "100", "affilname": "X"}]},
	{"dc:identifier": "SCOPUS_ID:2", "prism:coverDate": "2021-03-01", "author": [{"authid": "7"}],
	 "affiliation": [{"afid": "100", "affilname": "X"}]},
	{"dc:identifier": "SCOPUS_ID:2", "prism:coverDate": "2021-03-01", "author": [{"authid": "7"}]}
]`

func TestSync_ColdDocumentListing(t *testing.T) {
	db := openStore(t)
	remote := &fakeRemote{listing: listing}
	engine := New(db, remote, WithLogger(zaptest.NewLogger(t)))

	res, err := engine.Sync(context.Background(), reference.Author{ScopusID: 7, GivenName: "Ada", Surname: "Lovelace"})
	require.NoError(t, err)
	require.True(t, res.Cold)
	require.Equal(t, []int64{1, 2}, paperIDs(res.Papers))
	require.Equal(t, reference.OriginAuthorsAPI, res.Papers[0].Origin)
	require.Empty(t, remote.searchCalls)

	stats, err := db.Stats()
	require.NoError(t, err)
	require.Equal(t, storage.Stats{Authors: 1, Papers: 2, WrittenBy: 3, Affiliations: 1, AffiliatedTo: 2}, stats)
}

func TestSync_Idempotent(t *testing.T) {
	db := openStore(t)
	remote := &fakeRemote{
		listing: listing,
		search:  `[{"dc:identifier": "SCOPUS_ID:2", "prism:coverDate": "2021-03-01"}]`,
	}
	engine := New(db, remote)
	a := reference.Author{ScopusID: 7, GivenName: "Ada", Surname: "Lovelace"}

	_, err := engine.Sync(context.Background(), a)
	require.NoError(t, err)
	once, err := db.Stats()
	require.NoError(t, err)

	second, err := engine.Sync(context.Background(), a)
	require.NoError(t, err)
	require.False(t, second.Cold)
	require.Equal(t, 0, second.Batch.Papers)

	twice, err := db.Stats()
	require.NoError(t, err)
	require.Equal(t, once, twice)
	require.Len(t, second.Papers, 2, "delta rows already cached must not be duplicated")
}

func TestSync_WarmWatermark(t *testing.T) {
	db := openStore(t)
	remote := &fakeRemote{
		listing: listing,
		search: `[
			{"dc:identifier": "SCOPUS_ID:1", "prism:coverDate": "2019-05-01"},
			{"dc:identifier": "SCOPUS_ID:2", "prism:coverDate": "2021-03-01"},
			{"dc:identifier": "SCOPUS_ID:3", "prism:coverDate": "2021-11-20"},
			{"dc:identifier": "SCOPUS_ID:4", "prism:coverDate": "2023-01-15"}
		]`,
		details: map[int64][]int64{4: {7, 9}},
	}
	engine := New(db, remote, WithLogger(zaptest.NewLogger(t)))
	a := reference.Author{ScopusID: 7, GivenName: "Ada", Surname: "Lovelace"}

	_, err := engine.Sync(context.Background(), a)
	require.NoError(t, err)

	res, err := engine.Sync(context.Background(), a)
	require.NoError(t, err)
	require.False(t, res.Cold)
	require.Equal(t, 2021, res.Watermark)
	require.Equal(t, []searchCall{{authorID: 7, minYear: 2021}}, remote.searchCalls)

	// new delta rows first, then the cached set
	require.Equal(t, []int64{3, 4, 2, 1}, paperIDs(res.Papers))
	require.False(t, res.Papers[0].FromDB)
	require.True(t, res.Papers[2].FromDB)
	require.Equal(t, reference.OriginSearchAPI, res.Papers[0].Origin)
	require.Equal(t, []int64{7}, res.Papers[0].Authors)
	require.Equal(t, []int64{7, 9}, res.Papers[1].Authors)

	authors, err := db.PaperAuthors(4)
	require.NoError(t, err)
	require.Equal(t, []int64{7, 9}, authors)
}

func TestSync_ColdSearchFallback(t *testing.T) {
	db := openStore(t)
	remote := &fakeRemote{search: `[
		{"dc:identifier": "SCOPUS_ID:10", "prism:coverDate": "2020-01-01", "dc:creator": "Hopper G."},
		{"dc:identifier": "SCOPUS_ID:11", "prism:coverDate": "2020-02-01", "dc:creator": "Hopper G."},
		{"dc:identifier": "SCOPUS_ID:12", "prism:coverDate": "2020-03-01", "dc:creator": "Hopper G.M."}
	]`}
	picker := &fixedPicker{name: "Grace Hopper"}
	engine := New(db, remote, WithNamePicker(picker))

	res, err := engine.Sync(context.Background(), reference.Author{ScopusID: 5})
	require.NoError(t, err)
	require.True(t, res.Cold)
	require.Equal(t, []searchCall{{authorID: 5}}, remote.searchCalls)

	require.Len(t, picker.guesses, 2)
	require.Equal(t, "[2] Hopper G.", picker.guesses[0].String())
	require.Equal(t, picker.guesses, res.NameGuesses)

	for _, p := range res.Papers {
		require.Equal(t, []int64{5}, p.Authors, "paper %d must fall back to the triggering author", p.ScopusID)
	}

	stored, err := db.FindAuthor(5)
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.Equal(t, "Grace", stored.GivenName)
	require.Equal(t, "Hopper", stored.Surname)
}

func TestSync_ListingWithoutTriggeringAuthor(t *testing.T) {
	db := openStore(t)
	// a merged profile: the listing names the surviving id, not the queried one
	remote := &fakeRemote{
		listing: `[{"dc:identifier": "SCOPUS_ID:1", "prism:coverDate": "2019-05-01", "author": [{"authid": "99"}]}]`,
		search:  `[{"dc:identifier": "SCOPUS_ID:1", "prism:coverDate": "2019-05-01"}]`,
	}
	engine := New(db, remote, WithLogger(zaptest.NewLogger(t)))
	a := reference.Author{ScopusID: 7, GivenName: "Ada", Surname: "Lovelace"}

	_, err := engine.Sync(context.Background(), a)
	require.NoError(t, err)

	res, err := engine.Sync(context.Background(), a)
	require.NoError(t, err)
	require.False(t, res.Cold)
	require.Equal(t, []int64{1}, paperIDs(res.Papers))

	authors, err := db.PaperAuthors(1)
	require.NoError(t, err)
	require.ElementsMatch(t, []int64{99, 7}, authors)
}

func TestSync_ColdNoPapers(t *testing.T) {
	db := openStore(t)
	engine := New(db, &fakeRemote{})

	_, err := engine.Sync(context.Background(), reference.Author{ScopusID: 5})
	require.ErrorIs(t, err, ErrNoPapersFound)

	stored, err := db.FindAuthor(5)
	require.NoError(t, err)
	require.Nil(t, stored, "a failed cold sync must not persist the author")
}

func TestSync_StoreInconsistency(t *testing.T) {
	db := openStore(t)
	require.NoError(t, db.WithTx(func(tx *storage.Tx) error {
		return tx.InsertAuthor(reference.Author{ScopusID: 5})
	}))

	_, err := New(db, &fakeRemote{}).Sync(context.Background(), reference.Author{ScopusID: 5})
	require.ErrorIs(t, err, ErrStoreInconsistency)
}

func TestSync_AliasAfterCanonical(t *testing.T) {
	db := openStore(t)
	remote := &fakeRemote{listing: listing}
	engine := New(db, remote)

	base := int64(7)
	_, err := engine.Sync(context.Background(), reference.Author{ScopusID: 7, GivenName: "Ada", Surname: "Lovelace"})
	require.NoError(t, err)

	alias := reference.Author{ScopusID: 8, GivenName: "Ada", Surname: "Lovelace", BaseID: &base}
	res, err := engine.Sync(context.Background(), alias)
	require.NoError(t, err)
	require.True(t, res.Cold)
	require.Equal(t, 0, res.Batch.Papers)

	// the alias is warm on the next run
	remote.search = `[{"dc:identifier": "SCOPUS_ID:1", "prism:coverDate": "2019-05-01"}]`
	res, err = engine.Sync(context.Background(), alias)
	require.NoError(t, err)
	require.False(t, res.Cold)
	require.NotEmpty(t, res.Papers)

	group, err := db.AuthorGroup(7)
	require.NoError(t, err)
	require.Len(t, group, 2)
	require.True(t, strings.EqualFold(group[1].Surname, "Lovelace"))
}

package normalize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/dadope/scopus-search/internal/reference"
	"github.com/dadope/scopus-search/internal/scopus"
)

type fakeStore struct {
	papers  map[int64]bool
	authors map[int64][]int64
}

func (s *fakeStore) PaperExists(id int64) (bool, error) { return s.papers[id], nil }

func (s *fakeStore) PaperAuthors(id int64) ([]int64, error) { return s.authors[id], nil }

type fakeDetail struct {
	authors map[int64][]int64
	calls   []int64
}

func (d *fakeDetail) ReadDocumentDetail(_ context.Context, id int64) (*scopus.DocumentDetail, error) {
	d.calls = append(d.calls, id)
	a, ok := d.authors[id]
	if !ok {
		return nil, scopus.ErrNotFound
	}
	return &scopus.DocumentDetail{Authors: a}, nil
}

func decode[T any](t *testing.T, raw string) []T {
	t.Helper()
	var out []T
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		t.Fatalf("decoding fixture: %v", err)
	}
	return out
}

func TestFromDocumentList(t *testing.T) {
	records := decode[scopus.DocRecord](t, `[
		{
			"dc:identifier": "SCOPUS_ID:85000000001",
			"dc:title": "On Engines",
			"prism:coverDate": "2021-04-01",
			"prism:issn": "12345678",
			"author": [{"authid": "10"}, {"authid": "11"}],
			"affiliation": [
				{"afid": "100", "affilname": "X"},
				{"afid": "", "affilname": "missing"},
				{"afid": "abc", "affilname": "garbage"}
			]
		},
		{
			"dc:identifier": "SCOPUS_ID:85000000002",
			"prism:coverDate": "2020-01-01",
			"authors": {"author": {"authid": "12"}},
			"affiliation": {"afid": "n/a", "affilname": "only garbage"}
		},
		{"dc:identifier": "not-an-id"}
	]`)

	got := FromDocumentList(records)
	if len(got) != 2 {
		t.Fatalf("got %d papers, want 2", len(got))
	}

	first := got[0]
	if first.ScopusID != 85000000001 || first.Origin != reference.OriginAuthorsAPI {
		t.Errorf("first = %+v", first)
	}
	if fmt.Sprint(first.Authors) != "[10 11]" {
		t.Errorf("Authors = %v", first.Authors)
	}
	if len(first.Affiliation) != 1 || first.Affiliation[100] != "X" {
		t.Errorf("Affiliation = %v, want only afid 100", first.Affiliation)
	}
	if first.ISSN == nil || *first.ISSN != "12345678" {
		t.Errorf("ISSN = %v", first.ISSN)
	}
	if first.ISBN != nil || first.PageRange != nil {
		t.Error("missing optional fields must be absent, not empty")
	}

	second := got[1]
	if second.Affiliation != nil {
		t.Errorf("Affiliation = %v, want absent when no afid is valid", second.Affiliation)
	}
	if fmt.Sprint(second.Authors) != "[12]" {
		t.Errorf("Authors = %v", second.Authors)
	}
}

func TestFromSearchResults_AuthorResolutionOrder(t *testing.T) {
	records := decode[scopus.SearchRecord](t, `[
		{"dc:identifier": "SCOPUS_ID:1", "prism:coverDate": "2022-01-01"},
		{"dc:identifier": "SCOPUS_ID:2", "prism:coverDate": "2022-02-01"},
		{"dc:identifier": "SCOPUS_ID:3", "prism:coverDate": "2022-03-01"},
		{"dc:identifier": "SCOPUS_ID:4", "prism:coverDate": "2022-04-01"}
	]`)
	store := &fakeStore{
		papers:  map[int64]bool{1: true},
		authors: map[int64][]int64{1: {7, 8}},
	}
	detail := &fakeDetail{authors: map[int64][]int64{2: {9}, 4: {}}}

	n := New(store, detail, zaptest.NewLogger(t))
	got, err := n.FromSearchResults(context.Background(), records, 42)
	if err != nil {
		t.Fatalf("FromSearchResults() error = %v", err)
	}

	want := map[int64]string{1: "[7 8]", 2: "[9]", 3: "[42]", 4: "[42]"}
	for _, p := range got {
		if p.Origin != reference.OriginSearchAPI {
			t.Errorf("paper %d origin = %q", p.ScopusID, p.Origin)
		}
		if s := fmt.Sprint(p.Authors); s != want[p.ScopusID] {
			t.Errorf("paper %d authors = %s, want %s", p.ScopusID, s, want[p.ScopusID])
		}
	}
	if !got[0].FromDB || got[1].FromDB {
		t.Error("FromDB should mark only the cached paper")
	}
	if fmt.Sprint(detail.calls) != "[2 3 4]" {
		t.Errorf("detail calls = %v, cached relation should short-circuit", detail.calls)
	}
}

func TestFromSearchResults_FallbackWithoutRemote(t *testing.T) {
	records := decode[scopus.SearchRecord](t, `[{"dc:identifier": "SCOPUS_ID:5"}]`)

	got, err := New(&fakeStore{}, nil, nil).FromSearchResults(context.Background(), records, 42)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || len(got[0].Authors) != 1 || got[0].Authors[0] != 42 {
		t.Errorf("got %+v, want the triggering author", got)
	}
}

type cancelledDetail struct{}

func (cancelledDetail) ReadDocumentDetail(ctx context.Context, _ int64) (*scopus.DocumentDetail, error) {
	return nil, fmt.Errorf("request: %w", context.Canceled)
}

func TestFromSearchResults_CancellationIsNotAbsorbed(t *testing.T) {
	records := decode[scopus.SearchRecord](t, `[{"dc:identifier": "SCOPUS_ID:5"}]`)

	_, err := New(&fakeStore{}, cancelledDetail{}, nil).FromSearchResults(context.Background(), records, 42)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestCreators(t *testing.T) {
	records := decode[scopus.SearchRecord](t, `[{"dc:creator": "Lovelace A."}, {"dc:creator": "Hopper G."}]`)
	if got := fmt.Sprint(Creators(records)); got != "[Lovelace A. Hopper G.]" {
		t.Errorf("Creators() = %s", got)
	}
}

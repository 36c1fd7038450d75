package scopus

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(WithBaseURL(srv.URL), WithAPIKey("test-key"))
}

func TestDocumentQuery(t *testing.T) {
	tests := []struct {
		name    string
		id      int64
		minYear int
		maxYear int
		want    string
	}{
		{"unbounded", 42, 0, 0, "AU-ID(42)"},
		{"lower bound is inclusive", 42, 2020, 0, "AU-ID(42) AND PUBYEAR > 2019"},
		{"upper bound is inclusive", 42, 0, 2021, "AU-ID(42) AND PUBYEAR < 2022"},
		{"both bounds", 42, 2019, 2021, "AU-ID(42) AND PUBYEAR > 2018 AND PUBYEAR < 2022"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DocumentQuery(tt.id, tt.minYear, tt.maxYear); got != tt.want {
				t.Errorf("DocumentQuery() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAuthorNameQuery(t *testing.T) {
	got := AuthorNameQuery(" Ada ", "Love{lace}")
	want := "AUTHFIRST({Ada}) AND AUTHLASTNAME({Lovelace})"
	if got != want {
		t.Errorf("AuthorNameQuery() = %q, want %q", got, want)
	}
}

func TestSearchAuthorIndex_FollowsPagination(t *testing.T) {
	var serverURL string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-ELS-APIKey") != "test-key" {
			t.Errorf("missing API key header")
		}
		switch r.URL.Path {
		case "/content/search/author":
			if q := r.URL.Query().Get("query"); q != "AUTHFIRST({Ada}) AND AUTHLASTNAME({Lovelace})" {
				t.Errorf("query = %q", q)
			}
			fmt.Fprintf(w, `{"search-results":{
				"opensearch:totalResults":"2",
				"link":[{"@ref":"self","@href":"x"},{"@ref":"next","@href":"%s/page2"}],
				"entry":[{"dc:identifier":"AUTHOR_ID:111","preferred-name":{"given-name":"Ada","surname":"Lovelace"}}]}}`, serverURL)
		case "/page2":
			fmt.Fprint(w, `{"search-results":{
				"link":{"@ref":"self","@href":"y"},
				"entry":[{"dc:identifier":"AUTHOR_ID:222","preferred-name":{"given-name":"A.","surname":"Lovelace"}}]}}`)
		default:
			http.NotFound(w, r)
		}
	})
	serverURL = client.baseURL

	got, err := client.SearchAuthorIndex(context.Background(), "Ada", "Lovelace")
	if err != nil {
		t.Fatalf("SearchAuthorIndex() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d candidates, want 2", len(got))
	}
	for i, want := range []int64{111, 222} {
		id, err := got[i].ID()
		if err != nil || id != want {
			t.Errorf("candidate %d id = %d (%v), want %d", i, id, err, want)
		}
	}
	if got[1].PreferredName.GivenName != "A." {
		t.Errorf("given name = %q", got[1].PreferredName.GivenName)
	}
}

func TestSearch_ErrorEntryIsNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"search-results":{"opensearch:totalResults":"0","entry":[{"@_fa":"true","error":"Result set was empty"}]}}`)
	})

	_, err := client.SearchDocumentIndex(context.Background(), 1, 0, 0)
	if !IsNotFound(err) {
		t.Errorf("SearchDocumentIndex() error = %v, want not found", err)
	}
}

func TestGet_AuthorizationError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"service-error":{"status":{"statusCode":"AUTHORIZATION_ERROR","statusText":"The requestor is not authorized"}}}`)
	})

	_, err := client.ReadAuthorDocumentList(context.Background(), 1)
	if !IsAuthError(err) {
		t.Errorf("error = %v, want auth error", err)
	}
	if !IsUnavailable(err) {
		t.Errorf("IsUnavailable(%v) = false", err)
	}
}

func TestGet_ServerErrorIsAPIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.ReadDocumentDetail(context.Background(), 1)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadGateway {
		t.Fatalf("error = %v, want APIError 502", err)
	}
	if IsUnavailable(err) {
		t.Error("server errors must not be treated as unavailable data")
	}
}

func TestSearchDocumentIndex_DecodesRecords(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if q := r.URL.Query().Get("query"); q != "AU-ID(7) AND PUBYEAR > 2019" {
			t.Errorf("query = %q", q)
		}
		fmt.Fprint(w, `{"search-results":{"entry":[{
			"dc:identifier":"SCOPUS_ID:85000000001",
			"eid":"2-s2.0-85000000001",
			"dc:title":"On Engines",
			"dc:creator":"Lovelace A.",
			"prism:coverDate":"2021-04-01",
			"prism:isbn":[{"@_fa":"true","$":"9780000000001"}],
			"prism:issn":"12345678",
			"affiliation":{"afid":"60000001","affilname":"Analytical Society"}
		}]}}`)
	})

	got, err := client.SearchDocumentIndex(context.Background(), 7, 2020, 0)
	if err != nil {
		t.Fatalf("SearchDocumentIndex() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d records, want 1", len(got))
	}
	rec := got[0]
	id, err := rec.ScopusID()
	if err != nil || id != 85000000001 {
		t.Errorf("ScopusID() = %d, %v", id, err)
	}
	if rec.ISBN != "9780000000001" {
		t.Errorf("ISBN = %q", rec.ISBN)
	}
	if len(rec.Affiliations) != 1 || rec.Affiliations[0].AfID != "60000001" {
		t.Errorf("Affiliations = %+v", rec.Affiliations)
	}
}

func TestReadAuthorDocumentList_EmbeddedAuthors(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("view") != "COMPLETE" {
			t.Errorf("view = %q, want COMPLETE", r.URL.Query().Get("view"))
		}
		fmt.Fprint(w, `{"search-results":{"entry":[
			{"dc:identifier":"SCOPUS_ID:1","author":[{"authid":"10"},{"authid":"11"}]},
			{"dc:identifier":"SCOPUS_ID:2","authors":{"author":{"authid":"12"}}}
		]}}`)
	})

	got, err := client.ReadAuthorDocumentList(context.Background(), 10)
	if err != nil {
		t.Fatalf("ReadAuthorDocumentList() error = %v", err)
	}
	if n := len(got[0].AuthorRefs()); n != 2 {
		t.Errorf("first record authors = %d, want 2", n)
	}
	refs := got[1].AuthorRefs()
	if len(refs) != 1 || refs[0].ID() != "12" {
		t.Errorf("second record authors = %+v", refs)
	}
}

func TestReadAuthorProfile(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/content/author/author_id/55" {
			t.Errorf("path = %q", r.URL.Path)
		}
		fmt.Fprint(w, `{"author-retrieval-response":[{"author-profile":{"preferred-name":{"given-name":"Grace","surname":"Hopper"}}}]}`)
	})

	got, err := client.ReadAuthorProfile(context.Background(), 55)
	if err != nil {
		t.Fatalf("ReadAuthorProfile() error = %v", err)
	}
	if got.FirstName != "Grace" || got.LastName != "Hopper" {
		t.Errorf("profile = %+v", got)
	}
}

func TestReadDocumentDetail(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    []int64
		wantErr bool
	}{
		{
			name: "author list",
			body: `{"abstracts-retrieval-response":{"authors":{"author":[{"@auid":"1"},{"@auid":"2"}]}}}`,
			want: []int64{1, 2},
		},
		{
			name: "single author object",
			body: `{"abstracts-retrieval-response":{"authors":{"author":{"@auid":"3"}}}}`,
			want: []int64{3},
		},
		{
			name:    "no author block",
			body:    `{"abstracts-retrieval-response":{}}`,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, tt.body)
			})
			got, err := client.ReadDocumentDetail(context.Background(), 9)
			if tt.wantErr {
				if !IsNotFound(err) {
					t.Errorf("error = %v, want not found", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ReadDocumentDetail() error = %v", err)
			}
			if fmt.Sprint(got.Authors) != fmt.Sprint(tt.want) {
				t.Errorf("Authors = %v, want %v", got.Authors, tt.want)
			}
		})
	}
}

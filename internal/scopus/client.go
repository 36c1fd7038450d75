package scopus

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	// BaseURL is the Elsevier API base URL.
	BaseURL = "https://api.elsevier.com"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 60 * time.Second

	// DefaultMaxPages bounds how many "next" links a search follows.
	DefaultMaxPages = 200

	// DefaultPageSize is the number of entries requested per search page.
	DefaultPageSize = 25
)

// Client is an HTTP client for the Scopus APIs.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	apiKey     string
	baseURL    string
	maxPages   int
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithAPIKey sets the API key sent in the X-ELS-APIKey header.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithMaxPages bounds search pagination. Values <= 0 keep the default.
func WithMaxPages(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.maxPages = n
		}
	}
}

// WithRequestsPerSecond paces outgoing requests. Values <= 0 disable pacing.
func WithRequestsPerSecond(rps float64) ClientOption {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		} else {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
		}
	}
}

// NewClient creates a new Scopus API client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Inf, 1),
		baseURL:    BaseURL,
		maxPages:   DefaultMaxPages,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// serviceError is the error envelope returned with non-2xx responses.
type serviceError struct {
	ServiceError struct {
		Status struct {
			StatusCode string `json:"statusCode"`
			StatusText string `json:"statusText"`
		} `json:"status"`
	} `json:"service-error"`
}

// checkHTTPErrors returns an error if the HTTP response indicates a problem.
func checkHTTPErrors(resp *http.Response, body []byte) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var se serviceError
	_ = json.Unmarshal(body, &se)
	code := se.ServiceError.Status.StatusCode
	msg := se.ServiceError.Status.StatusText
	if msg == "" {
		msg = fmt.Sprintf("HTTP %d", resp.StatusCode)
	}

	switch {
	case resp.StatusCode == 401 || resp.StatusCode == 403:
		return fmt.Errorf("%w: %s", ErrAuthError, msg)
	case resp.StatusCode == 404:
		return fmt.Errorf("%w: %s", ErrNotFound, msg)
	case resp.StatusCode == 429:
		return fmt.Errorf("%w: %s", ErrRateLimited, msg)
	}
	return &APIError{StatusCode: resp.StatusCode, Code: code, Message: msg}
}

// get performs one GET against an absolute URL and returns the body.
func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-ELS-APIKey", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrNetworkError, err)
	}

	if err := checkHTTPErrors(resp, body); err != nil {
		return nil, err
	}
	return body, nil
}

// endpoint builds an absolute URL for path with the given query parameters.
func (c *Client) endpoint(path string, params url.Values) string {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

// search runs a query against a search index and follows pagination,
// returning every entry that is not an error placeholder.
func (c *Client) search(ctx context.Context, index string, params url.Values) ([]json.RawMessage, error) {
	if params.Get("count") == "" {
		params.Set("count", strconv.Itoa(DefaultPageSize))
	}
	next := c.endpoint("/content/search/"+index, params)

	var entries []json.RawMessage
	for page := 0; next != "" && page < c.maxPages; page++ {
		body, err := c.get(ctx, next)
		if err != nil {
			return nil, err
		}

		var sr searchResults
		if err := json.Unmarshal(body, &sr); err != nil {
			return nil, fmt.Errorf("%w: parsing %s search results: %v", ErrInvalidResponse, index, err)
		}

		for _, raw := range sr.Results.Entries {
			if isErrorEntry(raw) {
				continue
			}
			entries = append(entries, raw)
		}
		next = sr.nextHref()
	}

	if len(entries) == 0 {
		return nil, ErrNotFound
	}
	return entries, nil
}

// isErrorEntry reports whether a search entry is Scopus' error marker, such
// as {"error": "Result set was empty"}.
func isErrorEntry(raw json.RawMessage) bool {
	var marker struct {
		Error *string `json:"error"`
	}
	if err := json.Unmarshal(raw, &marker); err != nil {
		return true
	}
	return marker.Error != nil
}

// decodeEntries unmarshals raw search entries into T.
func decodeEntries[T any](entries []json.RawMessage) ([]T, error) {
	out := make([]T, 0, len(entries))
	for _, raw := range entries {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("%w: parsing entry: %v", ErrInvalidResponse, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// SearchAuthorIndex searches the author index by given name and surname.
// Candidates are returned in the service's order.
func (c *Client) SearchAuthorIndex(ctx context.Context, givenName, surname string) ([]AuthorCandidate, error) {
	params := url.Values{"query": {AuthorNameQuery(givenName, surname)}}
	entries, err := c.search(ctx, "author", params)
	if err != nil {
		return nil, err
	}
	return decodeEntries[AuthorCandidate](entries)
}

// SearchDocumentIndex lists an author's documents through the general
// search index. Year bounds are inclusive; zero disables a bound.
func (c *Client) SearchDocumentIndex(ctx context.Context, authorID int64, minYear, maxYear int) ([]SearchRecord, error) {
	params := url.Values{"query": {DocumentQuery(authorID, minYear, maxYear)}}
	entries, err := c.search(ctx, "scopus", params)
	if err != nil {
		return nil, err
	}
	return decodeEntries[SearchRecord](entries)
}

// ReadAuthorDocumentList fetches an author's complete document listing with
// embedded author and affiliation lists. It requires an entitled API key.
func (c *Client) ReadAuthorDocumentList(ctx context.Context, authorID int64) ([]DocRecord, error) {
	params := url.Values{
		"query": {DocumentQuery(authorID, 0, 0)},
		"view":  {"COMPLETE"},
	}
	entries, err := c.search(ctx, "scopus", params)
	if err != nil {
		return nil, err
	}
	return decodeEntries[DocRecord](entries)
}

// ReadAuthorProfile reads the preferred name of an author.
func (c *Client) ReadAuthorProfile(ctx context.Context, authorID int64) (*AuthorProfile, error) {
	body, err := c.get(ctx, c.endpoint(fmt.Sprintf("/content/author/author_id/%d", authorID), nil))
	if err != nil {
		return nil, err
	}

	var ar authorRetrieval
	if err := json.Unmarshal(body, &ar); err != nil {
		return nil, fmt.Errorf("%w: parsing author profile: %v", ErrInvalidResponse, err)
	}
	if len(ar.Response) == 0 {
		return nil, ErrNotFound
	}

	name := ar.Response[0].Profile.PreferredName
	if name.GivenName == "" && name.Surname == "" {
		return nil, ErrNotFound
	}
	return &AuthorProfile{FirstName: name.GivenName.String(), LastName: name.Surname.String()}, nil
}

// ReadDocumentDetail reads a document's abstract record and returns its
// embedded author ids.
func (c *Client) ReadDocumentDetail(ctx context.Context, paperID int64) (*DocumentDetail, error) {
	body, err := c.get(ctx, c.endpoint(fmt.Sprintf("/content/abstract/scopus_id/%d", paperID), nil))
	if err != nil {
		return nil, err
	}

	var ar abstractRetrieval
	if err := json.Unmarshal(body, &ar); err != nil {
		return nil, fmt.Errorf("%w: parsing abstract: %v", ErrInvalidResponse, err)
	}
	if ar.Response.Authors == nil {
		return nil, ErrNotFound
	}

	detail := &DocumentDetail{}
	for _, a := range ar.Response.Authors.Author {
		id, err := strconv.ParseInt(a.ID(), 10, 64)
		if err != nil {
			continue
		}
		detail.Authors = append(detail.Authors, id)
	}
	return detail, nil
}

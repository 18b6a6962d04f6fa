package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// authTokenHeader matches the header checked by the server's write guard.
const authTokenHeader = "X-KOS-Auth-Token"

// objectPaths lists the typed collections an IRI may live in, in lookup order.
var objectPaths = []struct {
	Kind string
	Path string
}{
	{"concept", "/v1/concepts"},
	{"concept_scheme", "/v1/concept_schemes"},
	{"correspondence", "/v1/correspondences"},
	{"association", "/v1/associations"},
}

// APIError is the decoded {"error": {...}} body of a failed request.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// Client talks to the KOS HTTP API.
type Client struct {
	http *resty.Client
}

// NewClient creates a client for server. The token is sent on every request.
func NewClient(server, token string, timeout time.Duration) *Client {
	c := resty.New().
		SetBaseURL(server).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetRedirectPolicy(resty.NoRedirectPolicy())
	if token != "" {
		c.SetHeader(authTokenHeader, token)
	}
	return &Client{http: c}
}

func (c *Client) do(ctx context.Context, method, path string, body any, query map[string]string, out any) error {
	var wrapped struct {
		Error APIError `json:"error"`
	}
	req := c.http.R().
		SetContext(ctx).
		SetQueryParams(query).
		SetError(&wrapped)
	if body != nil {
		req.SetHeader("Content-Type", "application/ld+json").SetBody(body)
	}
	if out != nil {
		req.SetResult(out)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.IsError() {
		apiErr := wrapped.Error
		apiErr.Status = resp.StatusCode()
		if apiErr.Code == "" {
			apiErr.Code = http.StatusText(resp.StatusCode())
			apiErr.Message = string(resp.Body())
		}
		return &apiErr
	}
	return nil
}

// Create posts one JSON-LD document (or list, for relationships) to path.
func (c *Client) Create(ctx context.Context, path string, doc any) error {
	return c.do(ctx, http.MethodPost, path, doc, nil, nil)
}

// Lookup finds iri in the first collection that has it.
func (c *Client) Lookup(ctx context.Context, iri string) (string, map[string]any, error) {
	for _, p := range objectPaths {
		var doc map[string]any
		err := c.do(ctx, http.MethodGet, p.Path, nil, map[string]string{"iri": iri}, &doc)
		if IsNotFound(err) {
			continue
		}
		if err != nil {
			return "", nil, err
		}
		return p.Kind, doc, nil
	}
	return "", nil, &APIError{Status: http.StatusNotFound, Code: "object_not_found", Message: iri}
}

// Relationships returns the edges touching iri in either direction.
func (c *Client) Relationships(ctx context.Context, iri string) ([]map[string]any, error) {
	var rels []map[string]any
	err := c.do(ctx, http.MethodGet, "/v1/relationships", nil,
		map[string]string{"iri": iri, "source": "true", "target": "true"}, &rels)
	return rels, err
}

// ReindexStats mirrors the server's reindex response.
type ReindexStats struct {
	Indexed  int           `json:"indexed" yaml:"indexed"`
	Failed   int           `json:"failed" yaml:"failed"`
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// Reindex rebuilds the search index on the server.
func (c *Client) Reindex(ctx context.Context) (*ReindexStats, error) {
	var stats ReindexStats
	if err := c.do(ctx, http.MethodPost, "/v1/search/reindex", nil, nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

package export

import (
	"fmt"
	"net/url"

	"github.com/Sternrassler/cc-export/pkg/pagination"
)

// Endpoints builds API URLs relative to the API root. Every URL carries the
// api_key query parameter.
type Endpoints struct {
	base   *url.URL
	apiKey string
}

// NewEndpoints parses baseURL, which must be absolute.
func NewEndpoints(baseURL, apiKey string) (*Endpoints, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url must be absolute (got %q)", baseURL)
	}
	if n := len(base.Path); n == 0 || base.Path[n-1] != '/' {
		base.Path += "/"
	}
	return &Endpoints{base: base, apiKey: apiKey}, nil
}

// URL resolves path against the API root and sets params plus api_key.
// path is taken as already escaped, so callers escape dynamic segments
// with url.PathEscape.
func (e *Endpoints) URL(path string, params url.Values) string {
	ref := &url.URL{Path: path}
	if p, err := url.PathUnescape(path); err == nil {
		ref.Path, ref.RawPath = p, path
	}
	u := e.base.ResolveReference(ref)

	q := url.Values{}
	for k, vs := range params {
		q[k] = append([]string(nil), vs...)
	}
	q.Set("api_key", e.apiKey)
	u.RawQuery = q.Encode()

	return u.String()
}

// Next builds the follow-up listing URL carrying a cursor token. The first
// page's filters are not repeated; the token encodes them.
func (e *Endpoints) Next(path, token string) string {
	return e.URL(path, url.Values{pagination.CursorParam: {token}})
}

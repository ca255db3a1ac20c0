// Package testutil provides a mock Constant Contact API for tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Sternrassler/cc-export/pkg/pagination"
)

// API paths served under the mock's base URL.
const (
	CampaignsPath    = "/v2/emailmarketing/campaigns"
	LibraryFilesPath = "/v2/library/files"
	filesPrefix      = "/files/"
)

// MockResponse defines the behavior for a mock endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// RecordedRequest is what the mock remembers about each request.
type RecordedRequest struct {
	Host   string
	Path   string
	Query  url.Values
	Header http.Header
}

// MockAPI is a configurable mock API server. Library files are served from
// a second server so tests can tell API and CDN requests apart.
type MockAPI struct {
	api *httptest.Server
	cdn *httptest.Server

	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc
	requests []RecordedRequest
}

// NewMockAPI starts the mock servers.
func NewMockAPI() *MockAPI {
	m := &MockAPI{
		handlers: make(map[string]http.HandlerFunc),
	}
	m.api = httptest.NewServer(m.dispatch("api"))
	m.cdn = httptest.NewServer(m.dispatch("cdn"))
	return m
}

func (m *MockAPI) dispatch(host string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		m.requests = append(m.requests, RecordedRequest{
			Host:   host,
			Path:   r.URL.Path,
			Query:  r.URL.Query(),
			Header: r.Header.Clone(),
		})
		handler, exists := m.handlers[host+" "+r.URL.Path]
		m.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}
		notFound(w)
	}
}

// URL returns the API root, ending in "/v2/".
func (m *MockAPI) URL() string {
	return m.api.URL + "/v2/"
}

// FileURL returns the CDN URL of a library file.
func (m *MockAPI) FileURL(name string) string {
	return m.cdn.URL + filesPrefix + url.PathEscape(name)
}

// Close shuts down both servers.
func (m *MockAPI) Close() {
	m.api.Close()
	m.cdn.Close()
}

// SetHandler sets a custom handler for an API path.
func (m *MockAPI) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers["api "+path] = handler
}

// SetResponse configures a simple response for an API path.
func (m *MockAPI) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, resp.handler())
}

func (resp MockResponse) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	}
}

// SetListing serves pages at an API listing path. The first page answers
// requests without a cursor; page k+1 answers "next=<Cursor(k)>". Every
// page but the last links to its successor.
func (m *MockAPI) SetListing(path string, pages ...[]pagination.ItemSummary) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		idx := 0
		if token := r.URL.Query().Get(pagination.CursorParam); token != "" {
			k, ok := cursorIndex(token)
			if !ok || k >= len(pages) {
				writeJSON(w, http.StatusBadRequest, `[{"error_key":"query.param.invalid","error_message":"invalid next"}]`)
				return
			}
			idx = k
		}

		next := ""
		if idx+1 < len(pages) {
			next = fmt.Sprintf("%s?%s=%s", path, pagination.CursorParam, Cursor(idx+1))
		}
		writeJSON(w, http.StatusOK, ListingBody(pages[idx], next))
	})
}

// Cursor returns the token the mock uses for the page after page k (1-based).
func Cursor(k int) string {
	return "CURSOR" + strconv.Itoa(k)
}

func cursorIndex(token string) (int, bool) {
	k, err := strconv.Atoi(strings.TrimPrefix(token, "CURSOR"))
	if err != nil || k < 1 {
		return 0, false
	}
	return k, true
}

// ListingBody renders a listing page. An empty nextLink renders as null.
func ListingBody(items []pagination.ItemSummary, nextLink string) string {
	var link *string
	if nextLink != "" {
		link = &nextLink
	}
	page := pagination.Page{
		Results: items,
		Meta:    &pagination.Meta{Pagination: &pagination.Pagination{NextLink: link}},
	}
	if page.Results == nil {
		page.Results = []pagination.ItemSummary{}
	}
	data, _ := json.Marshal(page)
	return string(data)
}

// SetCampaign serves a campaign detail record.
func (m *MockAPI) SetCampaign(id string, record map[string]any) {
	if _, ok := record["id"]; !ok {
		record["id"] = id
	}
	data, _ := json.Marshal(record)
	m.SetResponse(CampaignsPath+"/"+id, NewHealthyResponse(string(data)))
}

// SetFile serves a library file on the CDN and returns its URL.
func (m *MockAPI) SetFile(name string, content []byte) string {
	m.mu.Lock()
	m.handlers["cdn "+filesPrefix+name] = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.WriteHeader(http.StatusOK)
		w.Write(content)
	}
	m.mu.Unlock()
	return m.FileURL(name)
}

// Requests returns a copy of all recorded requests.
func (m *MockAPI) Requests() []RecordedRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]RecordedRequest(nil), m.requests...)
}

// RequestCount returns the number of requests made to either server.
func (m *MockAPI) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests)
}

// CountPath returns the number of requests made to path.
func (m *MockAPI) CountPath(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, r := range m.requests {
		if r.Path == path {
			n++
		}
	}
	return n
}

// NewHealthyResponse creates a standard 200 OK JSON response.
func NewHealthyResponse(data string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       data,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewErrorResponse creates an error response in the API's error format.
func NewErrorResponse(statusCode int, key, message string) MockResponse {
	return MockResponse{
		StatusCode: statusCode,
		Body:       fmt.Sprintf(`[{"error_key":%q,"error_message":%q}]`, key, message),
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse() MockResponse {
	return NewErrorResponse(http.StatusTooManyRequests, "http.status.too_many_requests", "Developer Over Qps")
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return NewErrorResponse(http.StatusInternalServerError, "http.status.internal_server_error", "Internal server error")
}

func notFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, `[{"error_key":"http.status.not_found","error_message":"The requested resource was not found."}]`)
}

func writeJSON(w http.ResponseWriter, statusCode int, body string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	w.Write([]byte(body))
}

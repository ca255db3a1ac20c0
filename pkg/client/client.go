// Package client provides the HTTP resource fetcher for the Constant Contact
// API: one authenticated GET per call, decoded as JSON or handed back as a
// byte stream.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Sternrassler/cc-export/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultBaseURL is the Constant Contact v2 API root.
const DefaultBaseURL = "https://api.constantcontact.com/v2/"

// Prometheus metrics for fetcher operations.
var (
	ccRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ccexport_requests_total",
		Help: "Total upstream requests by kind and status",
	}, []string{"kind", "status"})

	ccRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ccexport_request_duration_seconds",
		Help:    "Upstream request duration in seconds by kind",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"kind"})

	ccFetchErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ccexport_fetch_errors_total",
		Help: "Total fetch errors by class",
	}, []string{"class"})
)

// ErrorClass represents a classification of fetch errors.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 Too Many Requests.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

const (
	kindJSON   = "json"
	kindStream = "stream"
)

// Client fetches API resources. It performs exactly one attempt per call.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	limiter    *ratelimit.Limiter
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL is the API root; requests to its host carry the bearer token.
	BaseURL string

	// AccessToken is sent as "Authorization: Bearer <token>".
	AccessToken string

	// UserAgent header sent with every request.
	UserAgent string

	// Timeout per request; 0 leaves the transport default (no timeout).
	Timeout time.Duration

	// Limiter paces requests; nil disables pacing.
	Limiter *ratelimit.Limiter
}

// DefaultConfig returns a configuration targeting the public v2 API.
func DefaultConfig(accessToken string) Config {
	return Config{
		BaseURL:     DefaultBaseURL,
		AccessToken: accessToken,
		UserAgent:   "cc-export/1.0",
	}
}

// New creates a new client.
func New(cfg Config) (*Client, error) {
	if cfg.AccessToken == "" {
		return nil, fmt.Errorf("access token is required")
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url must be absolute (got %q)", cfg.BaseURL)
	}

	logger := log.With().Str("component", "cc-client").Logger()

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: base,
		limiter: cfg.Limiter,
		config:  cfg,
		logger:  logger,
	}, nil
}

// BaseURL returns the configured API root.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// GetJSON fetches rawURL and decodes a 200 response body into out.
// Any other status yields a *FetchError.
func (c *Client) GetJSON(ctx context.Context, rawURL string, out any) error {
	resp, err := c.do(ctx, rawURL, kindJSON)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

// Stream is the body of a successful binary fetch. Callers must Close it.
type Stream struct {
	io.ReadCloser

	// ContentType is the upstream Content-Type header.
	ContentType string

	// ContentLength is -1 when unknown.
	ContentLength int64
}

// GetStream fetches rawURL and returns the raw body of a 200 response.
func (c *Client) GetStream(ctx context.Context, rawURL string) (*Stream, error) {
	resp, err := c.do(ctx, rawURL, kindStream)
	if err != nil {
		return nil, err
	}

	return &Stream{
		ReadCloser:    resp.Body,
		ContentType:   resp.Header.Get("Content-Type"),
		ContentLength: resp.ContentLength,
	}, nil
}

// do performs a single GET and returns the response only on HTTP 200.
func (c *Client) do(ctx context.Context, rawURL, kind string) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	if c.isAPIRequest(req.URL) {
		req.Header.Set("Authorization", "Bearer "+c.config.AccessToken)
		req.Header.Set("Accept", "application/json")
	}

	c.logger.Debug().
		Str("url", RedactURL(req.URL)).
		Str("kind", kind).
		Msg("Executing request")

	startTime := time.Now()
	resp, err := c.httpClient.Do(req)
	ccRequestDuration.WithLabelValues(kind).Observe(time.Since(startTime).Seconds())

	if err != nil {
		errClass := c.classifyError(nil, err)
		ccFetchErrorsTotal.WithLabelValues(string(errClass)).Inc()
		ccRequestsTotal.WithLabelValues(kind, "network_error").Inc()
		return nil, &FetchError{
			URL:        RedactURL(req.URL),
			ErrorClass: errClass,
			Reason:     "request failed",
			Err:        err,
		}
	}

	ccRequestsTotal.WithLabelValues(kind, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode != http.StatusOK {
		errClass := c.classifyError(resp, nil)
		ccFetchErrorsTotal.WithLabelValues(string(errClass)).Inc()

		// Drain a bounded amount so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()

		c.logger.Debug().
			Str("url", RedactURL(req.URL)).
			Int("status_code", resp.StatusCode).
			Str("error_class", string(errClass)).
			Msg("Upstream returned non-200")

		return nil, &FetchError{
			URL:        RedactURL(req.URL),
			StatusCode: resp.StatusCode,
			ErrorClass: errClass,
			Reason:     reasonPhrase(resp),
		}
	}

	return resp, nil
}

// isAPIRequest reports whether u targets the configured API host.
// Library file URLs live on a CDN and must not receive the bearer token.
func (c *Client) isAPIRequest(u *url.URL) bool {
	return u.Scheme == c.baseURL.Scheme && u.Host == c.baseURL.Host
}

// classifyError categorizes an error for observability and handling.
func (c *Client) classifyError(resp *http.Response, err error) ErrorClass {
	if err != nil {
		return ErrorClassNetwork
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return ErrorClassClient
	case resp.StatusCode >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

// reasonPhrase returns the status text without the numeric code ("Not Found").
func reasonPhrase(resp *http.Response) string {
	if text := http.StatusText(resp.StatusCode); text != "" {
		return text
	}
	return resp.Status
}

// RedactURL renders u with the api_key query parameter masked.
func RedactURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	q := u.Query()
	if q.Get("api_key") == "" {
		return u.String()
	}
	q.Set("api_key", "REDACTED")
	clone := *u
	clone.RawQuery = q.Encode()
	return clone.String()
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

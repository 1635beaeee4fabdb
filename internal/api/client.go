// Package api is the client for the Eventify REST API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/felixgeelhaar/eventify/internal/log"
	"github.com/felixgeelhaar/eventify/internal/metrics"
	"github.com/felixgeelhaar/eventify/internal/version"
)

// DefaultBaseURL is used when no base URL is configured.
const DefaultBaseURL = "http://localhost:5000"

// RequestIDHeader carries the per-request correlation id.
const RequestIDHeader = "X-Request-ID"

// TokenSource returns the current bearer credential, if any.
type TokenSource func() (string, bool)

// RequestValidator checks a request body before it is sent.
type RequestValidator interface {
	ValidateRequest(ctx context.Context, method, path string, body []byte) error
}

// Client is the Eventify API client
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	validator  RequestValidator
	userAgent  string
	logger     *log.Logger
	metrics    *metrics.Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the transport timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithTokenSource attaches a bearer credential to every request when present.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithValidator rejects invalid request bodies before they are sent.
func WithValidator(v RequestValidator) Option {
	return func(c *Client) { c.validator = v }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics records request counts and latency.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// NewClient creates a new API client
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		userAgent: version.GetInfo().UserAgent(),
		logger:    log.DefaultLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// request describes one API call. route is the path template used as the
// metrics label; path is the concrete path.
type request struct {
	method string
	route  string
	path   string
	body   any
	token  *string
}

// do performs a request and decodes a 2xx JSON response into target.
func (c *Client) do(ctx context.Context, r request, target any) error {
	var payload []byte
	if r.body != nil {
		data, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		payload = data
		if c.validator != nil {
			if err := c.validator.ValidateRequest(ctx, r.method, r.path, payload); err != nil {
				return err
			}
		}
	}

	requestID := uuid.NewString()
	ctx = log.ContextWithRequestID(ctx, requestID)

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, c.baseURL+r.path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(RequestIDHeader, requestID)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if token, ok := c.bearer(r); ok {
		(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}).SetAuthHeader(req)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		c.metrics.APIRequest(r.method, r.route, 0, elapsed)
		c.logger.WithError(err).DebugContext(ctx, "api request failed",
			"method", r.method, "path", r.path)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return classifyTransport(err)
	}
	defer resp.Body.Close()

	c.metrics.APIRequest(r.method, r.route, resp.StatusCode, elapsed)
	c.logger.DebugContext(ctx, "api request",
		"method", r.method,
		"path", r.path,
		"status", resp.StatusCode,
		"duration_ms", elapsed.Milliseconds())

	return parseResponse(resp, target)
}

func (c *Client) bearer(r request) (string, bool) {
	if r.token != nil {
		return *r.token, *r.token != ""
	}
	if c.tokens == nil {
		return "", false
	}
	token, ok := c.tokens()
	return token, ok && token != ""
}

// parseResponse parses the response body into the target struct
func parseResponse(resp *http.Response, target any) error {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return statusError(resp.StatusCode, body)
	}

	if target == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		if err == io.EOF {
			return nil
		}
		return unexpected(fmt.Sprintf("failed to decode response: %v", err), err)
	}
	return nil
}

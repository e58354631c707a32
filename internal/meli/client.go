// Package meli provides a MercadoLibre API client: token lifecycle,
// authenticated requests with a single auth retry, listing pagination and
// item detail resolution.
package meli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/donaldgifford/meli-harvester/internal/metrics"
)

const (
	defaultRequestTimeout = 15 * time.Second
	tracerName            = "github.com/donaldgifford/meli-harvester/internal/meli"
)

// TokenSource supplies bearer tokens and can be forced to rotate them.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Refresh(ctx context.Context) (string, error)
}

// Client issues requests against the marketplace API. Authenticated
// requests recover from one 401/403 by forcing a token refresh and
// retrying exactly once.
type Client struct {
	tokens      TokenSource
	baseURL     string
	client      *http.Client
	rateLimiter *RateLimiter
	timeout     time.Duration
	log         *slog.Logger
	tracer      trace.Tracer
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithBaseURL overrides the default API host.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.client = hc
	}
}

// WithRequestTimeout bounds each HTTP attempt. Waiting on the rate limiter
// does not count against it. Defaults to 15s.
func WithRequestTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithRateLimiter makes every outgoing call wait on r first.
func WithRateLimiter(r *RateLimiter) ClientOption {
	return func(c *Client) {
		c.rateLimiter = r
	}
}

// WithClientLogger sets the logger.
func WithClientLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		c.log = l
	}
}

// NewClient creates a new marketplace API client.
func NewClient(tokens TokenSource, opts ...ClientOption) *Client {
	c := &Client{
		tokens:  tokens,
		baseURL: defaultAPIBase,
		client:  &http.Client{},
		timeout: defaultRequestTimeout,
		log:     slog.Default(),
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Execute performs an authenticated request and returns the response body.
// On 401 or 403 the token is refreshed once and the request retried once;
// a second auth failure comes back as *AuthError wrapping the *APIError.
func (c *Client) Execute(
	ctx context.Context,
	method, path string,
	body any,
	query url.Values,
) ([]byte, error) {
	ctx, span := c.tracer.Start(ctx, "meli.execute", trace.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("meli.endpoint", endpointLabel(path)),
	))
	defer span.End()

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		span.SetStatus(codes.Error, "token")
		return nil, fmt.Errorf("getting auth token: %w", err)
	}

	resp, err := c.do(ctx, method, path, payload, query, token)
	if err == nil || !isAuthStatus(StatusCode(err)) {
		recordSpanError(span, err)
		return resp, err
	}

	c.log.Warn("auth rejected, refreshing token and retrying",
		"path", path,
		"status", StatusCode(err),
	)
	metrics.AuthRetriesTotal.Inc()

	token, refreshErr := c.tokens.Refresh(ctx)
	if refreshErr != nil {
		span.SetStatus(codes.Error, "refresh")
		return nil, refreshErr
	}

	resp, err = c.do(ctx, method, path, payload, query, token)
	if err != nil && isAuthStatus(StatusCode(err)) {
		err = &AuthError{Op: "request rejected after token refresh", Err: err}
	}
	recordSpanError(span, err)
	return resp, err
}

// GetJSON performs an authenticated GET and decodes the response into dst.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, dst any) error {
	body, err := c.Execute(ctx, http.MethodGet, path, nil, query)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("parsing response from %s: %w", path, err)
	}
	return nil
}

// GetPublic performs an unauthenticated GET against the public read path.
func (c *Client) GetPublic(ctx context.Context, path string, query url.Values) ([]byte, error) {
	ctx, span := c.tracer.Start(ctx, "meli.public", trace.WithAttributes(
		attribute.String("meli.endpoint", endpointLabel(path)),
	))
	defer span.End()

	resp, err := c.do(ctx, http.MethodGet, path, nil, query, "")
	recordSpanError(span, err)
	return resp, err
}

func (c *Client) do(
	ctx context.Context,
	method, path string,
	payload []byte,
	query url.Values,
	token string,
) ([]byte, error) {
	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			if errors.Is(err, ErrDailyLimitReached) {
				metrics.DailyLimitHits.Inc()
			}
			return nil, fmt.Errorf("rate limit: %w", err)
		}
		metrics.DailyUsage.Set(float64(c.rateLimiter.DailyCount()))
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var bodyReader io.Reader = http.NoBody
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating HTTP request: %w", err)
	}

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		metrics.APICallsTotal.WithLabelValues(endpointLabel(path), "error").Inc()
		return nil, fmt.Errorf("executing request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	metrics.APICallsTotal.WithLabelValues(endpointLabel(path), strconv.Itoa(resp.StatusCode)).Inc()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Path:       path,
			Body:       truncateBody(body),
		}
	}

	return body, nil
}

func recordSpanError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if code := StatusCode(err); code != 0 {
		span.SetAttributes(attribute.Int("http.status_code", code))
	}
}

var idSegment = regexp.MustCompile(`/(?:[A-Z]{3}\d+|\d+)(/|$)`)

// endpointLabel collapses ids in a path so metric labels stay bounded.
func endpointLabel(path string) string {
	return idSegment.ReplaceAllString(path, "/:id$1")
}

func truncateBody(b []byte) string {
	const limit = 512
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}

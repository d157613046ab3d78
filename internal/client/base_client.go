// Package client provides the session-aware HTTP client used for every call
// to the portal backend. Session cookies travel in a shared cookie jar and
// mutating requests carry a fresh anti-forgery token.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/publicsuffix"

	"github.com/LunarVagabond/phasepoint-frontend/internal/constants"
	"github.com/LunarVagabond/phasepoint-frontend/internal/metrics"
	"github.com/LunarVagabond/phasepoint-frontend/internal/models"
	"github.com/LunarVagabond/phasepoint-frontend/pkg/logger"
)

// BaseClient performs single HTTP attempts against the backend.
// It resolves paths, sets default headers, and buffers response bodies.
type BaseClient struct {
	httpClient *http.Client
	baseURL    string
	logger     *logrus.Logger
	metrics    *metrics.Metrics
}

// Option configures a BaseClient.
type Option func(*BaseClient)

// WithHTTPClient replaces the underlying HTTP client. The client is copied,
// and a copy without a cookie jar gets one so the session still travels
// between calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *BaseClient) {
		clone := *hc
		c.httpClient = &clone
	}
}

// WithMetrics records outbound requests on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *BaseClient) {
		c.metrics = m
	}
}

// NewBaseClient creates a new BaseClient for HTTP operations.
//
// Parameters:
//   - baseURL: API base URL including its path prefix (e.g., "http://localhost:8000/api")
//   - timeout: HTTP request timeout duration
//   - logger: Structured logger for HTTP operations
func NewBaseClient(
	baseURL string,
	timeout time.Duration,
	logger *logrus.Logger,
	opts ...Option,
) (*BaseClient, error) {
	c := &BaseClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient.Jar == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("failed to create cookie jar: %w", err)
		}
		c.httpClient.Jar = jar
	}

	return c, nil
}

// BaseURL returns the configured base URL for this client.
func (c *BaseClient) BaseURL() string {
	return c.baseURL
}

// Cookies returns the cookies the jar would send to the API base URL.
func (c *BaseClient) Cookies() []*http.Cookie {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil
	}
	return c.httpClient.Jar.Cookies(u)
}

// ResolveURL turns a request path into an absolute URL. Absolute http(s)
// URLs pass through untouched; anything else is joined onto the base URL.
func (c *BaseClient) ResolveURL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}

// Do executes one HTTP attempt and buffers the whole response body.
// Non-2xx statuses are returned as responses, never as errors; only
// transport failures and unreadable bodies produce an error.
func (c *BaseClient) Do(
	ctx context.Context,
	method string,
	path string,
	body []byte,
	header http.Header,
) (*Response, error) {
	target := c.ResolveURL(path)

	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	req.Header.Set(constants.HeaderContentType, constants.ContentTypeJSON)
	req.Header.Set(constants.HeaderAccept, constants.ContentTypeJSON)
	req.Header.Set(constants.HeaderUserAgent, constants.UserAgent)
	req.Header.Set(constants.HeaderXRequestID, requestID(ctx))
	for name, values := range header {
		req.Header.Del(name)
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}

	log := logger.WithCorrelationID(ctx, c.logger).WithFields(logrus.Fields{
		"method": method,
		"url":    target,
	})
	log.Debug("Sending HTTP request")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveRequest(method, 0, time.Since(start))
		log.WithError(err).Error("HTTP request failed")
		return nil, fmt.Errorf("%s %s: %w", method, target, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	c.metrics.ObserveRequest(method, resp.StatusCode, time.Since(start))
	if err != nil {
		log.WithError(err).Error("Failed to read HTTP response body")
		return nil, fmt.Errorf("%s %s: reading response: %w", method, target, err)
	}

	log.WithField("status", resp.StatusCode).Debug("Received HTTP response")

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		body:       data,
	}, nil
}

// Health calls GET /health/. Any 2xx is healthy.
func (c *BaseClient) Health(ctx context.Context) (*models.HealthStatus, error) {
	resp, err := c.Do(ctx, http.MethodGet, "/health/", nil, nil)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, models.NewAPIError(resp.StatusCode, resp.Bytes(), "Health check failed")
	}

	var status models.HealthStatus
	if err := resp.DecodeJSON(&status); err != nil {
		// A 2xx with an unexpected body still counts as healthy.
		return &models.HealthStatus{Status: "ok"}, nil
	}
	return &status, nil
}

func requestID(ctx context.Context) string {
	if id := logger.CorrelationID(ctx); id != "" {
		return id
	}
	return uuid.NewString()
}

// Response is a fully buffered HTTP response.
type Response struct {
	// StatusCode is the HTTP status returned by the backend.
	StatusCode int
	// Header holds the response headers.
	Header http.Header

	body []byte
}

// OK reports whether the status is 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= http.StatusOK && r.StatusCode < http.StatusMultipleChoices
}

// Bytes returns the raw response body.
func (r *Response) Bytes() []byte {
	return r.body
}

// Text returns the response body as a string.
func (r *Response) Text() string {
	return string(r.body)
}

// DecodeJSON unmarshals the body into v.
func (r *Response) DecodeJSON(v interface{}) error {
	if err := json.Unmarshal(r.body, v); err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}
	return nil
}

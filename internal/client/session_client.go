package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/LunarVagabond/phasepoint-frontend/internal/constants"
	"github.com/LunarVagabond/phasepoint-frontend/pkg/logger"
)

// RequestOptions describes one logical API call.
type RequestOptions struct {
	// Method defaults to GET.
	Method string
	// Body is JSON-encoded unless it is already []byte or json.RawMessage.
	Body interface{}
	// Header overrides the default headers.
	Header http.Header
	// Query is appended to the path.
	Query url.Values
}

// SessionClient extends BaseClient with anti-forgery handling.
// Mutating requests get a fresh token and are resent once when the backend
// rejects them with a stale-token 403.
type SessionClient struct {
	*BaseClient // Embedded - inherits Do, Health, ResolveURL

	tokens     TokenSource
	detector   StaleTokenDetector
	headerName string
}

// SessionOption configures a SessionClient.
type SessionOption func(*SessionClient)

// WithStaleTokenDetector replaces the keyword detector.
func WithStaleTokenDetector(d StaleTokenDetector) SessionOption {
	return func(c *SessionClient) {
		c.detector = d
	}
}

// WithCSRFHeader changes the header carrying the token.
func WithCSRFHeader(name string) SessionOption {
	return func(c *SessionClient) {
		if name != "" {
			c.headerName = name
		}
	}
}

// NewSessionClient creates a session-aware client on top of base.
//
// Parameters:
//   - baseClient: Base HTTP client for core operations
//   - tokens: Anti-forgery token source, usually NewCSRFTokenSource(baseClient, "/csrf/")
func NewSessionClient(
	baseClient *BaseClient,
	tokens TokenSource,
	opts ...SessionOption,
) *SessionClient {
	c := &SessionClient{
		BaseClient: baseClient,
		tokens:     tokens,
		detector:   DefaultDetector,
		headerName: constants.HeaderCSRFToken,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsMutating reports whether method changes server state.
func IsMutating(method string) bool {
	m := strings.ToUpper(method)
	return m != http.MethodGet && m != http.MethodHead
}

// Send performs one logical call. HTTP error statuses are returned in the
// response; the error is non-nil only for transport failures, including a
// transport failure while fetching the anti-forgery token.
func (c *SessionClient) Send(ctx context.Context, path string, opts RequestOptions) (*Response, error) {
	method := strings.ToUpper(opts.Method)
	if method == "" {
		method = http.MethodGet
	}

	body, err := encodeBody(opts.Body)
	if err != nil {
		return nil, err
	}

	if len(opts.Query) > 0 {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		path += sep + opts.Query.Encode()
	}

	header := opts.Header.Clone()
	if header == nil {
		header = http.Header{}
	}

	if !IsMutating(method) {
		return c.Do(ctx, method, path, body, header)
	}

	token, err := c.tokens.FetchToken(ctx)
	if err != nil {
		return nil, err
	}
	if token != "" {
		header.Set(c.headerName, token)
	}

	resp, err := c.Do(ctx, method, path, body, header)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusForbidden || !c.detector.IsStaleToken(resp.Bytes()) {
		return resp, nil
	}

	logger.WithCorrelationID(ctx, c.logger).WithFields(logrus.Fields{
		"method": method,
		"path":   path,
	}).Warn("Anti-forgery token rejected, retrying with a fresh token")
	c.metrics.CSRFRetry()

	// The previous token stays on the request if the backend offers none.
	retryToken, err := c.tokens.FetchToken(ctx)
	if err != nil {
		return nil, err
	}
	if retryToken != "" {
		header.Set(c.headerName, retryToken)
	}

	return c.Do(ctx, method, path, body, header)
}

// SendJSON sends a call and decodes a 2xx body into out. Non-2xx responses
// are returned untouched with a nil error so the caller can build its own error.
func (c *SessionClient) SendJSON(ctx context.Context, path string, opts RequestOptions, out interface{}) (*Response, error) {
	resp, err := c.Send(ctx, path, opts)
	if err != nil {
		return nil, err
	}
	if !resp.OK() || out == nil || len(resp.Bytes()) == 0 {
		return resp, nil
	}
	if err := resp.DecodeJSON(out); err != nil {
		return resp, err
	}
	return resp, nil
}

func encodeBody(body interface{}) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	case json.RawMessage:
		return b, nil
	case string:
		return []byte(b), nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		return data, nil
	}
}

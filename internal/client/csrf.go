package client

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/LunarVagabond/phasepoint-frontend/pkg/logger"
)

// TokenSource supplies anti-forgery tokens for mutating requests.
type TokenSource interface {
	// FetchToken returns a fresh token bound to the current session.
	// An empty string with a nil error means the backend offered no token.
	FetchToken(ctx context.Context) (string, error)
}

// StaleTokenDetector decides whether a 403 body is an anti-forgery rejection.
type StaleTokenDetector interface {
	IsStaleToken(body []byte) bool
}

// KeywordDetector matches when the body contains any keyword, ignoring case.
type KeywordDetector []string

// DefaultDetector matches Django's "CSRF Failed: ..." rejections.
var DefaultDetector = KeywordDetector{"csrf"}

// IsStaleToken implements StaleTokenDetector.
func (k KeywordDetector) IsStaleToken(body []byte) bool {
	lower := bytes.ToLower(body)
	for _, kw := range k {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && bytes.Contains(lower, []byte(kw)) {
			return true
		}
	}
	return false
}

// csrfTokenSource fetches a token from the backend on every call. Tokens are
// never cached: each mutating request uses the token issued for it.
type csrfTokenSource struct {
	base *BaseClient
	path string
}

// NewCSRFTokenSource creates a TokenSource that calls GET path through base,
// sharing its cookie jar so the token matches the session.
func NewCSRFTokenSource(base *BaseClient, path string) TokenSource {
	if path == "" {
		path = "/csrf/"
	}
	return &csrfTokenSource{base: base, path: path}
}

// FetchToken returns the trimmed csrfToken field. A non-2xx status or an
// unparsable body yields no token; only transport failures are errors.
func (s *csrfTokenSource) FetchToken(ctx context.Context) (string, error) {
	resp, err := s.base.Do(ctx, http.MethodGet, s.path, nil, nil)
	if err != nil {
		s.base.metrics.TokenFetch("error")
		return "", fmt.Errorf("failed to fetch csrf token: %w", err)
	}

	log := logger.WithCorrelationID(ctx, s.base.logger)

	if !resp.OK() {
		s.base.metrics.TokenFetch("unavailable")
		log.WithField("status", resp.StatusCode).Debug("CSRF token endpoint returned no token")
		return "", nil
	}

	var payload map[string]interface{}
	if err := resp.DecodeJSON(&payload); err != nil {
		s.base.metrics.TokenFetch("unavailable")
		log.WithError(err).Debug("CSRF token response was not JSON")
		return "", nil
	}

	var token string
	switch v := payload["csrfToken"].(type) {
	case nil:
	case string:
		token = strings.TrimSpace(v)
	default:
		token = strings.TrimSpace(fmt.Sprint(v))
	}

	if token == "" {
		s.base.metrics.TokenFetch("unavailable")
	} else {
		s.base.metrics.TokenFetch("ok")
	}

	log.WithFields(logrus.Fields{"present": token != ""}).Debug("Fetched CSRF token")
	return token, nil
}

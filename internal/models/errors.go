package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrNotAuthenticated wraps the APIError returned when GET /me/ answers with
// a non-2xx status.
var ErrNotAuthenticated = errors.New("not authenticated")

// APIError is a non-2xx response converted into a Go error. Message holds the
// best human-readable text that could be extracted from the body.
type APIError struct {
	// StatusCode is the HTTP status returned by the backend.
	StatusCode int `json:"status_code"`
	// Message is the extracted, user-facing error text.
	Message string `json:"message"`
	// Body is the raw response body.
	Body string `json:"-"`
}

// NewAPIError builds an APIError, extracting its message from body.
// Named fields take precedence over the generic detail field.
func NewAPIError(statusCode int, body []byte, fallback string, fields ...string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		Message:    ExtractErrorMessage(body, fallback, fields...),
		Body:       string(body),
	}
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// IsForbidden reports whether err is an APIError with status 403.
func IsForbidden(err error) bool {
	return hasStatus(err, http.StatusForbidden)
}

func hasStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

// ExtractErrorMessage picks a readable message out of an error body.
//
// Precedence: the first non-empty value among fields (in order), then the
// "detail" field, then the raw body text, then fallback. Values may be plain
// strings, lists (joined by spaces) or objects (JSON-encoded).
func ExtractErrorMessage(body []byte, fallback string, fields ...string) string {
	text := strings.TrimSpace(string(body))

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err == nil {
		for _, field := range fields {
			if msg := renderValue(payload[field]); msg != "" {
				return msg
			}
		}
		if msg := renderValue(payload["detail"]); msg != "" {
			return msg
		}
	}

	if text != "" {
		return text
	}
	return fallback
}

func renderValue(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var value interface{}
	if err := json.Unmarshal(raw, &value); err != nil {
		return ""
	}

	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case []interface{}:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				parts = append(parts, s)
				continue
			}
			encoded, err := json.Marshal(item)
			if err == nil {
				parts = append(parts, string(encoded))
			}
		}
		return strings.TrimSpace(strings.Join(parts, " "))
	case bool:
		if !v {
			return ""
		}
		return "true"
	default:
		return string(raw)
	}
}

// ValidationError represents a single field validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error returns "field: message".
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of field validation errors.
type ValidationErrors []ValidationError

// Error returns a string representation of the validation errors.
// If there are no errors, it returns "validation failed".
// If there is one error, it returns that error's message.
// If there are multiple errors, it returns a summary with the count.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	return fmt.Sprintf("validation failed with %d errors", len(e))
}

// HasErrors returns true if there are one or more validation errors in the collection.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LunarVagabond/phasepoint-frontend/internal/client"
	"github.com/LunarVagabond/phasepoint-frontend/internal/models"
	"github.com/LunarVagabond/phasepoint-frontend/pkg/logger"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)
	return l
}

func newBase(t *testing.T, baseURL string) *client.BaseClient {
	t.Helper()
	bc, err := client.NewBaseClient(baseURL, 5*time.Second, quietLogger())
	require.NoError(t, err)
	return bc
}

func TestBaseClient_Do_GET(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/customers/", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]map[string]string{{"id": "1"}})
	}))
	defer server.Close()

	bc := newBase(t, server.URL+"/api/")

	resp, err := bc.Do(context.Background(), http.MethodGet, "customers/", nil, nil)
	require.NoError(t, err)

	assert.True(t, resp.OK())
	var rows []map[string]string
	require.NoError(t, resp.DecodeJSON(&rows))
	assert.Equal(t, "1", rows[0]["id"])
}

func TestBaseClient_Do_ErrorStatusIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"detail":"bad"}`))
	}))
	defer server.Close()

	resp, err := newBase(t, server.URL).Do(context.Background(), http.MethodPost, "/x/", []byte(`{}`), nil)
	require.NoError(t, err)

	assert.False(t, resp.OK())
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, `{"detail":"bad"}`, resp.Text())
}

func TestBaseClient_Do_TransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := newBase(t, url).Do(context.Background(), http.MethodGet, "/me/", nil, nil)
	assert.Error(t, err)
}

func TestBaseClient_Do_HeaderOverrideAndCorrelation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/csv", r.Header.Get("Accept"))
		assert.Equal(t, "corr-1", r.Header.Get("X-Request-ID"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	ctx := logger.SetCorrelationID(context.Background(), "corr-1")
	resp, err := newBase(t, server.URL).Do(ctx, http.MethodGet, "/export/", nil, http.Header{"Accept": {"text/csv"}})
	require.NoError(t, err)
	assert.True(t, resp.OK())
}

func TestBaseClient_ResolveURL(t *testing.T) {
	bc := newBase(t, "http://example.com/api")

	assert.Equal(t, "http://example.com/api/me/", bc.ResolveURL("/me/"))
	assert.Equal(t, "http://example.com/api/me/", bc.ResolveURL("me/"))
	assert.Equal(t, "https://other.test/x", bc.ResolveURL("https://other.test/x"))
	assert.Equal(t, "http://example.com/api", bc.BaseURL())
}

func TestBaseClient_CookiesPersist(t *testing.T) {
	var sawCookie bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/login/" {
			http.SetCookie(w, &http.Cookie{Name: "sessionid", Value: "abc", Path: "/"})
			return
		}
		c, err := r.Cookie("sessionid")
		sawCookie = err == nil && c.Value == "abc"
	}))
	defer server.Close()

	bc := newBase(t, server.URL)
	ctx := context.Background()

	_, err := bc.Do(ctx, http.MethodPost, "/login/", nil, nil)
	require.NoError(t, err)
	_, err = bc.Do(ctx, http.MethodGet, "/me/", nil, nil)
	require.NoError(t, err)

	assert.True(t, sawCookie)
	assert.Len(t, bc.Cookies(), 1)
}

func TestBaseClient_WithHTTPClientLeavesCallerClientUntouched(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "sessionid", Value: "abc", Path: "/"})
	}))
	defer server.Close()

	shared := &http.Client{Timeout: time.Second}
	bc, err := client.NewBaseClient(server.URL, 5*time.Second, quietLogger(), client.WithHTTPClient(shared))
	require.NoError(t, err)

	_, err = bc.Do(context.Background(), http.MethodGet, "/me/", nil, nil)
	require.NoError(t, err)

	assert.Nil(t, shared.Jar)
	assert.Len(t, bc.Cookies(), 1)
}

func TestBaseClient_Health(t *testing.T) {
	healthy := true
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health/", r.URL.Path)
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok","env":"dev"}`))
	}))
	defer server.Close()

	bc := newBase(t, server.URL)

	status, err := bc.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "dev", status.Env)

	healthy = false
	_, err = bc.Health(context.Background())
	var apiErr *models.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
}

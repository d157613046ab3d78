// Package metrics holds the Prometheus collectors recorded by the portal client.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "portal"

// Metrics holds Prometheus metrics for monitoring.
type Metrics struct {
	// Outbound API metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	CSRFTokenFetches    *prometheus.CounterVec
	CSRFRetries         prometheus.Counter

	// Cache metrics
	CacheLookups *prometheus.CounterVec
	CacheFetches *prometheus.CounterVec

	// Session and navigation metrics
	SessionFetches      *prometheus.CounterVec
	NavigationDecisions *prometheus.CounterVec

	// Health metrics
	HealthChecksTotal *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
// A nil registerer leaves them unregistered, which is convenient in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of outbound API requests",
			},
			[]string{"method", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Outbound API request duration",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		CSRFTokenFetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "csrf_token_fetches_total",
				Help:      "Anti-forgery token fetches by result",
			},
			[]string{"result"},
		),
		CSRFRetries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "csrf_retries_total",
				Help:      "Mutating requests resent after a stale-token rejection",
			},
		),
		CacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Reference cache lookups by kind and result",
			},
			[]string{"kind", "result"},
		),
		CacheFetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_fetches_total",
				Help:      "Reference data fetched from the backend by kind and result",
			},
			[]string{"kind", "result"},
		),
		SessionFetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "session_fetches_total",
				Help:      "Session lookups by result",
			},
			[]string{"result"},
		),
		NavigationDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "navigation_decisions_total",
				Help:      "Route guard decisions by reason",
			},
			[]string{"reason"},
		),
		HealthChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "health_checks_total",
				Help:      "Total number of health checks",
			},
			[]string{"type", "status"},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.HTTPRequestsTotal,
			m.HTTPRequestDuration,
			m.CSRFTokenFetches,
			m.CSRFRetries,
			m.CacheLookups,
			m.CacheFetches,
			m.SessionFetches,
			m.NavigationDecisions,
			m.HealthChecksTotal,
		)
	}

	return m
}

// ObserveRequest records one outbound attempt. status 0 means a transport failure.
func (m *Metrics) ObserveRequest(method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, statusLabel(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// TokenFetch records an anti-forgery token fetch result (ok, unavailable, error).
func (m *Metrics) TokenFetch(result string) {
	if m == nil {
		return
	}
	m.CSRFTokenFetches.WithLabelValues(result).Inc()
}

// CSRFRetry records a stale-token resend.
func (m *Metrics) CSRFRetry() {
	if m == nil {
		return
	}
	m.CSRFRetries.Inc()
}

// CacheLookup records a reference cache read (hit, miss, expired, error).
func (m *Metrics) CacheLookup(kind, result string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(kind, result).Inc()
}

// CacheFetch records a backend fetch made to fill the cache (ok, error).
func (m *Metrics) CacheFetch(kind, result string) {
	if m == nil {
		return
	}
	m.CacheFetches.WithLabelValues(kind, result).Inc()
}

// SessionFetch records a session lookup (cached, fetched, failed).
func (m *Metrics) SessionFetch(result string) {
	if m == nil {
		return
	}
	m.SessionFetches.WithLabelValues(result).Inc()
}

// NavigationDecision records a guard outcome.
func (m *Metrics) NavigationDecision(reason string) {
	if m == nil {
		return
	}
	m.NavigationDecisions.WithLabelValues(reason).Inc()
}

// HealthCheck records a debug server health probe.
func (m *Metrics) HealthCheck(kind, status string) {
	if m == nil {
		return
	}
	m.HealthChecksTotal.WithLabelValues(kind, status).Inc()
}

func statusLabel(status int) string {
	if status == 0 {
		return "error"
	}
	return strconv.Itoa(status)
}

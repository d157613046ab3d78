// Package handlers serves the portal client's debug endpoints: liveness,
// readiness against the backend and the reference cache, and Prometheus metrics.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/LunarVagabond/phasepoint-frontend/internal/constants"
	"github.com/LunarVagabond/phasepoint-frontend/internal/metrics"
	"github.com/LunarVagabond/phasepoint-frontend/internal/models"
)

const (
	// HealthCheckTimeout is the default timeout for health check operations.
	HealthCheckTimeout = 5 * time.Second
	// SlowThreshold marks a component degraded when its probe takes longer.
	SlowThreshold = time.Second
)

// BackendChecker probes the portal API.
type BackendChecker interface {
	Health(ctx context.Context) (*models.HealthStatus, error)
}

// StorePinger probes the reference cache storage.
type StorePinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler provides health check and monitoring endpoints.
type HealthHandler struct {
	backend   BackendChecker
	store     StorePinger
	gatherer  prometheus.Gatherer
	logger    *logrus.Logger
	metrics   *metrics.Metrics
	startTime time.Time
}

// HealthStatus represents the health status of a component.
type HealthStatus string

const (
	// StatusHealthy indicates the component is healthy.
	StatusHealthy HealthStatus = "healthy"
	// StatusUnhealthy indicates the component is unhealthy.
	StatusUnhealthy HealthStatus = "unhealthy"
	// StatusDegraded indicates the component has degraded performance.
	StatusDegraded HealthStatus = "degraded"
)

// HealthResponse represents the overall health check response.
type HealthResponse struct {
	Status     HealthStatus               `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Uptime     string                     `json:"uptime,omitempty"`
	Components map[string]ComponentHealth `json:"components,omitempty"`
}

// ComponentHealth represents the health of an individual component.
type ComponentHealth struct {
	Status       HealthStatus `json:"status"`
	Message      string       `json:"message,omitempty"`
	LastChecked  time.Time    `json:"last_checked"`
	ResponseTime string       `json:"response_time,omitempty"`
}

// ReadinessResponse represents the readiness check response.
type ReadinessResponse struct {
	Ready      bool                       `json:"ready"`
	Timestamp  time.Time                  `json:"timestamp"`
	Components map[string]ComponentHealth `json:"components,omitempty"`
}

// NewHealthHandler creates a new health check handler. store may be nil when
// the reference cache is not in use; gatherer may be nil to use the default
// Prometheus registry.
func NewHealthHandler(
	backend BackendChecker,
	store StorePinger,
	gatherer prometheus.Gatherer,
	m *metrics.Metrics,
	logger *logrus.Logger,
) *HealthHandler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &HealthHandler{
		backend:   backend,
		store:     store,
		gatherer:  gatherer,
		logger:    logger,
		metrics:   m,
		startTime: time.Now(),
	}
}

// RegisterRoutes registers health check and monitoring endpoints.
func (h *HealthHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	r.HandleFunc("/health/live", h.Liveness).Methods(http.MethodGet)
	r.HandleFunc("/health/ready", h.Readiness).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
}

// Health reports every component. A failing backend makes the client
// unhealthy; a failing cache store only degrades it.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	components := map[string]ComponentHealth{
		"backend": h.checkBackend(ctx),
	}
	overall := components["backend"].Status

	if h.store != nil {
		components["cache"] = h.checkStore(ctx)
		if components["cache"].Status != StatusHealthy && overall == StatusHealthy {
			overall = StatusDegraded
		}
	}

	h.metrics.HealthCheck("health", string(overall))

	statusCode := http.StatusOK
	if overall == StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	h.writeJSON(w, statusCode, HealthResponse{
		Status:     overall,
		Timestamp:  time.Now(),
		Uptime:     time.Since(h.startTime).String(),
		Components: components,
	})
}

// Liveness returns 200 while the process is running.
func (h *HealthHandler) Liveness(w http.ResponseWriter, _ *http.Request) {
	h.metrics.HealthCheck("liveness", "healthy")

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "alive",
		"timestamp": time.Now(),
		"uptime":    time.Since(h.startTime).String(),
	})
}

// Readiness returns 200 only when the backend answers its health probe.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	backend := h.checkBackend(ctx)
	ready := backend.Status != StatusUnhealthy

	statusLabel := "ready"
	statusCode := http.StatusOK
	if !ready {
		statusLabel = "not_ready"
		statusCode = http.StatusServiceUnavailable
	}
	h.metrics.HealthCheck("readiness", statusLabel)

	h.writeJSON(w, statusCode, ReadinessResponse{
		Ready:      ready,
		Timestamp:  time.Now(),
		Components: map[string]ComponentHealth{"backend": backend},
	})
}

func (h *HealthHandler) checkBackend(ctx context.Context) ComponentHealth {
	checkCtx, cancel := context.WithTimeout(ctx, HealthCheckTimeout)
	defer cancel()

	start := time.Now()
	status, err := h.backend.Health(checkCtx)
	duration := time.Since(start)

	if err != nil {
		h.logger.WithError(err).Warn("Backend health check failed")
		return ComponentHealth{
			Status:       StatusUnhealthy,
			Message:      "backend unreachable: " + err.Error(),
			LastChecked:  time.Now(),
			ResponseTime: duration.String(),
		}
	}

	result := ComponentHealth{
		Status:       StatusHealthy,
		Message:      "backend status " + status.Status,
		LastChecked:  time.Now(),
		ResponseTime: duration.String(),
	}
	if status.Env != "" {
		result.Message += " (" + status.Env + ")"
	}
	if duration > SlowThreshold {
		result.Status = StatusDegraded
		result.Message = "backend responding slowly"
	}
	return result
}

func (h *HealthHandler) checkStore(ctx context.Context) ComponentHealth {
	checkCtx, cancel := context.WithTimeout(ctx, HealthCheckTimeout)
	defer cancel()

	start := time.Now()
	err := h.store.Ping(checkCtx)
	duration := time.Since(start)

	if err != nil {
		h.logger.WithError(err).Warn("Cache store health check failed")
		return ComponentHealth{
			Status:       StatusUnhealthy,
			Message:      "cache store unreachable: " + err.Error(),
			LastChecked:  time.Now(),
			ResponseTime: duration.String(),
		}
	}
	return ComponentHealth{
		Status:       StatusHealthy,
		Message:      "cache store is healthy",
		LastChecked:  time.Now(),
		ResponseTime: duration.String(),
	}
}

func (h *HealthHandler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set(constants.HeaderContentType, constants.ContentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.WithError(err).Error("Failed to encode health response")
	}
}

package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/LunarVagabond/phasepoint-frontend/internal/middleware"
)

// Debug server timeouts.
const (
	ReadTimeout  = 5 * time.Second
	WriteTimeout = 10 * time.Second
	IdleTimeout  = 60 * time.Second
)

// NewRouter wires the health and metrics endpoints behind the middleware stack.
func NewRouter(h *HealthHandler, stack *middleware.Stack) http.Handler {
	router := mux.NewRouter()
	h.RegisterRoutes(router)

	return stack.Chain(
		router,
		stack.Recovery,
		stack.RequestLogger,
		stack.SecurityHeaders,
	)
}

// NewDebugServer returns an HTTP server for the debug endpoints on addr.
func NewDebugServer(addr string, h *HealthHandler, stack *middleware.Stack) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      NewRouter(h, stack),
		ReadTimeout:  ReadTimeout,
		WriteTimeout: WriteTimeout,
		IdleTimeout:  IdleTimeout,
	}
}

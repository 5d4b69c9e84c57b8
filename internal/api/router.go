package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/stats", s.handleStats)

		// Recorded inventory
		r.Get("/devices", s.handleListDevices)
		r.Get("/group-addresses", s.handleListGroupAddresses)
		r.Get("/telegrams", s.handleListTelegrams)

		// Live stream
		r.Get("/ws", s.handleWebSocket)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, req, errMethodNotAllowed("the API is read-only"))
	})
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, req, errNotFound("no such endpoint"))
	})

	return r
}

// handleHealth reports the server and each configured component. Any
// failing component turns the status to "degraded" with a 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	components := make(map[string]string, len(s.components))

	for name, c := range s.components {
		ctx, cancel := context.WithTimeout(r.Context(), componentCheckTimeout)
		err := c.HealthCheck(ctx)
		cancel()

		if err != nil {
			s.logger.Warn("health check failed", "component", name, "error", err)
			components[name] = err.Error()
			status, code = "degraded", http.StatusServiceUnavailable
			continue
		}
		components[name] = "ok"
	}

	writeJSON(w, code, map[string]any{
		"status":     status,
		"version":    s.version,
		"ws_clients": s.hub.ClientCount(),
		"components": components,
	})
}

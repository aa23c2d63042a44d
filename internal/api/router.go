package api

import (
	"context"
	"net/http"
	"time"

	"github.com/NYTimes/gziphandler"
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
	r.Use(s.bodySizeLimitMiddleware)

	r.Get("/health", s.handleHealth)
	r.Get("/metrics", s.handleMetrics)

	// The upgrade needs the raw connection, so it stays outside gzip.
	r.Get("/ws", s.handleWebSocket)

	r.Group(func(r chi.Router) {
		r.Use(gziphandler.GzipHandler)

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetDevice)
				r.Patch("/", s.handleSetPower)
				r.Put("/", s.handleSetPower)
				r.Get("/power-log", s.handlePowerLog)
			})
		})
	})

	return r
}

// healthCheckTimeout bounds the dependency checks run by /health.
const healthCheckTimeout = 2 * time.Second

// handleHealth returns the server health status. Any failing dependency
// turns the status to "degraded" and the response to 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":  "ok",
		"version": s.version,
		"devices": s.registry.Count(),
	}
	status := http.StatusOK

	if len(s.checks) > 0 {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		checks := make(map[string]string, len(s.checks))
		for name, dep := range s.checks {
			if err := dep.HealthCheck(ctx); err != nil {
				s.logger.Warn("health check failed", "dependency", name, "error", err)
				checks[name] = err.Error()
				resp["status"] = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			checks[name] = "ok"
		}
		resp["checks"] = checks
	}

	s.respond(w, r, status, resp)
}

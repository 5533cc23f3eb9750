package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// Sensor read: every method triggers a read.
	sensorPath := s.cfg.Path
	if sensorPath == "" {
		sensorPath = "/ir"
	}
	r.With(s.sensorRecoveryMiddleware).HandleFunc(sensorPath, s.handleRead)
	if sensorPath != LegacyPath {
		r.With(s.sensorRecoveryMiddleware).HandleFunc(LegacyPath, s.handleRead)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/audit", s.handleListAudit)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllow, "method not allowed")
	})

	return r
}

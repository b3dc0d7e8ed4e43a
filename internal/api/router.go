package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Request body limits.
const (
	maxRequestBodySize = 1 << 20
	maxImportBodySize  = 10 << 20
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.metricsMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)

	r.Get("/health", s.handleHealth)
	r.Get(s.wsPath(), s.handleWebSocket)

	if s.metrics != nil {
		r.Handle(s.metricsPath(), s.metrics.Handler())
	}

	r.Route("/students", func(r chi.Router) {
		r.With(bodySizeLimit(maxImportBodySize)).Post("/import", s.handleImportStudents)

		r.Group(func(r chi.Router) {
			r.Use(bodySizeLimit(maxRequestBodySize))

			r.Get("/", s.handleListStudents)
			r.Post("/", s.handleCreateStudent)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetStudent)
				r.Put("/", s.handleUpdateStudent)
				r.Delete("/", s.handleDeleteStudent)
			})
		})
	})

	// Routes served by the first version of the registry.
	r.Group(func(r chi.Router) {
		r.Use(bodySizeLimit(maxRequestBodySize))

		r.Post("/add-student", s.handleCreateStudent)
		r.Route("/student/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetStudent)
			r.Put("/", s.handleUpdateStudent)
			r.Delete("/", s.handleDeleteStudent)
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)
	})

	return r
}

func (s *Server) wsPath() string {
	if s.wsCfg.Path == "" {
		return "/ws"
	}
	return s.wsCfg.Path
}

func (s *Server) metricsPath() string {
	if s.metricsRoute == "" {
		return "/metrics"
	}
	return s.metricsRoute
}

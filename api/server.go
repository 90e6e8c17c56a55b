/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/projects/*       Projects, participants, fields, runs
  /api/admin/*          Overrides and insurance reference data

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Route("/projects", func(r chi.Router) {
			r.Post("/", h.CreateProject)

			r.Route("/{projectID}", func(r chi.Router) {
				r.Get("/", h.GetProject)

				r.Route("/participants", func(r chi.Router) {
					r.Get("/", h.ListParticipants)
					r.Post("/", h.CreateParticipant)
				})

				r.Route("/fields", func(r chi.Router) {
					r.Get("/", h.ListFields)
					r.Post("/", h.CreateField)

					r.Route("/{fieldID}", func(r chi.Router) {
						r.Post("/generate", h.Generate)
						r.Post("/recompute", h.Recompute)
						r.Get("/instances", h.ListInstances)
						r.Get("/receivables", h.ListReceivables)
					})
				})
			})
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Put("/overrides", h.SetOverride)
			r.Route("/insurance", func(r chi.Router) {
				r.Post("/objects", h.AddInsuredObject)
				r.Put("/rates", h.SetRate)
			})
		})
	})

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"service":  "receivables-engine",
			"projects": "/api/projects",
		})
	})

	return r
}

/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

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
  4. CORS:       Cross-origin requests for the admin frontend

ROUTE GROUPS:
  /api/bracket-sets/*   Tax configuration per fiscal year
  /api/tax/*            Tax evaluation
  /api/runs             Payroll run history
  /api/leave/*          Leave policy
  /api/employees/*      Employees and their balances
  /api/admin/*          Batch operations

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
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
		// Bracket set routes
		r.Route("/bracket-sets", func(r chi.Router) {
			r.Get("/", h.ListBracketSets)
			r.Post("/", h.SaveBracketSet)
			r.Get("/{year}", h.GetBracketSet)
			r.Post("/{year}/activate", h.ActivateBracketSet)
			r.Post("/{year}/deactivate", h.DeactivateBracketSet)
		})

		// Tax routes
		r.Route("/tax", func(r chi.Router) {
			r.Post("/compute", h.ComputeTax)
		})
		r.Get("/runs", h.ListRuns)

		// Leave policy routes
		r.Route("/leave", func(r chi.Router) {
			r.Get("/policy", h.GetLeavePolicy)
			r.Put("/policy", h.PutLeavePolicy)
		})

		// Employee routes
		r.Route("/employees", func(r chi.Router) {
			r.Get("/", h.ListEmployees)
			r.Post("/", h.CreateEmployee)
			r.Get("/{id}/balances", h.GetEmployeeBalances)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/balances/generate", h.GenerateBalances)
		})
	})

	return r
}

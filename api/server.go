/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests from the configured origins

ROUTE GROUPS:
  /health               Liveness probe
  /metrics              Prometheus scrape endpoint (when configured)
  /api/condominiums/*   Units and concepts of one condominium
  /api/concepts/*       Concepts, assignments, charge generation
  /api/assignments/*    Assignment removal
  /api/quotas/*         Quotes and adjustments
  /api/payments/*       Refunds
  /api/scenarios/*      Demo scenarios (dev only)

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

// RouterOptions configures the parts of the router that come from config.
type RouterOptions struct {
	AllowedOrigins []string
	Metrics        http.Handler // nil disables /metrics
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", actorHeader},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/condominiums/{id}", func(r chi.Router) {
			r.Get("/units", h.ListUnits)
			r.Get("/concepts", h.ListConcepts)
		})

		r.Post("/units", h.CreateUnit)

		r.Route("/concepts", func(r chi.Router) {
			r.Post("/", h.CreateConcept)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetConcept)
				r.Post("/deactivate", h.DeactivateConcept)
				r.Get("/assignments", h.ListAssignments)
				r.Post("/assignments", h.AddAssignment)
				r.Post("/charges", h.GenerateCharges)
				r.Post("/charges/preview", h.PreviewCharges)
				r.Get("/charges/{year}/{month}", h.GetCharges)
			})
		})

		r.Delete("/assignments/{id}", h.RemoveAssignment)

		r.Route("/quotas/{id}", func(r chi.Router) {
			r.Get("/quote", h.QuoteQuota)
			r.Get("/adjustments", h.ListAdjustments)
			r.Post("/adjustments", h.AdjustQuota)
		})

		r.Post("/payments/{id}/refund", h.RefundPayment)

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}

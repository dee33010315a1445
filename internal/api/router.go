// Package api assembles the HTTP routes of the tax tracker.
package api

import (
	"net/http"

	"github.com/dvloznov/fop-tax-tracker/internal/api/handlers"
	"github.com/dvloznov/fop-tax-tracker/internal/api/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

// RouterConfig holds the handlers served by the router. A nil handler
// leaves its routes out.
type RouterConfig struct {
	Log            zerolog.Logger
	AllowedOrigins []string

	Statements *handlers.StatementsHandler
	Jobs       *handlers.JobsHandler
	Tax        *handlers.TaxHandler
	Accounts   *handlers.AccountsHandler
}

// NewRouter builds the chi router with request IDs, logging, panic
// recovery and CORS applied in that order.
func NewRouter(cfg RouterConfig) *chi.Mux {
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(cfg.Log))
	r.Use(middleware.Recovery(cfg.Log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader},
		MaxAge:         3600,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Get("/health", handlers.Health)

	r.Route("/api", func(r chi.Router) {
		if cfg.Statements != nil {
			r.Post("/statements", cfg.Statements.ImportStatement)
			r.Post("/statements/jobs", cfg.Statements.EnqueueImport)
		}
		if cfg.Jobs != nil {
			r.Get("/jobs", cfg.Jobs.ListJobs)
			r.Get("/jobs/{id}", cfg.Jobs.GetJob)
		}
		if cfg.Tax != nil {
			r.Post("/tax/report", cfg.Tax.ComputeReport)
			r.Get("/tax/{year}", cfg.Tax.YearReport)
		}
		if cfg.Accounts != nil {
			r.Get("/accounts/{year}", cfg.Accounts.Analyze)
		}
	})

	return r
}

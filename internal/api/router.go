package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	mw "github.com/kiranshivaraju/meshcover/internal/api/middleware"
	"github.com/kiranshivaraju/meshcover/internal/api/response"
	"github.com/kiranshivaraju/meshcover/pkg/models"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit

	HealthHandler http.HandlerFunc

	ListCoverage  http.HandlerFunc
	ListRepeaters http.HandlerFunc
	ListSamples   http.HandlerFunc

	PutRepeater http.HandlerFunc

	CleanUpHandler http.HandlerFunc
	MigrateHandler http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	// Public routes
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))
	r.Get("/api/v1/coverage", orNotImplemented(deps.ListCoverage))
	r.Get("/api/v1/repeaters", orNotImplemented(deps.ListRepeaters))
	r.Get("/api/v1/samples", orNotImplemented(deps.ListSamples))

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)
		r.Use(deps.RateLimit.Limit)

		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.RequireScope(models.ScopeWrite))

			r.Post("/api/v1/repeaters", orNotImplemented(deps.PutRepeater))
		})

		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.RequireScope(models.ScopeMaintenance))

			r.Post("/api/v1/maintenance/clean-up", orNotImplemented(deps.CleanUpHandler))
			r.Post("/api/v1/maintenance/db-migrate", orNotImplemented(deps.MigrateHandler))
		})
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}

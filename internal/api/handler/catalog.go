package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/kiranshivaraju/meshcover/internal/api/response"
	"github.com/kiranshivaraju/meshcover/pkg/models"
)

// Lister defines the read operations the list handlers depend on.
type Lister interface {
	ListCoverage(ctx context.Context) ([]models.CoverageRecord, error)
	ListRepeaters(ctx context.Context) ([]models.RepeaterRecord, error)
	ListSamples(ctx context.Context, prefix string) ([]*models.Sample, error)
}

// NewListCoverageHandler returns an http.HandlerFunc for GET /api/v1/coverage.
func NewListCoverageHandler(svc Lister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cells, err := svc.ListCoverage(r.Context())
		if err != nil {
			listFailed(w, "coverage", err)
			return
		}
		response.Collection(w, cells, len(cells))
	}
}

// NewListRepeatersHandler returns an http.HandlerFunc for GET /api/v1/repeaters.
func NewListRepeatersHandler(svc Lister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reps, err := svc.ListRepeaters(r.Context())
		if err != nil {
			listFailed(w, "repeaters", err)
			return
		}
		response.Collection(w, reps, len(reps))
	}
}

// NewListSamplesHandler returns an http.HandlerFunc for GET /api/v1/samples?p=<prefix>.
func NewListSamplesHandler(svc Lister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		samples, err := svc.ListSamples(r.Context(), r.URL.Query().Get("p"))
		if err != nil {
			listFailed(w, "samples", err)
			return
		}
		response.Collection(w, samples, len(samples))
	}
}

func listFailed(w http.ResponseWriter, what string, err error) {
	slog.Error("list failed", "collection", what, "error", err)
	response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
		"An unexpected error occurred", nil)
}

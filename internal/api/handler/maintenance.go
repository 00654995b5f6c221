package handler

import (
	"context"
	"log/slog"
	"net/http"

	mw "github.com/kiranshivaraju/meshcover/internal/api/middleware"
	"github.com/kiranshivaraju/meshcover/internal/api/response"
	"github.com/kiranshivaraju/meshcover/internal/maintenance"
)

// Maintainer defines the maintenance operations the handlers depend on.
type Maintainer interface {
	CleanCoverage(ctx context.Context) (maintenance.CoverageResult, error)
	CleanSamples(ctx context.Context) (maintenance.SamplesCleanResult, error)
	CleanRepeaters(ctx context.Context) (maintenance.RepeaterResult, error)
	MigrateArchive(ctx context.Context) (maintenance.MigrationResult, error)
	MigrateSamples(ctx context.Context) (maintenance.MigrationResult, error)
}

type operation func(ctx context.Context) (any, error)

func op[T any](fn func(context.Context) (T, error)) operation {
	return func(ctx context.Context) (any, error) {
		return fn(ctx)
	}
}

// NewCleanUpHandler returns an http.HandlerFunc for
// POST /api/v1/maintenance/clean-up?op=coverage|samples|repeaters.
func NewCleanUpHandler(svc Maintainer) http.HandlerFunc {
	return dispatch("clean-up", map[string]operation{
		"coverage":  op(svc.CleanCoverage),
		"samples":   op(svc.CleanSamples),
		"repeaters": op(svc.CleanRepeaters),
	}, []string{"coverage", "samples", "repeaters"})
}

// NewMigrateHandler returns an http.HandlerFunc for
// POST /api/v1/maintenance/db-migrate?op=archive|samples.
func NewMigrateHandler(svc Maintainer) http.HandlerFunc {
	return dispatch("db-migrate", map[string]operation{
		"archive": op(svc.MigrateArchive),
		"samples": op(svc.MigrateSamples),
	}, []string{"archive", "samples"})
}

func dispatch(name string, ops map[string]operation, allowed []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		selected := r.URL.Query().Get("op")
		run, ok := ops[selected]
		if !ok {
			response.Error(w, http.StatusBadRequest, "INVALID_OP",
				"op must be one of the supported operations", map[string][]string{"op": allowed})
			return
		}

		logger := slog.With("operation", name, "op", selected, "request_id", mw.GetRequestID(r))
		if keyID, ok := mw.GetAPIKeyID(r); ok {
			logger = logger.With("api_key_id", keyID)
		}

		result, err := run(r.Context())
		if err != nil {
			logger.Error("maintenance operation failed", "error", err)
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		logger.Info("maintenance operation completed", "result", result)
		response.JSON(w, result)
	}
}

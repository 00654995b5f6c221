package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/kiranshivaraju/meshcover/internal/api/response"
	"github.com/kiranshivaraju/meshcover/internal/geo"
	"github.com/kiranshivaraju/meshcover/internal/registry"
	"github.com/kiranshivaraju/meshcover/pkg/models"
)

// RepeaterWriter defines the put path the handler depends on.
type RepeaterWriter interface {
	Put(ctx context.Context, req registry.PutRequest) (*models.Repeater, error)
}

// NewPutRepeaterHandler returns an http.HandlerFunc for POST /api/v1/repeaters.
func NewPutRepeaterHandler(svc RepeaterWriter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Coordinates may arrive as numbers or numeric strings.
		var req struct {
			Lat       json.Number `json:"lat"`
			Lon       json.Number `json:"lon"`
			ID        string      `json:"id"`
			Name      string      `json:"name"`
			Elevation *float64    `json:"elevation"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		rep, err := svc.Put(r.Context(), registry.PutRequest{
			Lat:       req.Lat.String(),
			Lon:       req.Lon.String(),
			ID:        req.ID,
			Name:      req.Name,
			Elevation: req.Elevation,
		})
		if err != nil {
			switch {
			case errors.Is(err, geo.ErrInvalidLocation):
				response.Error(w, http.StatusBadRequest, "INVALID_LOCATION", err.Error(), nil)
			case errors.Is(err, registry.ErrInvalidRepeater):
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
			default:
				slog.Error("put repeater failed", "id", req.ID, "error", err)
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
					"An unexpected error occurred", nil)
			}
			return
		}

		response.Created(w, rep)
	}
}

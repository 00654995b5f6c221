// Package registry implements the repeater put path: a repeater reports its
// position and the registration is written to the warehouse keyed by id and
// 8 character geohash.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kiranshivaraju/meshcover/internal/elevation"
	"github.com/kiranshivaraju/meshcover/internal/geo"
	"github.com/kiranshivaraju/meshcover/internal/store"
	"github.com/kiranshivaraju/meshcover/pkg/models"
)

var ErrInvalidRepeater = errors.New("invalid repeater")

// PutRequest is a repeater registration. Lat and Lon are textual so that
// both numeric and quoted coordinates are accepted.
type PutRequest struct {
	Lat       string
	Lon       string
	ID        string
	Name      string
	Elevation *float64
}

// Registry writes repeater registrations.
type Registry struct {
	store     store.Store
	elevation elevation.Client
	now       func() time.Time
}

// New creates a Registry. elev may be nil, in which case unknown elevations
// are stored as null.
func New(st store.Store, elev elevation.Client) *Registry {
	return &Registry{
		store:     st,
		elevation: elev,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Put validates req and inserts or replaces the (id, geohash) row.
//
// When req carries no elevation the previously stored elevation for the same
// row is reused, and failing that the elevation service is asked. A failed
// lookup stores a null elevation rather than failing the write.
func (r *Registry) Put(ctx context.Context, req PutRequest) (*models.Repeater, error) {
	id := strings.ToLower(strings.TrimSpace(req.ID))
	if id == "" {
		return nil, fmt.Errorf("%w: id is required", ErrInvalidRepeater)
	}

	loc, err := geo.ParseLocation(req.Lat, req.Lon)
	if err != nil {
		return nil, err
	}

	rep := &models.Repeater{
		ID:        id,
		Hash:      geo.Geohash8(loc),
		Time:      r.now(),
		Name:      req.Name,
		Elevation: req.Elevation,
	}

	if rep.Elevation == nil {
		elev, err := r.resolveElevation(ctx, rep.ID, rep.Hash, loc)
		if err != nil {
			return nil, err
		}
		rep.Elevation = elev
	}

	if err := r.store.UpsertRepeater(ctx, rep); err != nil {
		return nil, fmt.Errorf("put repeater: %w", err)
	}
	return rep, nil
}

func (r *Registry) resolveElevation(ctx context.Context, id, hash string, loc geo.Point) (*float64, error) {
	existing, err := r.store.GetRepeater(ctx, id, hash)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("load existing repeater: %w", err)
	case existing.Elevation != nil:
		return existing.Elevation, nil
	}

	if r.elevation == nil {
		return nil, nil
	}
	elev, err := r.elevation.Elevation(ctx, loc.Lat, loc.Lon)
	if err != nil {
		slog.Warn("elevation lookup failed",
			"lat", loc.Lat,
			"lon", loc.Lon,
			"error", err,
		)
		return nil, nil
	}
	return &elev, nil
}

// Package maintenance runs the periodic clean-up and migration jobs over the
// key-value dataset: evicting corrupt coverage cells, evicting stale and
// duplicate repeaters, and moving queued samples and archive entries into
// the relational warehouse.
package maintenance

import (
	"context"
	"log/slog"
	"time"

	"github.com/kiranshivaraju/meshcover/internal/config"
	"github.com/kiranshivaraju/meshcover/internal/geo"
	"github.com/kiranshivaraju/meshcover/internal/kv"
	"github.com/kiranshivaraju/meshcover/internal/store"
	"golang.org/x/sync/errgroup"
)

// Namespaces groups the key-value collections the jobs operate on.
type Namespaces struct {
	Coverage  kv.Namespace
	Repeaters kv.Namespace
	Samples   kv.Namespace
	Archive   kv.Namespace
}

// Service runs maintenance operations. Operations are expected to be
// triggered one at a time; two concurrent runs may race on the same keys.
type Service struct {
	ns    Namespaces
	store store.Store
	cfg   config.MaintenanceConfig

	now    func() time.Time
	locate func(hash string) (geo.Point, error)
}

// NewService creates a new maintenance Service.
func NewService(ns Namespaces, st store.Store, cfg config.MaintenanceConfig) *Service {
	return &Service{
		ns:     ns,
		store:  st,
		cfg:    cfg,
		now:    func() time.Time { return time.Now().UTC() },
		locate: geo.PointFromGeohash,
	}
}

// deleteKeys removes every name from ns concurrently, bounded by the
// configured fan-out. The first failure cancels the remaining deletes and is
// returned; deletes that already completed are not restored.
func (s *Service) deleteKeys(ctx context.Context, ns kv.Namespace, names []string, msg string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.DeleteConcurrency)
	for _, name := range names {
		g.Go(func() error {
			slog.Info(msg, "key", name)
			return ns.Delete(gctx, name)
		})
	}
	return g.Wait()
}

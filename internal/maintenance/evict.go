package maintenance

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kiranshivaraju/meshcover/internal/geo"
	"github.com/kiranshivaraju/meshcover/internal/kv"
	"github.com/kiranshivaraju/meshcover/internal/overlap"
	"github.com/kiranshivaraju/meshcover/pkg/models"
)

// CleanCoverage deletes every coverage cell whose key does not decode to a
// valid location. A key listed more than once is judged and counted once.
func (s *Service) CleanCoverage(ctx context.Context) (CoverageResult, error) {
	var result CoverageResult
	seen := make(map[string]bool)

	err := kv.ListAll(ctx, s.ns.Coverage, func(page kv.Page) error {
		var bad []string
		for _, k := range page.Keys {
			if seen[k.Name] {
				continue
			}
			seen[k.Name] = true
			if !s.inRange(k.Name) {
				bad = append(bad, k.Name)
			}
		}
		if err := s.deleteKeys(ctx, s.ns.Coverage, bad, "coverage out of range"); err != nil {
			return err
		}
		result.OutOfRange += len(bad)
		return nil
	})
	if err != nil {
		return CoverageResult{}, fmt.Errorf("clean coverage: %w", err)
	}
	return result, nil
}

func (s *Service) inRange(hash string) bool {
	p, err := s.locate(hash)
	if err != nil {
		return false
	}
	return geo.IsValidLocation(p)
}

// CleanSamples is accepted for compatibility with existing schedulers and
// does nothing.
func (s *Service) CleanSamples(_ context.Context) (SamplesCleanResult, error) {
	return SamplesCleanResult{}, nil
}

// CleanRepeaters deletes stale repeater registrations, then collapses the
// remaining registrations of each id that sit at the same site, keeping the
// most recently observed one. Keys listed more than once are considered once,
// so a registration is never grouped with itself.
func (s *Service) CleanRepeaters(ctx context.Context) (RepeaterResult, error) {
	var live []models.RepeaterRecord
	var stale []string
	seen := make(map[string]bool)

	now := s.now()
	err := kv.ListAll(ctx, s.ns.Repeaters, func(page kv.Page) error {
		for _, k := range page.Keys {
			if seen[k.Name] {
				continue
			}
			seen[k.Name] = true
			rec, err := models.RepeaterFromMetadata(k.Name, k.Metadata)
			if err != nil {
				slog.Warn("skipping repeater with unreadable metadata", "key", k.Name, "error", err)
				continue
			}
			if now.Sub(rec.ObservedAt) > s.cfg.StaleAfter {
				stale = append(stale, k.Name)
				continue
			}
			live = append(live, rec)
		}
		return nil
	})
	if err != nil {
		return RepeaterResult{}, fmt.Errorf("clean repeaters: %w", err)
	}

	if err := s.deleteKeys(ctx, s.ns.Repeaters, stale, "deleting stale repeater"); err != nil {
		return RepeaterResult{}, fmt.Errorf("clean repeaters: %w", err)
	}
	result := RepeaterResult{DeletedStale: len(stale)}

	dupes, err := s.dedupe(ctx, live)
	if err != nil {
		return RepeaterResult{}, fmt.Errorf("clean repeaters: %w", err)
	}
	return result.Merge(dupes), nil
}

// dedupe groups records per id by site and deletes all but the newest member
// of each group. Deletes for every group run in one fan-out.
func (s *Service) dedupe(ctx context.Context, records []models.RepeaterRecord) (RepeaterResult, error) {
	var result RepeaterResult
	var drop []string

	ids, byID := overlap.IndexByID(records)
	for _, id := range ids {
		for _, g := range overlap.GroupByOverlap(byID[id], s.cfg.OverlapMiles) {
			_, losers := overlap.Elect(g)
			for _, r := range losers {
				slog.Info("duplicate repeater",
					"id", g.ID,
					"lat", g.Location.Lat,
					"lon", g.Location.Lon,
					"key", r.Key,
				)
				drop = append(drop, r.Key)
			}
			result = result.Merge(RepeaterResult{DeletedDupes: len(losers)})
		}
	}

	if err := s.deleteKeys(ctx, s.ns.Repeaters, drop, "deleting duplicate repeater"); err != nil {
		return RepeaterResult{}, err
	}
	return result, nil
}

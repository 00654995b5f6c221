// Package catalog serves the read side of the dataset: coverage cells and
// repeater registrations from the key-value store, samples from the
// warehouse.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/kiranshivaraju/meshcover/internal/kv"
	"github.com/kiranshivaraju/meshcover/internal/store"
	"github.com/kiranshivaraju/meshcover/pkg/models"
	"golang.org/x/sync/errgroup"
)

// Catalog lists dataset contents.
type Catalog struct {
	coverage  kv.Namespace
	repeaters kv.Namespace
	store     store.Store
	fanOut    int
}

// New creates a Catalog. fanOut bounds concurrent value reads per page.
func New(coverage, repeaters kv.Namespace, st store.Store, fanOut int) *Catalog {
	if fanOut <= 0 {
		fanOut = 1
	}
	return &Catalog{coverage: coverage, repeaters: repeaters, store: st, fanOut: fanOut}
}

// ListCoverage returns every coverage cell together with its stored sample
// values. Cells whose metadata cannot be decoded are skipped.
func (c *Catalog) ListCoverage(ctx context.Context) ([]models.CoverageRecord, error) {
	out := []models.CoverageRecord{}
	seen := make(map[string]bool)

	err := kv.ListAll(ctx, c.coverage, func(page kv.Page) error {
		var keys []kv.Key
		for _, k := range page.Keys {
			if !seen[k.Name] {
				seen[k.Name] = true
				keys = append(keys, k)
			}
		}

		records := make([]*models.CoverageRecord, len(keys))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(c.fanOut)
		for i, k := range keys {
			g.Go(func() error {
				values, err := c.coverageValues(gctx, k.Name)
				if err != nil {
					return err
				}
				rec, err := models.CoverageFromMetadata(k.Name, k.Metadata, values)
				if err != nil {
					slog.Warn("skipping coverage with unreadable metadata", "key", k.Name, "error", err)
					return nil
				}
				records[i] = &rec
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		for _, r := range records {
			if r != nil {
				out = append(out, *r)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list coverage: %w", err)
	}
	return out, nil
}

// coverageValues reads the JSON array stored as a cell's value. A missing or
// unparseable value yields no samples.
func (c *Catalog) coverageValues(ctx context.Context, name string) ([]json.RawMessage, error) {
	raw, ok, err := c.coverage.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	if !ok || len(raw) == 0 {
		return nil, nil
	}
	var values []json.RawMessage
	if err := json.Unmarshal(raw, &values); err != nil {
		slog.Warn("ignoring unreadable coverage values", "key", name, "error", err)
		return nil, nil
	}
	return values, nil
}

// ListRepeaters returns every repeater registration in the key-value store.
func (c *Catalog) ListRepeaters(ctx context.Context) ([]models.RepeaterRecord, error) {
	out := []models.RepeaterRecord{}
	seen := make(map[string]bool)

	err := kv.ListAll(ctx, c.repeaters, func(page kv.Page) error {
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
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list repeaters: %w", err)
	}
	return out, nil
}

// ListSamples returns warehouse samples whose hash starts with prefix.
// An empty prefix matches every sample.
func (c *Catalog) ListSamples(ctx context.Context, prefix string) ([]*models.Sample, error) {
	samples, err := c.store.ListSamplesByPrefix(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list samples: %w", err)
	}
	return samples, nil
}

package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kiranshivaraju/meshcover/internal/kv"
	"github.com/kiranshivaraju/meshcover/pkg/models"
)

// MigrateArchive moves up to one batch of archive entries into the
// append-only sample_archive table.
func (s *Service) MigrateArchive(ctx context.Context) (MigrationResult, error) {
	res, err := migrate(ctx, s, s.ns.Archive,
		func(k kv.Key, now time.Time) (models.SampleArchive, error) {
			return models.ArchiveFromMetadata(k.Name, k.Metadata, now)
		},
		s.store.InsertArchive,
	)
	if err != nil {
		return MigrationResult{}, fmt.Errorf("migrate archive: %w", err)
	}
	return res, nil
}

// MigrateSamples moves up to one batch of queued samples into the samples
// table. Hashes already present in the table are left unchanged, so re-running
// after a partial failure never duplicates rows.
func (s *Service) MigrateSamples(ctx context.Context) (MigrationResult, error) {
	res, err := migrate(ctx, s, s.ns.Samples,
		func(k kv.Key, _ time.Time) (models.Sample, error) {
			return models.SampleFromMetadata(k.Name, k.Metadata)
		},
		s.store.InsertSamples,
	)
	if err != nil {
		return MigrationResult{}, fmt.Errorf("migrate samples: %w", err)
	}
	return res, nil
}

// migrate reads the first page of ns, converts keys to rows until the batch
// cap is reached, commits the rows in one transaction and only then deletes
// the migrated source keys one at a time. Keys whose metadata cannot be
// converted are logged with their raw metadata, then deleted and counted as
// discarded once the batch has committed. HasMore is set when the cap cut the
// page short or the listing has further pages.
func migrate[R any](
	ctx context.Context,
	s *Service,
	ns kv.Namespace,
	convert func(kv.Key, time.Time) (R, error),
	insert func(context.Context, []R) error,
) (MigrationResult, error) {
	now := s.now()
	result := MigrationResult{InsertTime: now}

	page, err := ns.List(ctx, "")
	if err != nil {
		return MigrationResult{}, err
	}

	var rows []R
	var migrated, discarded []string
	for _, k := range page.Keys {
		if len(rows) >= s.cfg.BatchCap {
			result.HasMore = true
			break
		}
		row, err := convert(k, now)
		if err != nil {
			slog.Warn("discarding unmigratable key",
				"key", k.Name,
				"metadata", string(k.Metadata),
				"error", err,
			)
			discarded = append(discarded, k.Name)
			continue
		}
		rows = append(rows, row)
		migrated = append(migrated, k.Name)
	}
	if !page.Complete() {
		result.HasMore = true
	}

	if len(rows) > 0 {
		if err := insert(ctx, rows); err != nil {
			return MigrationResult{}, err
		}
	}

	for _, name := range migrated {
		if err := ns.Delete(ctx, name); err != nil {
			return MigrationResult{}, fmt.Errorf("delete migrated key %s: %w", name, err)
		}
	}
	for _, name := range discarded {
		if err := ns.Delete(ctx, name); err != nil {
			return MigrationResult{}, fmt.Errorf("delete discarded key %s: %w", name, err)
		}
	}

	result.Migrated = len(migrated)
	result.Discarded = len(discarded)
	return result, nil
}

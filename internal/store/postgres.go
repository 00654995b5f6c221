package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/meshcover/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- API Keys ---

func (s *PostgresStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE key_prefix = $1 AND deleted_at IS NULL`, prefix)
	if err != nil {
		return nil, fmt.Errorf("get api key by prefix: %w", err)
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Scopes,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO api_keys (id, name, key_hash, key_prefix, scopes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		key.ID, key.Name, key.KeyHash, key.KeyPrefix, key.Scopes, key.CreatedAt, key.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

// --- Samples ---

func (s *PostgresStore) InsertArchive(ctx context.Context, rows []models.SampleArchive) error {
	if len(rows) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`INSERT INTO sample_archive (inserted_at, data) VALUES ($1, $2)`,
			r.InsertedAt, string(r.Data))
	}
	if err := s.commitBatch(ctx, batch); err != nil {
		return fmt.Errorf("insert archive: %w", err)
	}
	return nil
}

func (s *PostgresStore) InsertSamples(ctx context.Context, rows []models.Sample) error {
	if len(rows) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range rows {
		repeaters := r.Repeaters
		if repeaters == nil {
			repeaters = []string{}
		}
		batch.Queue(
			`INSERT INTO samples (hash, time, rssi, snr, observed, repeaters)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (hash) DO NOTHING`,
			r.Hash, r.Time, r.RSSI, r.SNR, r.Observed, repeaters)
	}
	if err := s.commitBatch(ctx, batch); err != nil {
		return fmt.Errorf("insert samples: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListSamplesByPrefix(ctx context.Context, prefix string) ([]*models.Sample, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT hash, time, rssi, snr, observed, repeaters
		 FROM samples WHERE hash LIKE $1 ESCAPE '\' ORDER BY hash`, likePrefix(prefix))
	if err != nil {
		return nil, fmt.Errorf("list samples: %w", err)
	}
	defer rows.Close()

	samples := []*models.Sample{}
	for rows.Next() {
		var smp models.Sample
		if err := rows.Scan(&smp.Hash, &smp.Time, &smp.RSSI, &smp.SNR, &smp.Observed, &smp.Repeaters); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		samples = append(samples, &smp)
	}
	return samples, rows.Err()
}

// --- Repeaters ---

func (s *PostgresStore) UpsertRepeater(ctx context.Context, r *models.Repeater) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO repeaters (id, hash, time, name, elevation)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id, hash) DO UPDATE SET
		   time = EXCLUDED.time,
		   name = EXCLUDED.name,
		   elevation = EXCLUDED.elevation`,
		r.ID, r.Hash, r.Time, r.Name, r.Elevation)
	if err != nil {
		return fmt.Errorf("upsert repeater: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetRepeater(ctx context.Context, id, hash string) (*models.Repeater, error) {
	var r models.Repeater
	err := s.pool.QueryRow(ctx,
		`SELECT id, hash, time, name, elevation FROM repeaters WHERE id = $1 AND hash = $2`, id, hash,
	).Scan(&r.ID, &r.Hash, &r.Time, &r.Name, &r.Elevation)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get repeater: %w", err)
	}
	return &r, nil
}

// commitBatch runs every queued statement inside one transaction: either all
// rows are committed or none are.
func (s *PostgresStore) commitBatch(ctx context.Context, batch *pgx.Batch) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return tx.SendBatch(ctx, batch).Close()
	})
}

// likePrefix escapes LIKE wildcards in prefix and appends %.
func likePrefix(prefix string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(prefix) + "%"
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}

package store_test

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/meshcover/internal/store"
	"github.com/kiranshivaraju/meshcover/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// migrationsDir returns the absolute path to the migrations directory.
func migrationsDir() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "..", "..", "migrations")
}

// setupTestDB spins up a Postgres container, runs migrations, and returns a pool.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("meshcover_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, pgContainer.Terminate(ctx))
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	err = store.RunMigrations(connStr, migrationsDir())
	require.NoError(t, err)

	// Re-running is a no-op.
	require.NoError(t, store.RunMigrations(connStr, migrationsDir()))

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	return pool
}

func countRows(t *testing.T, pool *pgxpool.Pool, table string) int {
	t.Helper()
	var n int
	require.NoError(t, pool.QueryRow(context.Background(), "SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func ptr(f float64) *float64 { return &f }

// --- API Key Tests ---

func TestAPIKey_CreateAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Microsecond)
	key := &models.APIKey{
		ID:        uuid.New(),
		Name:      "scheduler",
		KeyHash:   "bcrypt-hash-here",
		KeyPrefix: "mc_abcd1",
		Scopes:    []string{models.ScopeMaintenance},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, s.CreateAPIKey(ctx, key))

	keys, err := s.GetAPIKeyByPrefix(ctx, "mc_abcd1")
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, key.ID, keys[0].ID)
	assert.Equal(t, []string{models.ScopeMaintenance}, keys[0].Scopes)
	assert.Nil(t, keys[0].LastUsedAt)

	require.NoError(t, s.UpdateAPIKeyLastUsed(ctx, key.ID))
	keys, err = s.GetAPIKeyByPrefix(ctx, "mc_abcd1")
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.NotNil(t, keys[0].LastUsedAt)
}

func TestAPIKey_DuplicateID(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	now := time.Now().UTC()
	key := &models.APIKey{ID: uuid.New(), Name: "a", KeyHash: "h", KeyPrefix: "mc_aaaa1", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.CreateAPIKey(ctx, key))
	assert.ErrorIs(t, s.CreateAPIKey(ctx, key), store.ErrDuplicateKey)
}

// --- Sample Tests ---

func TestInsertSamples_IgnoresExistingHash(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	ts := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	rows := []models.Sample{
		{Hash: "c23nb62w", Time: ts, RSSI: ptr(-90), SNR: ptr(4.5), Observed: true, Repeaters: []string{"a1", "b2"}},
		{Hash: "c23nb62x", Time: ts},
	}
	require.NoError(t, s.InsertSamples(ctx, rows))

	// Second run with a changed value must neither duplicate nor overwrite.
	rows[0].RSSI = ptr(-10)
	require.NoError(t, s.InsertSamples(ctx, rows))
	assert.Equal(t, 2, countRows(t, pool, "samples"))

	got, err := s.ListSamplesByPrefix(ctx, "c23nb62w")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, -90.0, *got[0].RSSI)
	assert.Equal(t, []string{"a1", "b2"}, got[0].Repeaters)
	assert.True(t, got[0].Observed)
	assert.True(t, ts.Equal(got[0].Time))
}

func TestInsertSamples_Empty(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	require.NoError(t, s.InsertSamples(context.Background(), nil))
	assert.Equal(t, 0, countRows(t, pool, "samples"))
}

func TestListSamplesByPrefix(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	ts := time.Now().UTC()
	var rows []models.Sample
	for _, h := range []string{"c23nb62w", "c23nb6aa", "c23p0000", "9q8yyk8y"} {
		rows = append(rows, models.Sample{Hash: h, Time: ts})
	}
	require.NoError(t, s.InsertSamples(ctx, rows))

	got, err := s.ListSamplesByPrefix(ctx, "c23nb")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c23nb62w", got[0].Hash)
	assert.Equal(t, "c23nb6aa", got[1].Hash)

	all, err := s.ListSamplesByPrefix(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 4)

	none, err := s.ListSamplesByPrefix(ctx, "%")
	require.NoError(t, err)
	assert.Empty(t, none, "wildcards in the prefix are literal")
}

// --- Archive Tests ---

func TestInsertArchive_AppendsEveryRow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	now := time.Now().UTC()
	row := models.SampleArchive{InsertedAt: now, Data: json.RawMessage(`{"hash":"c23nb62w","rssi":-80}`)}
	require.NoError(t, s.InsertArchive(ctx, []models.SampleArchive{row, row}))
	require.NoError(t, s.InsertArchive(ctx, []models.SampleArchive{row}))
	assert.Equal(t, 3, countRows(t, pool, "sample_archive"))

	var hash string
	require.NoError(t, pool.QueryRow(ctx, `SELECT data->>'hash' FROM sample_archive LIMIT 1`).Scan(&hash))
	assert.Equal(t, "c23nb62w", hash)
}

func TestInsertArchive_BatchIsAtomic(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	rows := make([]models.SampleArchive, 0, 5)
	for i := 0; i < 4; i++ {
		rows = append(rows, models.SampleArchive{InsertedAt: time.Now().UTC(), Data: json.RawMessage(fmt.Sprintf(`{"i":%d}`, i))})
	}
	rows = append(rows, models.SampleArchive{InsertedAt: time.Now().UTC(), Data: json.RawMessage(`{not json`)})

	require.Error(t, s.InsertArchive(ctx, rows))
	assert.Equal(t, 0, countRows(t, pool, "sample_archive"), "a failing row rolls back the whole batch")
}

// --- Repeater Tests ---

func TestUpsertRepeater_ReplacesExisting(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	first := &models.Repeater{ID: "ab12", Hash: "c23nb62w", Time: time.Now().UTC().Truncate(time.Microsecond), Name: "Hilltop", Elevation: ptr(120)}
	require.NoError(t, s.UpsertRepeater(ctx, first))

	second := &models.Repeater{ID: "ab12", Hash: "c23nb62w", Time: first.Time.Add(time.Hour), Name: "Hilltop II"}
	require.NoError(t, s.UpsertRepeater(ctx, second))
	assert.Equal(t, 1, countRows(t, pool, "repeaters"))

	got, err := s.GetRepeater(ctx, "ab12", "c23nb62w")
	require.NoError(t, err)
	assert.Equal(t, "Hilltop II", got.Name)
	assert.Nil(t, got.Elevation, "replace overwrites every column")
	assert.True(t, second.Time.Equal(got.Time))
}

func TestGetRepeater_NotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	_, err := s.GetRepeater(context.Background(), "nope", "c23nb62w")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/meshcover/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
	CreateAPIKey(ctx context.Context, key *models.APIKey) error

	// InsertArchive appends all rows in one transaction.
	InsertArchive(ctx context.Context, rows []models.SampleArchive) error
	// InsertSamples inserts all rows in one transaction, skipping hashes
	// that already exist.
	InsertSamples(ctx context.Context, rows []models.Sample) error
	ListSamplesByPrefix(ctx context.Context, prefix string) ([]*models.Sample, error)

	// UpsertRepeater inserts or replaces the row for (id, hash).
	UpsertRepeater(ctx context.Context, r *models.Repeater) error
	GetRepeater(ctx context.Context, id, hash string) (*models.Repeater, error)
}

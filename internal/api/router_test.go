package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/meshcover/internal/api"
	mw "github.com/kiranshivaraju/meshcover/internal/api/middleware"
	"github.com/kiranshivaraju/meshcover/internal/store"
	"github.com/kiranshivaraju/meshcover/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- stub store that returns empty results (all auth fails) ---

type stubStore struct{}

func (s *stubStore) Ping(_ context.Context) error { return nil }
func (s *stubStore) GetAPIKeyByPrefix(_ context.Context, _ string) ([]*models.APIKey, error) {
	return nil, nil
}
func (s *stubStore) UpdateAPIKeyLastUsed(_ context.Context, _ uuid.UUID) error { return nil }
func (s *stubStore) CreateAPIKey(_ context.Context, _ *models.APIKey) error     { return nil }
func (s *stubStore) InsertArchive(_ context.Context, _ []models.SampleArchive) error {
	return nil
}
func (s *stubStore) InsertSamples(_ context.Context, _ []models.Sample) error { return nil }
func (s *stubStore) ListSamplesByPrefix(_ context.Context, _ string) ([]*models.Sample, error) {
	return nil, nil
}
func (s *stubStore) UpsertRepeater(_ context.Context, _ *models.Repeater) error { return nil }
func (s *stubStore) GetRepeater(_ context.Context, _, _ string) (*models.Repeater, error) {
	return nil, store.ErrNotFound
}

// --- stub counter ---

type stubCounter struct{}

func (c *stubCounter) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	return 1, nil
}

// --- router tests ---

func newTestRouter() http.Handler {
	return api.NewRouter(api.Dependencies{
		Auth:      mw.NewAuth(&stubStore{}),
		RateLimit: mw.NewRateLimit(&stubCounter{}, 60),
		HealthHandler: func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		},
	})
}

func TestRouter_HealthEndpoint_Public(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_ProtectedEndpoints_RequireAuth(t *testing.T) {
	router := newTestRouter()

	endpoints := []struct {
		method string
		path   string
	}{
		{"POST", "/api/v1/repeaters"},
		{"POST", "/api/v1/maintenance/clean-up?op=coverage"},
		{"POST", "/api/v1/maintenance/db-migrate?op=samples"},
	}

	for _, ep := range endpoints {
		t.Run(ep.method+" "+ep.path, func(t *testing.T) {
			req := httptest.NewRequest(ep.method, ep.path, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)

			var body map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			errObj := body["error"].(map[string]any)
			assert.Equal(t, "INVALID_TOKEN", errObj["code"])
		})
	}
}

func TestRouter_ListEndpoints_Public(t *testing.T) {
	router := newTestRouter()

	for _, path := range []string{"/api/v1/coverage", "/api/v1/repeaters", "/api/v1/samples?p=c2"} {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest("GET", path, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			// Handlers are not wired in this router, so reaching them yields 501, not 401.
			assert.Equal(t, http.StatusNotImplemented, w.Code)
		})
	}
}

func TestRouter_NotFound(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest("GET", "/api/v1/nonexistent", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

// Verify unused interfaces are satisfied
var _ store.Store = (*stubStore)(nil)
var _ mw.Counter = (*stubCounter)(nil)

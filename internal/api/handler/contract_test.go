package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/meshcover/internal/api"
	"github.com/kiranshivaraju/meshcover/internal/api/handler"
	mw "github.com/kiranshivaraju/meshcover/internal/api/middleware"
	"github.com/kiranshivaraju/meshcover/internal/api/response"
	"github.com/kiranshivaraju/meshcover/internal/catalog"
	"github.com/kiranshivaraju/meshcover/internal/config"
	"github.com/kiranshivaraju/meshcover/internal/elevation"
	"github.com/kiranshivaraju/meshcover/internal/kv/mock"
	"github.com/kiranshivaraju/meshcover/internal/maintenance"
	"github.com/kiranshivaraju/meshcover/internal/registry"
	"github.com/kiranshivaraju/meshcover/internal/store"
	"github.com/kiranshivaraju/meshcover/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// ─── test fixtures ───────────────────────────────────────────────────────────

var (
	testMaintKey = "mc_maint_contract_key_1234567890"
	testWriteKey = "mc_write_contract_key_1234567890"
)

func hashOf(raw string) string {
	h, _ := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.MinCost)
	return string(h)
}

// ─── mock store ──────────────────────────────────────────────────────────────

type mockStore struct {
	mu        sync.Mutex
	keys      []*models.APIKey
	samples   map[string]models.Sample
	archive   []models.SampleArchive
	repeaters map[string]*models.Repeater
}

func newMockStore() *mockStore {
	return &mockStore{
		keys: []*models.APIKey{
			{ID: uuid.New(), Name: "scheduler", KeyHash: hashOf(testMaintKey), KeyPrefix: testMaintKey[:8], Scopes: []string{models.ScopeMaintenance}},
			{ID: uuid.New(), Name: "firmware", KeyHash: hashOf(testWriteKey), KeyPrefix: testWriteKey[:8], Scopes: []string{models.ScopeWrite}},
		},
		samples:   make(map[string]models.Sample),
		repeaters: make(map[string]*models.Repeater),
	}
}

func (s *mockStore) Ping(_ context.Context) error { return nil }
func (s *mockStore) GetAPIKeyByPrefix(_ context.Context, prefix string) ([]*models.APIKey, error) {
	var out []*models.APIKey
	for _, k := range s.keys {
		if k.KeyPrefix == prefix {
			out = append(out, k)
		}
	}
	return out, nil
}
func (s *mockStore) UpdateAPIKeyLastUsed(_ context.Context, _ uuid.UUID) error { return nil }
func (s *mockStore) CreateAPIKey(_ context.Context, key *models.APIKey) error {
	s.keys = append(s.keys, key)
	return nil
}
func (s *mockStore) InsertArchive(_ context.Context, rows []models.SampleArchive) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.archive = append(s.archive, rows...)
	return nil
}
func (s *mockStore) InsertSamples(_ context.Context, rows []models.Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		if _, ok := s.samples[r.Hash]; !ok {
			s.samples[r.Hash] = r
		}
	}
	return nil
}
func (s *mockStore) ListSamplesByPrefix(_ context.Context, prefix string) ([]*models.Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*models.Sample{}
	for h, smp := range s.samples {
		if strings.HasPrefix(h, prefix) {
			cp := smp
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hash < out[j].Hash })
	return out, nil
}
func (s *mockStore) UpsertRepeater(_ context.Context, r *models.Repeater) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	s.repeaters[r.ID+"/"+r.Hash] = &cp
	return nil
}
func (s *mockStore) GetRepeater(_ context.Context, id, hash string) (*models.Repeater, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.repeaters[id+"/"+hash]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, store.ErrNotFound
}

var _ store.Store = (*mockStore)(nil)

// ─── mock counter ────────────────────────────────────────────────────────────

type mockCounter struct {
	mu       sync.Mutex
	counters map[string]int64
}

func (c *mockCounter) IncrWithExpiry(_ context.Context, key string, _ time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters[key]++
	return c.counters[key], nil
}

// ─── test harness ────────────────────────────────────────────────────────────

type testServer struct {
	server    *httptest.Server
	store     *mockStore
	repeaters *mock.Namespace
	samples   *mock.Namespace
	archive   *mock.Namespace
	coverage  *mock.Namespace
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	topo := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"results":[{"elevation":42.5}],"status":"OK"}`))
	}))
	t.Cleanup(topo.Close)

	ts := &testServer{
		store:     newMockStore(),
		repeaters: mock.NewNamespace(),
		samples:   mock.NewNamespace(),
		archive:   mock.NewNamespace(),
		coverage:  mock.NewNamespace(),
	}

	maint := maintenance.NewService(maintenance.Namespaces{
		Coverage:  ts.coverage,
		Repeaters: ts.repeaters,
		Samples:   ts.samples,
		Archive:   ts.archive,
	}, ts.store, config.MaintenanceConfig{
		BatchCap:          500,
		StaleAfter:        10 * 24 * time.Hour,
		OverlapMiles:      0.25,
		DeleteConcurrency: 4,
	})
	reg := registry.New(ts.store, elevation.NewHTTPClient(topo.URL, 5*time.Second))
	cat := catalog.New(ts.coverage, ts.repeaters, ts.store, 4)

	deps := api.Dependencies{
		Auth:      mw.NewAuth(ts.store),
		RateLimit: mw.NewRateLimit(&mockCounter{counters: make(map[string]int64)}, 10), // low limit for rate-limit tests

		HealthHandler: func(w http.ResponseWriter, _ *http.Request) {
			response.JSON(w, map[string]string{"status": "ok"})
		},
		ListCoverage:   handler.NewListCoverageHandler(cat),
		ListRepeaters:  handler.NewListRepeatersHandler(cat),
		ListSamples:    handler.NewListSamplesHandler(cat),
		PutRepeater:    handler.NewPutRepeaterHandler(reg),
		CleanUpHandler: handler.NewCleanUpHandler(maint),
		MigrateHandler: handler.NewMigrateHandler(maint),
	}

	ts.server = httptest.NewServer(api.NewRouter(deps))
	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, key string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, ts.server.URL+path, &buf)
	require.NoError(t, err)
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func repeaterMeta(id string, lat, lon float64, observed time.Time) string {
	return fmt.Sprintf(`{"id":%q,"name":"Repeater %s","lat":%v,"lon":%v,"time":%d}`, id, id, lat, lon, observed.UnixMilli())
}

// ─── contract tests ──────────────────────────────────────────────────────────

func TestContract_Health(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, http.MethodGet, "/api/v1/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["data"].(map[string]any)["status"])
}

func TestContract_MaintenanceRequiresAuth(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, http.MethodPost, "/api/v1/maintenance/clean-up?op=coverage", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "INVALID_TOKEN", body["error"].(map[string]any)["code"])
}

func TestContract_MaintenanceRequiresScope(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, http.MethodPost, "/api/v1/maintenance/db-migrate?op=samples", testWriteKey, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "FORBIDDEN", body["error"].(map[string]any)["code"])

	resp, _ = ts.do(t, http.MethodPost, "/api/v1/repeaters", testMaintKey, map[string]any{"lat": 1, "lon": 1, "id": "ab"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestContract_UnknownOp(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, http.MethodPost, "/api/v1/maintenance/clean-up?op=everything", testMaintKey, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_OP", body["error"].(map[string]any)["code"])
}

func TestContract_CleanRepeatersThenList(t *testing.T) {
	ts := newTestServer(t)
	now := time.Now()
	ts.repeaters.Seed("ab12-a", repeaterMeta("ab12", 47.6000, -122.3000, now.Add(-3*time.Hour)), nil)
	ts.repeaters.Seed("ab12-b", repeaterMeta("ab12", 47.6001, -122.3001, now.Add(-1*time.Hour)), nil)
	ts.repeaters.Seed("ab12-c", repeaterMeta("ab12", 47.6002, -122.3000, now.Add(-2*time.Hour)), nil)
	ts.repeaters.Seed("cd34", repeaterMeta("cd34", 37.7, -122.4, now.Add(-20*24*time.Hour)), nil)

	resp, body := ts.do(t, http.MethodPost, "/api/v1/maintenance/clean-up?op=repeaters", testMaintKey, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := body["data"].(map[string]any)
	assert.Equal(t, float64(1), data["deleted_stale_repeaters"])
	assert.Equal(t, float64(2), data["deleted_dupe_repeaters"])

	resp, body = ts.do(t, http.MethodGet, "/api/v1/repeaters", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := body["data"].([]any)
	require.Len(t, list, 1)
	assert.Equal(t, "ab12-b", list[0].(map[string]any)["key"])
}

func TestContract_CleanCoverage(t *testing.T) {
	ts := newTestServer(t)
	ts.coverage.Seed("c23nb6", `{"heard":1,"lastHeard":1700000000000}`, []byte(`[]`))
	ts.coverage.Seed("bogus!", `{}`, nil)

	resp, body := ts.do(t, http.MethodPost, "/api/v1/maintenance/clean-up?op=coverage", testMaintKey, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["data"].(map[string]any)["coverage_out_of_range"])

	_, body = ts.do(t, http.MethodGet, "/api/v1/coverage", "", nil)
	assert.Equal(t, float64(1), body["meta"].(map[string]any)["total"])
}

func TestContract_MigrateSamplesThenList(t *testing.T) {
	ts := newTestServer(t)
	for i := 0; i < 3; i++ {
		ts.samples.Seed(fmt.Sprintf("c23nb6%d", i), `{"time":1700000000000,"rssi":-90,"observed":true,"path":["ab"]}`, nil)
	}

	resp, body := ts.do(t, http.MethodPost, "/api/v1/maintenance/db-migrate?op=samples", testMaintKey, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := body["data"].(map[string]any)
	assert.Equal(t, float64(3), data["migrated"])
	assert.Equal(t, false, data["has_more"])
	assert.Equal(t, float64(0), data["discarded"])
	assert.Equal(t, 0, ts.samples.Len())

	_, body = ts.do(t, http.MethodGet, "/api/v1/samples?p=c23nb", "", nil)
	list := body["data"].([]any)
	require.Len(t, list, 3)
	assert.Equal(t, "c23nb60", list[0].(map[string]any)["hash"])
}

func TestContract_MigrateArchive(t *testing.T) {
	ts := newTestServer(t)
	ts.archive.Seed("c23nb62w", `{"rssi":-101}`, nil)

	resp, body := ts.do(t, http.MethodPost, "/api/v1/maintenance/db-migrate?op=archive", testMaintKey, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["data"].(map[string]any)["migrated"])
	require.Len(t, ts.store.archive, 1)
	assert.JSONEq(t, `{"hash":"c23nb62w","rssi":-101}`, string(ts.store.archive[0].Data))
}

func TestContract_PutRepeaterLooksUpElevation(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, http.MethodPost, "/api/v1/repeaters", testWriteKey, map[string]any{
		"lat": 47.6062, "lon": -122.3321, "id": "AB12", "name": "Hilltop",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	data := body["data"].(map[string]any)
	assert.Equal(t, "ab12", data["id"])
	assert.Equal(t, 42.5, data["elevation"])
	assert.Len(t, data["hash"], 8)
}

func TestContract_PutRepeaterInvalidLocation(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, http.MethodPost, "/api/v1/repeaters", testWriteKey, map[string]any{
		"lat": 123, "lon": 0, "id": "ab12",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_LOCATION", body["error"].(map[string]any)["code"])
	assert.Empty(t, ts.store.repeaters)
}

func TestContract_RateLimit(t *testing.T) {
	ts := newTestServer(t)

	for i := 0; i < 10; i++ {
		resp, _ := ts.do(t, http.MethodPost, "/api/v1/maintenance/clean-up?op=samples", testMaintKey, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp, body := ts.do(t, http.MethodPost, "/api/v1/maintenance/clean-up?op=samples", testMaintKey, nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", body["error"].(map[string]any)["code"])
}

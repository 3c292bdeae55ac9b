package intel_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nappa85/ingress-intel-go/pkg/intel"
)

// scanService serves getEntities with one synthetic portal per tile and can
// be told to soft-fail specific tiles a number of times.
type scanService struct {
	t *testing.T

	mu       sync.Mutex
	hits     map[string]int
	failures map[string]int
	status   int
}

func newScanService(t *testing.T) (*scanService, *intel.Client) {
	svc := &scanService{
		t:        t,
		hits:     make(map[string]int),
		failures: make(map[string]int),
	}
	srv := httptest.NewServer(svc.handler())
	t.Cleanup(srv.Close)

	httpClient := srv.Client()
	httpClient.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	client, err := intel.New(intel.Config{
		HTTPClient: httpClient,
		IntelURL:   srv.URL,
	})
	require.NoError(t, err)
	client.AddCookie("csrftoken", "scan-token")
	return svc, client
}

func (s *scanService) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><head><script src="/jsc/gen_dashboard_%s.js"></script></head><body></body></html>`, testVersion)
	})
	mux.HandleFunc("/r/getEntities", s.getEntities)
	return mux
}

func (s *scanService) getEntities(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TileKeys []string `json:"tileKeys"`
		V        string   `json:"v"`
	}
	require.NoError(s.t, json.NewDecoder(r.Body).Decode(&body))
	assert.Equal(s.t, testVersion, body.V)

	s.mu.Lock()
	status := s.status
	tiles := make(map[string]any, len(body.TileKeys))
	for _, key := range body.TileKeys {
		s.hits[key]++
		if s.failures[key] > 0 {
			s.failures[key]--
			tiles[key] = map[string]any{"error": "TIMEOUT"}
			continue
		}
		tiles[key] = map[string]any{
			"gameEntities": []any{
				[]any{"guid-" + key, 1700000000000, []any{"p", "E", 45563602, 12431250}},
			},
		}
	}
	s.mu.Unlock()

	if status != 0 {
		http.Error(w, "boom", status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	require.NoError(s.t, json.NewEncoder(w).Encode(map[string]any{
		"result": map[string]any{"map": tiles},
	}))
}

func (s *scanService) failTile(key string, times int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[key] = times
}

func (s *scanService) hitCount(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[key]
}

// Bounding box around the Venice lagoon fixtures, a handful of tiles wide.
const (
	scanFromLat = 45.555
	scanFromLng = 12.420
	scanToLat   = 45.570
	scanToLng   = 12.445
)

func TestGetEntitiesInRange_VisitsEveryTileOnce(t *testing.T) {
	svc, client := newScanService(t)

	entities, err := client.GetEntitiesInRange(context.Background(),
		scanFromLat, scanFromLng, scanToLat, scanToLng, 3)
	require.NoError(t, err)

	keys := intel.TileRange(scanFromLat, scanFromLng, scanToLat, scanToLng)
	require.NotEmpty(t, keys)
	assert.Len(t, entities, len(keys))

	got := make(map[string]bool, len(entities))
	for _, e := range entities {
		got[e.GUID] = true
	}
	for _, key := range keys {
		assert.True(t, got["guid-"+key.String()], "missing entity for tile %s", key)
		assert.Equal(t, 1, svc.hitCount(key.String()), "tile %s fetched more than once", key)
	}
}

func TestGetEntitiesInRange_RetriesSoftFailures(t *testing.T) {
	svc, client := newScanService(t)
	keys := intel.TileRange(scanFromLat, scanFromLng, scanToLat, scanToLng)
	flaky := keys[0].String()
	svc.failTile(flaky, 1)

	entities, err := client.GetEntitiesInRange(context.Background(),
		scanFromLat, scanFromLng, scanToLat, scanToLng, 2)
	require.NoError(t, err)

	assert.Len(t, entities, len(keys))
	assert.Equal(t, 2, svc.hitCount(flaky))
}

func TestGetEntitiesInRange_DropsTileAfterAttemptBudget(t *testing.T) {
	svc, client := newScanService(t)
	keys := intel.TileRange(scanFromLat, scanFromLng, scanToLat, scanToLng)
	dead := keys[0].String()
	svc.failTile(dead, 100)

	entities, err := client.GetEntitiesInRange(context.Background(),
		scanFromLat, scanFromLng, scanToLat, scanToLng, 2)
	require.NoError(t, err)

	// The unfetchable tile is dropped, everything else still arrives.
	assert.Len(t, entities, len(keys)-1)
	assert.Equal(t, 3, svc.hitCount(dead))
	for _, e := range entities {
		assert.NotEqual(t, "guid-"+dead, e.GUID)
	}
}

func TestGetEntitiesInRange_TransportErrorAborts(t *testing.T) {
	svc, client := newScanService(t)
	svc.mu.Lock()
	svc.status = http.StatusInternalServerError
	svc.mu.Unlock()

	_, err := client.GetEntitiesInRange(context.Background(),
		scanFromLat, scanFromLng, scanToLat, scanToLng, 2)
	require.Error(t, err)

	var httpErr *intel.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusInternalServerError, httpErr.StatusCode)
}

func TestGetEntitiesInRange_CancelledContext(t *testing.T) {
	_, client := newScanService(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.GetEntitiesInRange(ctx,
		scanFromLat, scanFromLng, scanToLat, scanToLng, 2)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGetEntitiesInRange_InvalidCoordinates(t *testing.T) {
	_, client := newScanService(t)

	_, err := client.GetEntitiesInRange(context.Background(), 95, 0, 45, 12, 2)
	require.Error(t, err)
	_, err = client.GetEntitiesInRange(context.Background(), 45, 12, 45, 200, 2)
	require.Error(t, err)
}

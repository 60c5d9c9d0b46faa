package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geowatch/zonewatch-go/internal/geo"
)

func testBox() geo.BBox {
	return geo.BoundingBoxAround(50.0, 30.0, 0.05)
}

// fakeAPI is a minimal Sentinel-Hub-shaped test server.
type fakeAPI struct {
	tokenCalls  int
	searchCalls int
	fetchCalls  int
	features    []map[string]any
	pixels      []byte
	failSearch  bool
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(tokenPath, func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls++
		if err := r.ParseForm(); err != nil || r.Form.Get("client_id") == "" {
			http.Error(w, "missing client_id", http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": fmt.Sprintf("token-%d", f.tokenCalls),
			"expires_in":   3600,
		})
	})
	mux.HandleFunc(catalogSearchPath, func(w http.ResponseWriter, r *http.Request) {
		f.searchCalls++
		if r.Header.Get("Authorization") == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if f.failSearch {
			http.Error(w, "upstream exploded", http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"features": f.features})
	})
	mux.HandleFunc(processPath, func(w http.ResponseWriter, r *http.Request) {
		f.fetchCalls++
		w.Header().Set("Content-Type", "image/png")
		w.Write(f.pixels)
	})
	return mux
}

func newTestClient(t *testing.T, api *fakeAPI, opts ...SentinelOption) *SentinelClient {
	srv := httptest.NewServer(api.handler())
	t.Cleanup(srv.Close)

	opts = append([]SentinelOption{WithBaseURL(srv.URL), WithRetryAttempts(1)}, opts...)
	return NewSentinelClient("client-id", "client-secret", opts...)
}

func sceneFeature(id, datetime string, cloudCover float64) map[string]any {
	return map[string]any{
		"id":         id,
		"collection": DefaultCollection,
		"properties": map[string]any{
			"datetime":       datetime,
			"eo:cloud_cover": cloudCover,
			"gsd":            10.0,
		},
	}
}

func TestAuthenticateMissingCredentials(t *testing.T) {
	client := NewSentinelClient("", "")

	ok, err := client.Authenticate(context.Background())

	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, client.Configured())
}

func TestAuthenticateIsIdempotent(t *testing.T) {
	api := &fakeAPI{}
	client := newTestClient(t, api)
	ctx := context.Background()

	ok, err := client.Authenticate(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.Authenticate(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, 1, api.tokenCalls)
}

func TestAuthenticateServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)

	client := NewSentinelClient("id", "secret", WithBaseURL(srv.URL))

	_, err := client.Authenticate(context.Background())
	require.Error(t, err)

	var authErr *AuthError
	assert.ErrorAs(t, err, &authErr)
}

func TestSearchLatestScene(t *testing.T) {
	api := &fakeAPI{
		features: []map[string]any{sceneFeature("S2A_20240615", "2024-06-15T10:30:00Z", 12.5)},
	}
	client := newTestClient(t, api)

	scene, err := client.SearchLatestScene(context.Background(), testBox(), 30, 20)
	require.NoError(t, err)
	require.NotNil(t, scene)

	assert.Equal(t, "S2A_20240615", scene.ID)
	assert.Equal(t, DefaultCollection, scene.Collection)
	assert.Equal(t, time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC), scene.SensedDate)
	assert.Equal(t, 12.5, scene.CloudCoverPercent)
	assert.Equal(t, "10m", scene.Resolution)
	assert.NotEmpty(t, scene.RawMetadata)
}

func TestSearchLatestSceneNoCandidate(t *testing.T) {
	api := &fakeAPI{}
	client := newTestClient(t, api)

	scene, err := client.SearchLatestScene(context.Background(), testBox(), 30, 20)

	require.NoError(t, err)
	assert.Nil(t, scene)
}

func TestSearchLatestSceneServerFailure(t *testing.T) {
	api := &fakeAPI{failSearch: true}
	client := newTestClient(t, api)

	_, err := client.SearchLatestScene(context.Background(), testBox(), 30, 20)
	require.Error(t, err)

	var searchErr *SearchError
	assert.ErrorAs(t, err, &searchErr)
}

func TestSearchLatestSceneUnconfigured(t *testing.T) {
	client := NewSentinelClient("", "")

	scene, err := client.SearchLatestScene(context.Background(), testBox(), 30, 20)

	require.NoError(t, err)
	assert.Nil(t, scene)
}

func TestFetchScenePixels(t *testing.T) {
	pixels := []byte{0x89, 'P', 'N', 'G', 1, 2, 3}
	api := &fakeAPI{pixels: pixels}
	client := newTestClient(t, api)

	scene := &Scene{ID: "S2A_20240615", SensedDate: time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)}
	data, err := client.FetchScenePixels(context.Background(), scene, testBox(), 512)

	require.NoError(t, err)
	assert.Equal(t, pixels, data)
	assert.Equal(t, 1, api.fetchCalls)
}

func TestFetchScenePixelsEmptyResponse(t *testing.T) {
	api := &fakeAPI{pixels: nil}
	client := newTestClient(t, api)

	scene := &Scene{ID: "s", SensedDate: time.Now()}
	_, err := client.FetchScenePixels(context.Background(), scene, testBox(), 512)
	require.Error(t, err)

	var fetchErr *FetchError
	assert.ErrorAs(t, err, &fetchErr)
}

func TestDisabledClient(t *testing.T) {
	client := NewDisabled()
	ctx := context.Background()

	assert.False(t, client.Configured())

	ok, err := client.Authenticate(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	scene, err := client.SearchLatestScene(ctx, testBox(), 30, 20)
	require.NoError(t, err)
	assert.Nil(t, scene)

	_, err = client.FetchScenePixels(ctx, &Scene{}, testBox(), 512)
	assert.Error(t, err)
}

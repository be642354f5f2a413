package metadata

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, tracks map[string]TrackMetadata) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/track/", func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Path[len("/track/"):]
		meta, ok := tracks[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(meta)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPFetcherResolvesTrack(t *testing.T) {
	srv := newTestService(t, map[string]TrackMetadata{
		"ext-1": {
			Name:         "Yoya",
			Artist:       "Machina",
			AudioPreview: "https://cdn.example/yoya.mp3",
			ImageURL:     "https://cdn.example/yoya.jpg",
			Explicit:     false,
		},
	})

	f := &HTTPFetcher{BaseURL: srv.URL, Client: srv.Client()}
	meta, err := f.Fetch(context.Background(), "ext-1")
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, "Yoya", meta.Name)
	assert.Equal(t, "ext-1", meta.ExternalID, "external id backfilled when service omits it")
}

func TestHTTPFetcherMissingTrackIsNotAnError(t *testing.T) {
	srv := newTestService(t, nil)

	f := &HTTPFetcher{BaseURL: srv.URL, Client: srv.Client()}
	meta, err := f.Fetch(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, meta)
}

func TestHTTPFetcherUnplayableMetadataDropped(t *testing.T) {
	srv := newTestService(t, map[string]TrackMetadata{
		"ext-2": {Name: "Silent", Artist: "Nobody"}, // no audio preview
	})

	f := &HTTPFetcher{BaseURL: srv.URL, Client: srv.Client()}
	meta, err := f.Fetch(context.Background(), "ext-2")
	require.NoError(t, err)
	assert.Nil(t, meta)
}

func TestHTTPFetcherServerErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := &HTTPFetcher{BaseURL: srv.URL, Client: srv.Client()}
	_, err := f.Fetch(context.Background(), "ext-3")
	assert.Error(t, err)
}

func TestFetchAllWarnsAndContinues(t *testing.T) {
	srv := newTestService(t, map[string]TrackMetadata{
		"good": {Name: "Good", AudioPreview: "https://cdn.example/good.mp3"},
	})

	f := &HTTPFetcher{BaseURL: srv.URL, Client: srv.Client()}
	got := FetchAll(context.Background(), f, []string{"good", "missing"})
	require.Len(t, got, 1)
	assert.Equal(t, "Good", got["good"].Name)
}

// internal/metadata/fetcher.go
package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// TrackMetadata is the playback snapshot for one track: everything a room
// needs to play it without touching the provider again.
type TrackMetadata struct {
	ExternalID   string `json:"external_id"`
	Name         string `json:"name"`
	Artist       string `json:"artist"`
	AudioPreview string `json:"audio_preview"`
	ImageURL     string `json:"image_url"`
	BaseColor    string `json:"base_color"`
	Explicit     bool   `json:"explicit"`
}

// Fetcher resolves a track's external id to its playback metadata. A nil
// result with nil error means the provider has no preview for this track;
// callers treat that as a skippable round, not a failure.
type Fetcher interface {
	Fetch(ctx context.Context, externalID string) (*TrackMetadata, error)
}

// HTTPFetcher queries a metadata service over HTTP. The service answers
// GET {base}/track/{externalID} with a TrackMetadata JSON body.
type HTTPFetcher struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPFetcher reads METADATA_SERVICE_URL (default http://localhost:8090).
func NewHTTPFetcher() *HTTPFetcher {
	base := os.Getenv("METADATA_SERVICE_URL")
	if base == "" {
		base = "http://localhost:8090"
	}
	return &HTTPFetcher{
		BaseURL: base,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Fetch resolves one track. 404 maps to (nil, nil): the track exists in the
// catalog but the provider has nothing playable for it.
func (f *HTTPFetcher) Fetch(ctx context.Context, externalID string) (*TrackMetadata, error) {
	u := fmt.Sprintf("%s/track/%s", f.BaseURL, url.PathEscape(externalID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build metadata request: %w", err)
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("metadata request for %s failed: %w", externalID, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, nil
	default:
		return nil, fmt.Errorf("metadata service returned %d for %s", resp.StatusCode, externalID)
	}

	var meta TrackMetadata
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return nil, fmt.Errorf("failed to decode metadata for %s: %w", externalID, err)
	}
	if meta.AudioPreview == "" {
		// Unplayable metadata is as good as none.
		return nil, nil
	}
	if meta.ExternalID == "" {
		meta.ExternalID = externalID
	}
	return &meta, nil
}

// FetchAll resolves a batch of external ids, dropping tracks whose metadata is
// missing rather than failing the batch. Room creation warns and continues so
// one dead track never blocks a room.
func FetchAll(ctx context.Context, f Fetcher, externalIDs []string) map[string]*TrackMetadata {
	out := make(map[string]*TrackMetadata, len(externalIDs))
	for _, id := range externalIDs {
		meta, err := f.Fetch(ctx, id)
		if err != nil {
			logrus.Warnf("metadata fetch for %s failed, continuing: %v", id, err)
			continue
		}
		if meta == nil {
			logrus.Warnf("no playable metadata for %s, continuing", id)
			continue
		}
		out[id] = meta
	}
	return out
}

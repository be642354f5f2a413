// internal/handlers/room.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/whowillhear/server/internal/database"
	"github.com/whowillhear/server/internal/metadata"
	"github.com/whowillhear/server/internal/models"
	"github.com/whowillhear/server/internal/room"
)

// Room creation bounds. Both the playlist length and the per-round clock are
// fixed at creation and must land in [3, 30].
const (
	MinRoomLimit = 3
	MaxRoomLimit = 30

	MinSongDurationSec = 3
	MaxSongDurationSec = 30
)

type createRoomRequest struct {
	Limit        int    `json:"limit"`
	SongDuration int    `json:"song_duration"`
	Password     string `json:"password"`
}

// CreateRoomHandler builds a room end to end: the row, the host's seat, a
// random playlist, and the playback metadata snapshot, all before anyone can
// join. Tracks whose metadata cannot be resolved are dropped with a warning
// rather than failing the room.
func CreateRoomHandler(rs *RoomServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req createRoomRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid payload", http.StatusBadRequest)
			return
		}
		if req.Limit < MinRoomLimit || req.Limit > MaxRoomLimit {
			http.Error(w, "limit must be between 3 and 30", http.StatusBadRequest)
			return
		}
		if req.SongDuration < MinSongDurationSec || req.SongDuration > MaxSongDurationSec {
			http.Error(w, "song_duration must be between 3 and 30", http.StatusBadRequest)
			return
		}

		hostID, err := EnsureGuestUser(w, r)
		if err != nil {
			logrus.Errorf("failed to resolve host user: %v", err)
			http.Error(w, "failed to resolve user", http.StatusInternalServerError)
			return
		}

		ctx := r.Context()
		rec := &models.Room{
			HostID:       hostID,
			Limit:        req.Limit,
			SongDuration: req.SongDuration,
			Password:     req.Password,
			Status:       string(room.StatusInitializing),
		}
		if err := database.InsertRoom(ctx, rec); err != nil {
			logrus.Errorf("failed to insert room: %v", err)
			http.Error(w, "failed to create room", http.StatusInternalServerError)
			return
		}

		host := &models.Participant{RoomID: rec.ID, UserID: hostID}
		if err := database.InsertParticipant(ctx, host); err != nil {
			logrus.Errorf("room %d: failed to seat host: %v", rec.ID, err)
			http.Error(w, "failed to create room", http.StatusInternalServerError)
			return
		}

		if err := populateRoomTracks(ctx, rs.Fetcher, rec); err != nil {
			failRoom(ctx, rec)
			http.Error(w, "failed to load tracks for room", http.StatusInternalServerError)
			return
		}

		if err := database.UpdateRoomStatus(ctx, rec.ID, string(room.StatusInitializing), string(room.StatusLobby)); err != nil {
			logrus.Errorf("room %d: failed to open lobby: %v", rec.ID, err)
			http.Error(w, "failed to create room", http.StatusInternalServerError)
			return
		}
		rec.Status = string(room.StatusLobby)
		if err := rs.Broadcaster.SaveSnapshot(ctx, rec.ID, rec.Status, nil); err != nil {
			logrus.Warnf("room %d: snapshot save failed: %v", rec.ID, err)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(rec)
	}
}

// populateRoomTracks draws the playlist and captures playback metadata for
// every drawn track. Individual metadata misses are tolerated; an empty
// playlist is not.
func populateRoomTracks(ctx context.Context, fetcher metadata.Fetcher, rec *models.Room) error {
	tracks, err := database.RandomTracks(ctx, rec.Limit)
	if err != nil {
		logrus.Errorf("room %d: failed to draw tracks: %v", rec.ID, err)
		return err
	}

	ids := make([]string, 0, len(tracks))
	byExternal := make(map[string]*models.Track, len(tracks))
	for _, t := range tracks {
		ids = append(ids, t.ExternalID)
		byExternal[t.ExternalID] = t
	}

	resolved := metadata.FetchAll(ctx, fetcher, ids)
	inserted := 0
	for externalID, meta := range resolved {
		t := byExternal[externalID]
		tir := &models.TrackInRoom{
			TrackID:      t.ID,
			RoomID:       rec.ID,
			AudioPreview: meta.AudioPreview,
			ImageURL:     meta.ImageURL,
			BaseColor:    meta.BaseColor,
			Explicit:     meta.Explicit,
			Track:        t,
		}
		if err := database.InsertTrackInRoom(ctx, tir); err != nil {
			logrus.Warnf("room %d: failed to insert track %d, continuing: %v", rec.ID, t.ID, err)
			continue
		}
		rec.Tracks = append(rec.Tracks, tir)
		inserted++
	}

	if inserted == 0 {
		logrus.Errorf("room %d: no playable tracks resolved", rec.ID)
		return errNoPlayableTracks
	}
	return nil
}

var errNoPlayableTracks = &roomError{"no playable tracks"}

type roomError struct{ msg string }

func (e *roomError) Error() string { return e.msg }

// failRoom marks a half-built room as errored so no client ever sees a lobby.
func failRoom(ctx context.Context, rec *models.Room) {
	if err := database.UpdateRoomStatus(ctx, rec.ID, rec.Status, string(room.StatusError)); err != nil {
		logrus.Errorf("room %d: failed to mark errored: %v", rec.ID, err)
	}
}

// GetRoomHandler returns a room with roster and playlist. The password never
// leaves the server; callers only learn whether one is required.
func GetRoomHandler(w http.ResponseWriter, r *http.Request) {
	idStr := strings.TrimPrefix(r.URL.Path, "/rooms/")
	roomID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		http.Error(w, "invalid room id", http.StatusBadRequest)
		return
	}

	rec, err := database.GetRoomWithRelations(r.Context(), roomID)
	if err != nil {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}

	resp := struct {
		*models.Room
		HasPassword bool `json:"has_password"`
	}{Room: rec, HasPassword: rec.HasPassword()}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// RandomTracksHandler serves n random catalog tracks, the building block for
// quiz creation UIs. n defaults to 10 and is capped at the room maximum.
func RandomTracksHandler(w http.ResponseWriter, r *http.Request) {
	n := 10
	if raw := r.URL.Query().Get("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			http.Error(w, "invalid n", http.StatusBadRequest)
			return
		}
		n = parsed
	}
	if n > MaxRoomLimit {
		n = MaxRoomLimit
	}

	tracks, err := database.RandomTracks(r.Context(), n)
	if err != nil {
		logrus.Errorf("failed to draw random tracks: %v", err)
		http.Error(w, "failed to load tracks", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(tracks)
}

// internal/handlers/track.go
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/whowillhear/server/internal/database"
	"github.com/whowillhear/server/internal/models"
)

type createTrackRequest struct {
	Name       string `json:"name"`
	Artist     string `json:"artist"`
	ExternalID string `json:"external_id"`
	Category   string `json:"category"`
	FunFact    string `json:"fun_fact"`
}

// CreateTrackHandler adds a track to the shared catalog. Rooms and quizzes
// only ever draw from this pool.
func CreateTrackHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createTrackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if req.Name == "" || req.ExternalID == "" {
		http.Error(w, "name and external_id are required", http.StatusBadRequest)
		return
	}

	t := &models.Track{
		Name:       req.Name,
		Artist:     req.Artist,
		ExternalID: req.ExternalID,
		Category:   req.Category,
		FunFact:    req.FunFact,
	}
	if err := database.InsertTrack(r.Context(), t); err != nil {
		logrus.Errorf("failed to insert track %q: %v", req.Name, err)
		http.Error(w, "failed to create track", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(t)
}

// GetTrackHandler returns one catalog track by id.
func GetTrackHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	idStr := strings.TrimPrefix(r.URL.Path, "/tracks/")
	trackID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		http.Error(w, "invalid track id", http.StatusBadRequest)
		return
	}

	t, err := database.GetTrack(r.Context(), trackID)
	if err != nil {
		http.Error(w, "track not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(t)
}

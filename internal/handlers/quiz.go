// internal/handlers/quiz.go
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/whowillhear/server/internal/database"
	"github.com/whowillhear/server/internal/models"
)

type createQuizRequest struct {
	Name   string             `json:"name"`
	Image  string             `json:"image"`
	Tracks []models.QuizTrack `json:"tracks"`
}

// CreateQuizHandler saves a named, shareable track list owned by the caller.
func CreateQuizHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createQuizRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, "quiz name is required", http.StatusBadRequest)
		return
	}
	if len(req.Tracks) < MinRoomLimit || len(req.Tracks) > MaxRoomLimit {
		http.Error(w, "quiz must have between 3 and 30 tracks", http.StatusBadRequest)
		return
	}
	for _, t := range req.Tracks {
		if t.Name == "" || t.ExternalID == "" {
			http.Error(w, "every track needs a name and external id", http.StatusBadRequest)
			return
		}
	}

	userID, err := EnsureGuestUser(w, r)
	if err != nil {
		logrus.Errorf("failed to resolve quiz author: %v", err)
		http.Error(w, "failed to resolve user", http.StatusInternalServerError)
		return
	}

	byName := "Guest"
	if u, err := database.GetUserByID(r.Context(), userID); err == nil && u.Name != "" {
		byName = u.Name
	}

	quiz := &models.Quiz{
		Name:       req.Name,
		Image:      req.Image,
		ByUserName: byName,
		ByUserID:   userID,
		Tracks:     req.Tracks,
	}
	if err := database.InsertQuiz(r.Context(), quiz); err != nil {
		logrus.Errorf("failed to insert quiz: %v", err)
		http.Error(w, "failed to create quiz", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(quiz)
}

// GetQuizHandler fetches a quiz and counts the visit.
func GetQuizHandler(w http.ResponseWriter, r *http.Request) {
	idStr := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/quizzes/"), "/complete")
	quizID, err := uuid.Parse(idStr)
	if err != nil {
		http.Error(w, "invalid quiz id", http.StatusBadRequest)
		return
	}

	quiz, err := database.GetQuiz(r.Context(), quizID)
	if err != nil {
		http.Error(w, "quiz not found", http.StatusNotFound)
		return
	}

	if err := database.IncrementQuizVisits(r.Context(), quizID); err != nil {
		logrus.Warnf("quiz %s: failed to count visit: %v", quizID, err)
	} else {
		quiz.Visits++
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(quiz)
}

type completeQuizRequest struct {
	Score int `json:"score"`
}

// CompleteQuizHandler records a finished playthrough. The completion counter
// always advances; the top score is a high-water mark and only ever rises.
func CompleteQuizHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	idStr := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/quizzes/"), "/complete")
	quizID, err := uuid.Parse(idStr)
	if err != nil {
		http.Error(w, "invalid quiz id", http.StatusBadRequest)
		return
	}

	var req completeQuizRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if req.Score < 0 {
		http.Error(w, "score cannot be negative", http.StatusBadRequest)
		return
	}

	if err := database.CompleteQuiz(r.Context(), quizID, req.Score); err != nil {
		logrus.Errorf("quiz %s: failed to record completion: %v", quizID, err)
		http.Error(w, "failed to record completion", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// QuizHandler dispatches /quizzes/{id} and /quizzes/{id}/complete.
func QuizHandler(w http.ResponseWriter, r *http.Request) {
	if strings.HasSuffix(r.URL.Path, "/complete") {
		CompleteQuizHandler(w, r)
		return
	}
	GetQuizHandler(w, r)
}

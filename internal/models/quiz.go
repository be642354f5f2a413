package models

import (
	"time"

	"github.com/google/uuid"
)

// QuizTrack is one entry of a quiz's embedded track list. Quizzes denormalize
// their tracks as JSON rather than joining the catalog, so a quiz keeps playing
// even if catalog rows change underneath it.
type QuizTrack struct {
	Name         string `json:"name"`
	Artist       string `json:"artist"`
	ExternalID   string `json:"external_id"`
	AudioPreview string `json:"audio_preview,omitempty"`
	ImageURL     string `json:"image_url,omitempty"`
}

// Quiz is a named, shareable, host-owned ordered track list with visit,
// completion, and high-score counters. No realtime multiplayer; rooms are the
// multiplayer path.
type Quiz struct {
	ID         uuid.UUID   `json:"id"`
	Name       string      `json:"name"`
	Image      string      `json:"image,omitempty"`
	ByUserName string      `json:"by_user_name"`
	ByUserID   int64       `json:"by_user_id,omitempty"`
	Tracks     []QuizTrack `json:"tracks"`
	Visits     int         `json:"visits"`
	Completes  int         `json:"completes"`
	TopScore   int         `json:"top_score"`
	CreatedAt  time.Time   `json:"created_at"`
}

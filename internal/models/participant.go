package models

import "github.com/google/uuid"

// Participant is a user's membership in a single room. Score accumulates over
// the room's lifetime and is never reset.
type Participant struct {
	ID     uuid.UUID `json:"id"`
	RoomID int64     `json:"room_id"`
	UserID int64     `json:"user_id"`
	Score  int       `json:"score"`

	// User is the denormalized display snapshot loaded with the roster.
	User *User `json:"user,omitempty"`
}

package models

import "time"

// Room is a row in the rooms table. Limit and SongDuration are fixed at
// creation; Status only ever advances forward (see the room package).
type Room struct {
	ID           int64     `json:"id"`
	HostID       int64     `json:"host_id"`
	Limit        int       `json:"limit"`
	SongDuration int       `json:"song_duration"` // seconds per round
	Password     string    `json:"-"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`

	Participants []*Participant `json:"participants,omitempty"`
	Tracks       []*TrackInRoom `json:"tracks,omitempty"`
}

// HasPassword reports whether joining this room requires a password.
func (r *Room) HasPassword() bool {
	return r.Password != ""
}

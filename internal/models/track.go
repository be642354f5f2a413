package models

// Track is a catalog row, shared read-only across all rooms and quizzes.
type Track struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Artist       string `json:"artist"`
	ExternalID   string `json:"external_id"`
	Category     string `json:"category,omitempty"`
	FunFact      string `json:"fun_fact,omitempty"`
	GuessesCount int    `json:"guesses_count"`
}

// TrackInRoom associates a track with a room, carrying the metadata snapshot
// captured at room creation so gameplay never re-fetches it mid-round.
type TrackInRoom struct {
	TrackID int64 `json:"track_id"`
	RoomID  int64 `json:"room_id"`

	AudioPreview string `json:"audio_preview"`
	ImageURL     string `json:"image_url,omitempty"`
	BaseColor    string `json:"base_color,omitempty"`
	Explicit     bool   `json:"explicit"`

	Track *Track `json:"track,omitempty"`
}

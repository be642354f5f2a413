package models

// User is a row in the users table. Guests are ephemeral rows created on first
// contact with no credentials; they can later be claimed into full accounts.
type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Image string `json:"image,omitempty"`

	IsGuest  bool   `json:"is_guest"`
	IsAdmin  bool   `json:"is_admin"`
	Password string `json:"password,omitempty"`
}

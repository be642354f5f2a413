package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/whowillhear/server/internal/auth"
	"github.com/whowillhear/server/internal/database"
	"github.com/whowillhear/server/internal/models"
)

// extractCookieToken extracts a named cookie value from "Cookie" header, or returns empty if not found.
func extractCookieToken(cookieHeader, cookieName string) string {
	parts := strings.Split(cookieHeader, cookieName+"=")
	if len(parts) < 2 {
		return ""
	}
	token := parts[1]
	if idx := strings.Index(token, ";"); idx != -1 {
		token = token[:idx]
	}
	return token
}

// EnsureGuestUser resolves the caller to a user id, minting a guest row and an
// auth_token cookie when they arrive without a valid token. Anyone can walk
// into a room this way; a guest can claim their account later.
func EnsureGuestUser(w http.ResponseWriter, r *http.Request) (int64, error) {
	token := extractCookieToken(r.Header.Get("Cookie"), "auth_token")
	if token != "" {
		if userID, err := auth.AuthenticateJWT(token); err == nil {
			return userID, nil
		}
	}

	guest := models.User{Name: "Guest"}
	if err := database.CreateGuestUser(context.Background(), &guest); err != nil {
		return 0, fmt.Errorf("failed to create guest user: %w", err)
	}
	newToken, err := auth.CreateJWT(guest.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to create guest JWT: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     "auth_token",
		Value:    newToken,
		HttpOnly: true,
		Path:     "/",
	})
	return guest.ID, nil
}

func participantIDs(rec *models.Room) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(rec.Participants))
	for _, p := range rec.Participants {
		ids = append(ids, p.ID)
	}
	return ids
}

func scoresPayload(scores map[uuid.UUID]int) map[string]int {
	out := make(map[string]int, len(scores))
	for pid, s := range scores {
		out[pid.String()] = s
	}
	return out
}

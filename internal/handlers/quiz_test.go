package handlers

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestCreateQuizRequiresName(t *testing.T) {
	w := postJSON(t, http.HandlerFunc(CreateQuizHandler), "/quizzes",
		`{"tracks":[{"name":"a","external_id":"1"},{"name":"b","external_id":"2"},{"name":"c","external_id":"3"}]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateQuizValidatesTrackCount(t *testing.T) {
	// Two tracks is below the minimum of three.
	w := postJSON(t, http.HandlerFunc(CreateQuizHandler), "/quizzes",
		`{"name":"party","tracks":[{"name":"a","external_id":"1"},{"name":"b","external_id":"2"}]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateQuizValidatesTrackFields(t *testing.T) {
	w := postJSON(t, http.HandlerFunc(CreateQuizHandler), "/quizzes",
		`{"name":"party","tracks":[{"name":"a","external_id":"1"},{"name":"","external_id":"2"},{"name":"c","external_id":"3"}]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetQuizRejectsMalformedID(t *testing.T) {
	req := httptest.NewRequest("GET", "/quizzes/not-a-uuid", nil)
	w := httptest.NewRecorder()
	GetQuizHandler(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCompleteQuizRejectsNegativeScore(t *testing.T) {
	w := postJSON(t, http.HandlerFunc(CompleteQuizHandler),
		"/quizzes/0190b18e-6f9b-7c1a-9a6e-3f8e31f00001/complete",
		`{"score":-5}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestClaimGuestRequiresValidToken(t *testing.T) {
	w := postJSON(t, http.HandlerFunc(ClaimGuestHandler), "/user/claim",
		`{"name":"dana","email":"dana@example.com","password":"hunter2"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestExtractCookieToken(t *testing.T) {
	assert.Equal(t, "abc123", extractCookieToken("auth_token=abc123", "auth_token"))
	assert.Equal(t, "abc123", extractCookieToken("other=x; auth_token=abc123; more=y", "auth_token"))
	assert.Equal(t, "", extractCookieToken("other=x", "auth_token"))
}

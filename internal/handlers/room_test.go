package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func postJSON(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestCreateRoomRejectsBadPayload(t *testing.T) {
	h := CreateRoomHandler(&RoomServer{})

	w := postJSON(t, h, "/rooms", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateRoomValidatesLimit(t *testing.T) {
	h := CreateRoomHandler(&RoomServer{})

	for _, body := range []string{
		`{"limit":2,"song_duration":10}`,
		`{"limit":31,"song_duration":10}`,
		`{"limit":0,"song_duration":10}`,
	} {
		w := postJSON(t, h, "/rooms", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, "body=%s", body)
	}
}

func TestCreateRoomValidatesSongDuration(t *testing.T) {
	h := CreateRoomHandler(&RoomServer{})

	for _, body := range []string{
		`{"limit":10,"song_duration":2}`,
		`{"limit":10,"song_duration":31}`,
		`{"limit":10}`,
	} {
		w := postJSON(t, h, "/rooms", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, "body=%s", body)
	}
}

func TestCreateRoomRejectsNonPost(t *testing.T) {
	h := CreateRoomHandler(&RoomServer{})

	req := httptest.NewRequest("GET", "/rooms", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestGetRoomRejectsMalformedID(t *testing.T) {
	req := httptest.NewRequest("GET", "/rooms/not-a-number", nil)
	w := httptest.NewRecorder()
	GetRoomHandler(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRandomTracksRejectsBadCount(t *testing.T) {
	for _, q := range []string{"?n=abc", "?n=0", "?n=-3"} {
		req := httptest.NewRequest("GET", "/tracks/random"+q, nil)
		w := httptest.NewRecorder()
		RandomTracksHandler(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code, "query=%s", q)
	}
}

func TestRoomWSRejectsMalformedRoomID(t *testing.T) {
	h := RoomWSHandler(testLogger(), &RoomServer{})

	req := httptest.NewRequest("GET", "/room/ws/abc", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogMiddlewareTagsRoomRoutes(t *testing.T) {
	logger, hook := test.NewNullLogger()
	h := LogMiddleware(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/room/ws/42", nil))
	require.Len(t, hook.Entries, 1)
	assert.Equal(t, "42", hook.LastEntry().Data["room"])

	hook.Reset()
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/rooms/9", nil))
	require.Len(t, hook.Entries, 1)
	assert.Equal(t, "9", hook.LastEntry().Data["room"])

	hook.Reset()
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/quizzes", nil))
	require.Len(t, hook.Entries, 1)
	_, tagged := hook.LastEntry().Data["room"]
	assert.False(t, tagged)
}

func TestRoomIDFromPath(t *testing.T) {
	id, ok := roomIDFromPath("/room/ws/17/extra")
	assert.True(t, ok)
	assert.Equal(t, "17", id)

	_, ok = roomIDFromPath("/rooms/")
	assert.False(t, ok)

	_, ok = roomIDFromPath("/tracks/random")
	assert.False(t, ok)
}

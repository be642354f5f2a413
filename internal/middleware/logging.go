// internal/middleware/logging.go

package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// LogMiddleware is an HTTP middleware that logs incoming requests using Logrus.
// Logs the method, path, and duration of each request. Requests on room routes
// carry the room id as a field so one room's traffic can be filtered out.
func LogMiddleware(logger *logrus.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			path := r.URL.Path
			method := r.Method

			next.ServeHTTP(w, r)

			duration := time.Since(start)
			fields := logrus.Fields{
				"method":   method,
				"path":     path,
				"duration": duration,
				"remote":   r.RemoteAddr,
			}
			if id, ok := roomIDFromPath(path); ok {
				fields["room"] = id
			}
			logger.WithFields(fields).Info("http request")
		})
	}
}

// roomIDFromPath pulls the room id out of a /room/ws/{id} or /rooms/{id} path.
func roomIDFromPath(path string) (string, bool) {
	for _, prefix := range []string{"/room/ws/", "/rooms/"} {
		if strings.HasPrefix(path, prefix) {
			id := strings.SplitN(strings.TrimPrefix(path, prefix), "/", 2)[0]
			return id, id != ""
		}
	}
	return "", false
}

// LogWebSocketConnect logs a participant's websocket session opening.
func LogWebSocketConnect(logger *logrus.Logger, remoteAddr string, roomID int64, participantID string) {
	logger.WithFields(logrus.Fields{
		"remote":      remoteAddr,
		"room":        roomID,
		"participant": participantID,
	}).Info("websocket connected")
}

// LogWebSocketDisconnect logs a participant's websocket session closing.
func LogWebSocketDisconnect(logger *logrus.Logger, remoteAddr string, roomID int64, participantID string, err error) {
	fields := logrus.Fields{
		"remote":      remoteAddr,
		"room":        roomID,
		"participant": participantID,
	}
	if err != nil {
		fields["error"] = err
	}
	logger.WithFields(fields).Info("websocket disconnected")
}

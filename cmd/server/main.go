// cmd/server/main.go
package main

import (
	"net/http"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
	"github.com/whowillhear/server/internal/auth"
	"github.com/whowillhear/server/internal/cache"
	"github.com/whowillhear/server/internal/database"
	"github.com/whowillhear/server/internal/handlers"
	"github.com/whowillhear/server/internal/metadata"
	"github.com/whowillhear/server/internal/middleware"
)

func main() {
	auth.Init()
	database.ConnectDB()
	if err := cache.ConnectRedis(); err != nil {
		logrus.Fatalf("redis connect failed: %v", err)
	}

	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	rs := handlers.NewRoomServer(metadata.NewHTTPFetcher())

	mux := http.NewServeMux()

	// user endpoints
	mux.HandleFunc("/user/create", handlers.CreateUserHandler)
	mux.HandleFunc("/user/login", handlers.LoginHandler)
	mux.HandleFunc("/user/claim", handlers.ClaimGuestHandler)

	// room endpoints
	mux.Handle("/rooms", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.CreateRoomHandler(rs),
	)))
	mux.Handle("/rooms/", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.GetRoomHandler,
	)))

	// room websocket
	mux.Handle("/room/ws/", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.RoomWSHandler(logger, rs),
	)))

	// track catalog
	mux.Handle("/tracks", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.CreateTrackHandler,
	)))
	mux.Handle("/tracks/random", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.RandomTracksHandler,
	)))
	mux.Handle("/tracks/", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.GetTrackHandler,
	)))

	// quizzes
	mux.Handle("/quizzes", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.CreateQuizHandler,
	)))
	mux.Handle("/quizzes/", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.QuizHandler,
	)))

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	logger.Infof("Running on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logrus.Fatalf("server exited: %v", err)
	}
}

// internal/cache/redis.go
package cache

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Rdb is the global Redis client. Connect it once at application startup.
var Rdb *redis.Client

// PresenceTTL bounds how long a silent participant is still considered
// present. Heartbeats refresh the key; letting it lapse is how departures
// are detected, since clients on closed laptops never say goodbye.
var PresenceTTL = 30 * time.Second

// ConnectRedis initializes the global Redis client with environment variables:
//   - REDIS_ADDR (default "localhost:6379")
//   - REDIS_DB (optional, default 0)
func ConnectRedis() error {
	addr := getEnv("REDIS_ADDR", "localhost:6379")
	dbIdx := getEnvInt("REDIS_DB", 0)

	Rdb = redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   dbIdx,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := Rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return nil
}

func presenceKey(roomID int64, participantID uuid.UUID) string {
	return fmt.Sprintf("room:%d:seen:%s", roomID, participantID)
}

// TouchPresence refreshes a participant's liveness key. Called on every
// heartbeat and on any inbound message from the participant's connection.
func TouchPresence(ctx context.Context, roomID int64, participantID uuid.UUID) error {
	if Rdb == nil {
		return nil
	}
	return Rdb.Set(ctx, presenceKey(roomID, participantID), time.Now().UnixMilli(), PresenceTTL).Err()
}

// IsPresent reports whether a participant's liveness key is still alive.
func IsPresent(ctx context.Context, roomID int64, participantID uuid.UUID) (bool, error) {
	if Rdb == nil {
		return false, nil
	}
	n, err := Rdb.Exists(ctx, presenceKey(roomID, participantID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ClearPresence removes a participant's liveness key on an orderly leave.
func ClearPresence(ctx context.Context, roomID int64, participantID uuid.UUID) error {
	if Rdb == nil {
		return nil
	}
	return Rdb.Del(ctx, presenceKey(roomID, participantID)).Err()
}

// getEnv is a helper to read an environment variable or return a default value.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// getEnvInt is a helper to parse an environment variable as integer, else a default value.
func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

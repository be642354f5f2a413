// internal/handlers/room_server.go
package handlers

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/whowillhear/server/internal/cache"
	"github.com/whowillhear/server/internal/database"
	"github.com/whowillhear/server/internal/game"
	"github.com/whowillhear/server/internal/metadata"
	"github.com/whowillhear/server/internal/realtime"
	"github.com/whowillhear/server/internal/room"
)

// RoomServer holds the live room store and the shared collaborators every
// room handler needs.
type RoomServer struct {
	Rooms       *room.Store
	Broadcaster *realtime.Broadcaster
	Fetcher     metadata.Fetcher

	// removeSeat deletes a participant row; a seam for tests.
	removeSeat func(ctx context.Context, participantID uuid.UUID) error
}

// NewRoomServer wires a RoomServer against the process-wide Redis client.
func NewRoomServer(fetcher metadata.Fetcher) *RoomServer {
	return &RoomServer{
		Rooms:       room.NewStore(),
		Broadcaster: realtime.NewBroadcaster(cache.Rdb),
		Fetcher:     fetcher,
		removeSeat:  database.RemoveParticipant,
	}
}

// liveRoom returns the in-memory room for an id, building it from the
// persisted record on first touch.
func (rs *RoomServer) liveRoom(ctx context.Context, roomID int64) (*room.Room, error) {
	if r, ok := rs.Rooms.Get(roomID); ok {
		return r, nil
	}

	rec, err := database.GetRoomWithRelations(ctx, roomID)
	if err != nil {
		return nil, err
	}

	r := rs.Rooms.GetOrCreate(roomID, func() *room.Room {
		lr := room.NewRoom(rec)
		subCtx, subCancel := context.WithCancel(context.Background())
		lr.PublishFn = func(eventType string, payload map[string]interface{}) {
			if _, err := rs.Broadcaster.Publish(context.Background(), roomID, eventType, payload); err != nil {
				logrus.Warnf("room %d: publish %s failed: %v", roomID, eventType, err)
			}
		}
		lr.OnEmpty = func(id int64) {
			rs.Rooms.Delete(id)
			subCancel()
			lr.Close()
			// Finished rooms have nothing left to resume; drop their channel keys.
			if lr.CurrentStatus().Terminal() {
				if err := rs.Broadcaster.Cleanup(context.Background(), id); err != nil {
					logrus.Warnf("room %d: channel cleanup failed: %v", id, err)
				}
			}
		}
		lr.OnExpire = func(_ int64, pid uuid.UUID) {
			rs.expireParticipant(lr, pid)
		}
		go rs.relayRoomChannel(subCtx, lr)
		return lr
	})
	return r, nil
}

// expireParticipant runs after the liveness sweep drops a silent participant.
// An expired lobby participant gives up the seat entirely, same as an orderly
// leave; mid-game the row survives so a reconnect keeps the score.
func (rs *RoomServer) expireParticipant(lr *room.Room, pid uuid.UUID) {
	ctx := context.Background()
	if present, err := cache.IsPresent(ctx, lr.ID, pid); err == nil && present {
		// Heartbeats are still landing through another instance.
		return
	}
	if err := cache.ClearPresence(ctx, lr.ID, pid); err != nil {
		logrus.Warnf("room %d: failed to clear presence for %s: %v", lr.ID, pid, err)
	}
	if lr.CurrentStatus() != room.StatusLobby {
		return
	}
	remove := rs.removeSeat
	if remove == nil {
		remove = database.RemoveParticipant
	}
	if err := remove(ctx, pid); err != nil {
		logrus.Warnf("room %d: failed to remove expired participant %s: %v", lr.ID, pid, err)
	}
}

// relayRoomChannel tails the room's pub/sub channel and hands frames published
// by other instances to this process's connections. Own frames are skipped;
// local clients already received them directly.
func (rs *RoomServer) relayRoomChannel(ctx context.Context, lr *room.Room) {
	ch, err := rs.Broadcaster.Subscribe(ctx, lr.ID)
	if err != nil {
		logrus.Warnf("room %d: channel subscribe failed: %v", lr.ID, err)
		return
	}
	for env := range ch {
		if env.Origin == rs.Broadcaster.Origin() {
			continue
		}
		var payload map[string]interface{}
		if len(env.Payload) > 0 {
			if err := json.Unmarshal(env.Payload, &payload); err != nil {
				logrus.Warnf("room %d: dropping relayed frame: %v", lr.ID, err)
				continue
			}
		}
		if payload == nil {
			payload = map[string]interface{}{}
		}
		// Status frames from the authoritative instance move our mirror too.
		if env.Type == "status_update" {
			if s, ok := payload["status"].(string); ok {
				if st, err := room.ParseStatus(s); err == nil {
					lr.SyncStatus(st)
				}
			}
		}
		payload["seq"] = env.Seq
		lr.WriteLocal(env.Type, payload)
	}
}

// startGame transitions the room into play and hands control to the round
// controller. Persist-then-announce: the status row is written before any
// client hears about it.
func (rs *RoomServer) startGame(ctx context.Context, lr *room.Room) error {
	lr.Mu.Lock()
	running := lr.Controller != nil
	lr.Mu.Unlock()
	if running {
		return &room.ErrInvalidTransition{From: lr.CurrentStatus(), Event: room.EventStartGame}
	}

	prev := lr.CurrentStatus()
	next, err := lr.Apply(room.EventStartGame)
	if err != nil {
		return err
	}
	if err := database.UpdateRoomStatus(ctx, lr.ID, string(prev), string(next)); err != nil {
		return err
	}
	if err := rs.Broadcaster.SaveSnapshot(ctx, lr.ID, string(next), nil); err != nil {
		logrus.Warnf("room %d: snapshot save failed: %v", lr.ID, err)
	}

	rec, err := database.GetRoomWithRelations(ctx, lr.ID)
	if err != nil {
		return err
	}

	ctrl := game.NewController(lr.ID, rec.Tracks, rec.SongDuration, participantIDs(rec))
	ctrl.BroadcastFn = func(ev game.Event) {
		lr.Broadcast(string(ev.Type), ev.Payload)
		if ev.Type == game.EventRoundResult {
			if idx, ok := ev.Payload["index"].(int); ok && idx >= 0 && idx < len(rec.Tracks) {
				trackID := rec.Tracks[idx].TrackID
				go func() {
					if err := database.IncrementGuessCount(context.Background(), trackID); err != nil {
						logrus.Warnf("room %d: failed to count play for track %d: %v", lr.ID, trackID, err)
					}
				}()
			}
		}
	}
	ctrl.FetchDistractors = func(ctx context.Context, n int) ([]string, error) {
		return database.DistractorNames(ctx, n, "")
	}
	ctrl.OnScore = func(participantID uuid.UUID, points int) {
		if err := database.AddParticipantScore(context.Background(), participantID, points); err != nil {
			logrus.Warnf("room %d: failed to persist score for %s: %v", lr.ID, participantID, err)
		}
	}
	ctrl.OnComplete = func(scores map[uuid.UUID]int) {
		rs.finishGame(lr, scores)
	}

	lr.Mu.Lock()
	lr.Controller = ctrl
	lr.Mu.Unlock()

	lr.Broadcast("status_update", map[string]interface{}{"status": string(next)})
	ctrl.Start()
	return nil
}

// finishGame closes out a completed game: status row first, then the announce.
func (rs *RoomServer) finishGame(lr *room.Room, scores map[uuid.UUID]int) {
	ctx := context.Background()
	prev := lr.CurrentStatus()
	next, err := lr.Apply(room.EventTracksExhausted)
	if err != nil {
		logrus.Warnf("room %d: completion transition failed: %v", lr.ID, err)
		return
	}
	if err := database.UpdateRoomStatus(ctx, lr.ID, string(prev), string(next)); err != nil {
		logrus.Errorf("room %d: failed to persist completion: %v", lr.ID, err)
		return
	}
	if err := rs.Broadcaster.SaveSnapshot(ctx, lr.ID, string(next), scoresPayload(scores)); err != nil {
		logrus.Warnf("room %d: snapshot save failed: %v", lr.ID, err)
	}
	lr.Broadcast("status_update", map[string]interface{}{
		"status": string(next),
		"scores": scoresPayload(scores),
	})
}

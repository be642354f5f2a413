// internal/room/room.go
package room

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/whowillhear/server/internal/game"
	"github.com/whowillhear/server/internal/models"
)

// DefaultHeartbeatTTL is how long a participant may stay silent before the
// sweep considers them gone. Clients send a heartbeat well inside this window.
var DefaultHeartbeatTTL = 30 * time.Second

// Conn wraps a single participant's active WebSocket connection to the room.
type Conn struct {
	ParticipantID uuid.UUID
	UserID        int64
	Cancel        context.CancelFunc
	OutChan       chan map[string]interface{}
	IsHost        bool
}

// Write pushes a message to the participant's message channel.
func (conn *Conn) Write(msg map[string]interface{}) {
	conn.OutChan <- msg
}

// WriteError pushes an error message to the participant's message channel.
func (conn *Conn) WriteError(msg string) {
	conn.OutChan <- map[string]interface{}{
		"type":    "error",
		"message": msg,
	}
}

// Room is the live, in-memory side of a persisted room: the connection pool,
// the roster, participant liveness, and the running game. The persisted record
// remains the source of truth for status; Room mirrors it through Transition
// so an illegal lifecycle jump is caught before it is written anywhere.
type Room struct {
	ID         int64
	HostUserID int64
	Status     Status

	Mu sync.Mutex

	Participants map[uuid.UUID]*models.Participant
	Connections  map[uuid.UUID]*Conn
	LastSeen     map[uuid.UUID]time.Time

	Controller *game.Controller

	// PublishFn fans a message out beyond this process (the room's pub/sub
	// channel). Local connections are written directly; both paths carry the
	// same payload.
	PublishFn func(eventType string, payload map[string]interface{})

	// OnEmpty is invoked once when the last connection leaves.
	OnEmpty func(roomID int64)

	// OnExpire is invoked for each participant removed by the liveness sweep.
	OnExpire func(roomID int64, participantID uuid.UUID)

	HeartbeatTTL time.Duration

	sweepTicker *time.Ticker
	sweepDone   chan struct{}
	sweepOnce   sync.Once
}

// NewRoom builds the live wrapper for a persisted room record.
func NewRoom(rec *models.Room) *Room {
	r := &Room{
		ID:           rec.ID,
		HostUserID:   rec.HostID,
		Status:       Status(rec.Status),
		Participants: make(map[uuid.UUID]*models.Participant),
		Connections:  make(map[uuid.UUID]*Conn),
		LastSeen:     make(map[uuid.UUID]time.Time),
		HeartbeatTTL: DefaultHeartbeatTTL,
	}
	for _, p := range rec.Participants {
		r.Participants[p.ID] = p
	}
	return r
}

// Apply runs the status transition and records the result. The caller is
// responsible for persisting and announcing the new status afterwards.
func (r *Room) Apply(e Event) (Status, error) {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	next, err := Transition(r.Status, e)
	if err != nil {
		return r.Status, err
	}
	r.Status = next
	return next, nil
}

// CurrentStatus returns the room's lifecycle status.
func (r *Room) CurrentStatus() Status {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	return r.Status
}

// SyncStatus adopts a status observed on the broadcast channel from another
// instance. Only forward moves are taken, so a stale or reordered frame can
// never rewind the lifecycle. Error wins from any non-error state. Reports
// whether the status changed.
func (r *Room) SyncStatus(next Status) bool {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	if next == StatusError {
		if r.Status == StatusError {
			return false
		}
		r.Status = StatusError
		return true
	}
	if !r.Status.Before(next) {
		return false
	}
	r.Status = next
	return true
}

// AddConnection registers a participant's connection and announces the join
// with the full roster, so every client rebuilds the same list.
func (r *Room) AddConnection(p *models.Participant, conn *Conn) {
	r.Mu.Lock()
	r.Participants[p.ID] = p
	r.Connections[p.ID] = conn
	r.LastSeen[p.ID] = time.Now()
	roster := r.rosterLocked()
	r.Mu.Unlock()

	r.Broadcast("participant_joined", map[string]interface{}{
		"participant": p,
		"roster":      roster,
	})
}

// RemoveConnection drops a participant's connection. During the lobby the
// participant leaves the roster too; mid-game they stay listed so their score
// survives a reconnect. Fires OnEmpty when the last connection goes.
func (r *Room) RemoveConnection(participantID uuid.UUID) {
	r.Mu.Lock()
	conn, ok := r.Connections[participantID]
	if !ok {
		r.Mu.Unlock()
		return
	}
	delete(r.Connections, participantID)
	delete(r.LastSeen, participantID)
	if r.Status == StatusLobby {
		delete(r.Participants, participantID)
	}
	empty := len(r.Connections) == 0
	roster := r.rosterLocked()
	r.Mu.Unlock()

	if conn.Cancel != nil {
		conn.Cancel()
	}
	r.Broadcast("participant_left", map[string]interface{}{
		"participantId": participantID.String(),
		"roster":        roster,
	})
	if empty && r.OnEmpty != nil {
		r.OnEmpty(r.ID)
	}
}

// Touch refreshes a participant's liveness. Called on heartbeats and on any
// inbound message from their connection.
func (r *Room) Touch(participantID uuid.UUID) {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	if _, ok := r.Connections[participantID]; ok {
		r.LastSeen[participantID] = time.Now()
	}
}

// StartSweep begins the periodic liveness check. A participant whose last
// heartbeat is older than HeartbeatTTL is treated as departed; this replaces
// trusting clients to announce their own exit, which they rarely manage to do.
func (r *Room) StartSweep(interval time.Duration) {
	r.sweepOnce.Do(func() {
		r.sweepTicker = time.NewTicker(interval)
		r.sweepDone = make(chan struct{})
		go func() {
			for {
				select {
				case <-r.sweepDone:
					return
				case <-r.sweepTicker.C:
					r.sweepExpired()
				}
			}
		}()
	})
}

func (r *Room) sweepExpired() {
	r.Mu.Lock()
	cutoff := time.Now().Add(-r.HeartbeatTTL)
	var expired []uuid.UUID
	for pid, seen := range r.LastSeen {
		if seen.Before(cutoff) {
			expired = append(expired, pid)
		}
	}
	r.Mu.Unlock()

	for _, pid := range expired {
		logrus.Infof("room %d: participant %s expired after silence", r.ID, pid)
		r.RemoveConnection(pid)
		if r.OnExpire != nil {
			r.OnExpire(r.ID, pid)
		}
	}
}

// Close tears down the sweep, the game controller, and every connection.
func (r *Room) Close() {
	if r.sweepTicker != nil {
		r.sweepTicker.Stop()
		close(r.sweepDone)
	}

	r.Mu.Lock()
	if r.Controller != nil {
		ctrl := r.Controller
		r.Mu.Unlock()
		ctrl.Stop()
		r.Mu.Lock()
	}
	conns := make([]*Conn, 0, len(r.Connections))
	for _, c := range r.Connections {
		conns = append(conns, c)
	}
	r.Connections = make(map[uuid.UUID]*Conn)
	r.Mu.Unlock()

	for _, c := range conns {
		if c.Cancel != nil {
			c.Cancel()
		}
	}
}

// Broadcast writes a message to every local connection and hands it to
// PublishFn for cross-process fan-out.
func (r *Room) Broadcast(eventType string, payload map[string]interface{}) {
	r.WriteLocal(eventType, payload)
	if r.PublishFn != nil {
		r.PublishFn(eventType, payload)
	}
}

// WriteLocal delivers a message to this process's connections only. Used
// directly when the message arrived over the room channel from another
// instance and must not be re-published.
func (r *Room) WriteLocal(eventType string, payload map[string]interface{}) {
	msg := map[string]interface{}{"type": eventType}
	for k, v := range payload {
		msg[k] = v
	}

	r.Mu.Lock()
	conns := make([]*Conn, 0, len(r.Connections))
	for _, c := range r.Connections {
		conns = append(conns, c)
	}
	r.Mu.Unlock()

	for _, c := range conns {
		select {
		case c.OutChan <- msg:
		default:
			// Slow consumer; drop rather than stall the room.
			logrus.Warnf("room %d: dropping message for participant %s", r.ID, c.ParticipantID)
		}
	}
}

// Roster returns the participants ordered by score, so every client renders
// the same standings.
func (r *Room) Roster() []*models.Participant {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	return r.rosterLocked()
}

func (r *Room) rosterLocked() []*models.Participant {
	roster := make([]*models.Participant, 0, len(r.Participants))
	for _, p := range r.Participants {
		roster = append(roster, p)
	}
	sort.Slice(roster, func(i, j int) bool {
		if roster[i].Score != roster[j].Score {
			return roster[i].Score > roster[j].Score
		}
		return roster[i].ID.String() < roster[j].ID.String()
	})
	return roster
}

// ParticipantIDs returns the ids of everyone currently on the roster.
func (r *Room) ParticipantIDs() []uuid.UUID {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	ids := make([]uuid.UUID, 0, len(r.Participants))
	for pid := range r.Participants {
		ids = append(ids, pid)
	}
	return ids
}

// ConnectionCount reports how many live connections the room holds.
func (r *Room) ConnectionCount() int {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	return len(r.Connections)
}

// FindByUser returns the participant record for a user already in the room.
// Rejoining this way keeps scores attached to the original participant.
func (r *Room) FindByUser(userID int64) (*models.Participant, bool) {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	for _, p := range r.Participants {
		if p.UserID == userID {
			return p, true
		}
	}
	return nil, false
}

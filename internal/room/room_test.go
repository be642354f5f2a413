package room

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/whowillhear/server/internal/models"
)

func newTestRoom() *Room {
	return NewRoom(&models.Room{
		ID:     7,
		HostID: 1,
		Status: string(StatusLobby),
	})
}

func newTestConn(pid uuid.UUID) *Conn {
	return &Conn{
		ParticipantID: pid,
		OutChan:       make(chan map[string]interface{}, 16),
	}
}

func drain(ch chan map[string]interface{}) []map[string]interface{} {
	var out []map[string]interface{}
	for {
		select {
		case msg := <-ch:
			out = append(out, msg)
		default:
			return out
		}
	}
}

func TestRoomJoinBroadcastsRoster(t *testing.T) {
	r := newTestRoom()

	p1 := &models.Participant{ID: uuid.New(), RoomID: r.ID, UserID: 1}
	c1 := newTestConn(p1.ID)
	r.AddConnection(p1, c1)

	p2 := &models.Participant{ID: uuid.New(), RoomID: r.ID, UserID: 2}
	c2 := newTestConn(p2.ID)
	r.AddConnection(p2, c2)

	msgs := drain(c1.OutChan)
	require.NotEmpty(t, msgs)
	last := msgs[len(msgs)-1]
	assert.Equal(t, "participant_joined", last["type"])
	roster, ok := last["roster"].([]*models.Participant)
	require.True(t, ok)
	assert.Len(t, roster, 2)
}

func TestRoomLeaveInLobbyDropsFromRoster(t *testing.T) {
	r := newTestRoom()
	p1 := &models.Participant{ID: uuid.New(), RoomID: r.ID, UserID: 1}
	p2 := &models.Participant{ID: uuid.New(), RoomID: r.ID, UserID: 2}
	r.AddConnection(p1, newTestConn(p1.ID))
	r.AddConnection(p2, newTestConn(p2.ID))

	r.RemoveConnection(p2.ID)

	assert.Len(t, r.Roster(), 1)
	assert.Equal(t, 1, r.ConnectionCount())
}

func TestRoomLeaveMidGameKeepsRosterEntry(t *testing.T) {
	r := newTestRoom()
	p1 := &models.Participant{ID: uuid.New(), RoomID: r.ID, UserID: 1}
	p2 := &models.Participant{ID: uuid.New(), RoomID: r.ID, UserID: 2}
	r.AddConnection(p1, newTestConn(p1.ID))
	r.AddConnection(p2, newTestConn(p2.ID))

	_, err := r.Apply(EventStartGame)
	require.NoError(t, err)

	r.RemoveConnection(p2.ID)

	// Score entry survives for a reconnect even though the socket is gone.
	assert.Len(t, r.Roster(), 2)
	assert.Equal(t, 1, r.ConnectionCount())
}

func TestRoomOnEmptyFiresOnce(t *testing.T) {
	r := newTestRoom()
	var mu sync.Mutex
	fired := 0
	r.OnEmpty = func(int64) {
		mu.Lock()
		fired++
		mu.Unlock()
	}

	p1 := &models.Participant{ID: uuid.New(), RoomID: r.ID, UserID: 1}
	r.AddConnection(p1, newTestConn(p1.ID))
	r.RemoveConnection(p1.ID)
	r.RemoveConnection(p1.ID) // second call is a no-op

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, fired)
}

func TestRoomApplyRejectsIllegalTransition(t *testing.T) {
	r := newTestRoom()
	_, err := r.Apply(EventTracksExhausted)
	assert.Error(t, err)
	assert.Equal(t, StatusLobby, r.CurrentStatus())
}

func TestRoomSweepExpiresSilentParticipants(t *testing.T) {
	r := newTestRoom()
	r.HeartbeatTTL = 30 * time.Millisecond

	var mu sync.Mutex
	var expired []uuid.UUID
	r.OnExpire = func(_ int64, pid uuid.UUID) {
		mu.Lock()
		expired = append(expired, pid)
		mu.Unlock()
	}

	quiet := &models.Participant{ID: uuid.New(), RoomID: r.ID, UserID: 1}
	chatty := &models.Participant{ID: uuid.New(), RoomID: r.ID, UserID: 2}
	r.AddConnection(quiet, newTestConn(quiet.ID))
	r.AddConnection(chatty, newTestConn(chatty.ID))

	r.StartSweep(10 * time.Millisecond)
	defer r.Close()

	// Keep one participant alive past the other's TTL.
	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		r.Touch(chatty.ID)
		mu.Lock()
		n := len(expired)
		mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, expired, 1)
	assert.Equal(t, quiet.ID, expired[0])
	assert.Equal(t, 1, r.ConnectionCount())
}

func TestRoomSyncStatusOnlyMovesForward(t *testing.T) {
	r := newTestRoom()

	assert.True(t, r.SyncStatus(StatusInProgress))
	assert.Equal(t, StatusInProgress, r.CurrentStatus())

	// A stale or reordered frame cannot rewind the lifecycle.
	assert.False(t, r.SyncStatus(StatusLobby))
	assert.Equal(t, StatusInProgress, r.CurrentStatus())

	assert.True(t, r.SyncStatus(StatusError))
	assert.False(t, r.SyncStatus(StatusError))
	assert.Equal(t, StatusError, r.CurrentStatus())
}

func TestRosterOrderedByScore(t *testing.T) {
	r := newTestRoom()
	low := &models.Participant{ID: uuid.New(), RoomID: r.ID, UserID: 1, Score: 3}
	high := &models.Participant{ID: uuid.New(), RoomID: r.ID, UserID: 2, Score: 9}
	r.AddConnection(low, newTestConn(low.ID))
	r.AddConnection(high, newTestConn(high.ID))

	roster := r.Roster()
	require.Len(t, roster, 2)
	assert.Equal(t, high.ID, roster[0].ID)
	assert.Equal(t, low.ID, roster[1].ID)
}

func TestRoomBroadcastReachesPublishFn(t *testing.T) {
	r := newTestRoom()
	var mu sync.Mutex
	var published []string
	r.PublishFn = func(eventType string, _ map[string]interface{}) {
		mu.Lock()
		published = append(published, eventType)
		mu.Unlock()
	}

	r.Broadcast("status_update", map[string]interface{}{"status": "lobby"})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"status_update"}, published)
}

func TestRoomFindByUser(t *testing.T) {
	r := newTestRoom()
	p1 := &models.Participant{ID: uuid.New(), RoomID: r.ID, UserID: 42}
	r.AddConnection(p1, newTestConn(p1.ID))

	found, ok := r.FindByUser(42)
	require.True(t, ok)
	assert.Equal(t, p1.ID, found.ID)

	_, ok = r.FindByUser(99)
	assert.False(t, ok)
}

func TestStoreGetOrCreateSharesInstance(t *testing.T) {
	s := NewStore()
	a := s.GetOrCreate(7, func() *Room { return newTestRoom() })
	b := s.GetOrCreate(7, func() *Room { return newTestRoom() })
	assert.Same(t, a, b)
	assert.Equal(t, 1, s.Len())

	s.Delete(7)
	_, ok := s.Get(7)
	assert.False(t, ok)
}

// internal/realtime/broadcaster.go
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// ChannelFor returns the pub/sub channel name for a room.
func ChannelFor(roomID int64) string {
	return fmt.Sprintf("room~%d", roomID)
}

func seqKey(roomID int64) string      { return fmt.Sprintf("room:%d:seq", roomID) }
func snapshotKey(roomID int64) string { return fmt.Sprintf("room:%d:snapshot", roomID) }

// snapshotTTL keeps stale room state from accumulating forever.
const snapshotTTL = 24 * time.Hour

// Envelope is the wire frame for every room broadcast. Seq is a per-room
// monotonic counter assigned at publish time; a client that sees seq N has,
// by construction, seen the effects of every message up to N, so a gap tells
// it to refetch the snapshot instead of trusting event order.
type Envelope struct {
	Seq     int64           `json:"seq"`
	RoomID  int64           `json:"roomId"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Origin  string          `json:"origin"` // publishing instance; lets subscribers skip their own frames
	SentAt  int64           `json:"sentAt"`
}

// Snapshot is the persisted authoritative room state a late joiner reads
// before tailing the live channel.
type Snapshot struct {
	Seq    int64           `json:"seq"`
	Status string          `json:"status"`
	State  json.RawMessage `json:"state,omitempty"`
}

// Broadcaster publishes sequenced room events over Redis pub/sub and keeps a
// snapshot of the latest authoritative state alongside. Each instance carries
// a random origin id so its own frames can be recognized on the way back in.
type Broadcaster struct {
	rdb    *redis.Client
	origin string
}

// NewBroadcaster wraps an existing Redis client.
func NewBroadcaster(rdb *redis.Client) *Broadcaster {
	return &Broadcaster{rdb: rdb, origin: uuid.NewString()}
}

// Origin returns this instance's publish identity.
func (b *Broadcaster) Origin() string {
	return b.origin
}

// Publish stamps the event with the room's next sequence number and fans it
// out on the room channel. Returns the assigned seq.
func (b *Broadcaster) Publish(ctx context.Context, roomID int64, eventType string, payload interface{}) (int64, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
		}
		raw = data
	}

	seq, err := b.rdb.Incr(ctx, seqKey(roomID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to advance seq for room %d: %w", roomID, err)
	}

	env := Envelope{
		Seq:     seq,
		RoomID:  roomID,
		Type:    eventType,
		Payload: raw,
		Origin:  b.origin,
		SentAt:  time.Now().UnixMilli(),
	}
	data, err := json.Marshal(env)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal envelope: %w", err)
	}
	if err := b.rdb.Publish(ctx, ChannelFor(roomID), data).Err(); err != nil {
		return 0, fmt.Errorf("failed to publish to %s: %w", ChannelFor(roomID), err)
	}
	return seq, nil
}

// SaveSnapshot persists the authoritative room state at the current seq.
// Written before the corresponding status broadcast, so any client that reads
// the snapshot after seeing the event finds state at least as new.
func (b *Broadcaster) SaveSnapshot(ctx context.Context, roomID int64, status string, state interface{}) error {
	var raw json.RawMessage
	if state != nil {
		data, err := json.Marshal(state)
		if err != nil {
			return fmt.Errorf("failed to marshal snapshot state: %w", err)
		}
		raw = data
	}

	seq, err := b.rdb.Get(ctx, seqKey(roomID)).Int64()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("failed to read seq for room %d: %w", roomID, err)
	}

	snap := Snapshot{Seq: seq, Status: status, State: raw}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return b.rdb.Set(ctx, snapshotKey(roomID), data, snapshotTTL).Err()
}

// LoadSnapshot reads the room's latest snapshot. Returns nil without error if
// no snapshot has been written yet.
func (b *Broadcaster) LoadSnapshot(ctx context.Context, roomID int64) (*Snapshot, error) {
	data, err := b.rdb.Get(ctx, snapshotKey(roomID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot for room %d: %w", roomID, err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot for room %d: %w", roomID, err)
	}
	return &snap, nil
}

// Subscribe tails a room's channel, decoding each envelope onto the returned
// channel until ctx is canceled. Malformed frames are logged and skipped.
func (b *Broadcaster) Subscribe(ctx context.Context, roomID int64) (<-chan Envelope, error) {
	sub := b.rdb.Subscribe(ctx, ChannelFor(roomID))
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", ChannelFor(roomID), err)
	}

	out := make(chan Envelope, 32)
	go func() {
		defer close(out)
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var env Envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					logrus.Warnf("room %d: dropping malformed frame: %v", roomID, err)
					continue
				}
				select {
				case out <- env:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Cleanup removes a room's seq counter and snapshot once the room is torn down.
func (b *Broadcaster) Cleanup(ctx context.Context, roomID int64) error {
	return b.rdb.Del(ctx, seqKey(roomID), snapshotKey(roomID)).Err()
}

// internal/room/room_store.go
package room

import "sync"

// Store manages live rooms in memory only. The persisted record outlives the
// live wrapper; a Room is created here when the first client connects and
// removed when the last one leaves.
type Store struct {
	mu    sync.Mutex
	rooms map[int64]*Room
}

// NewStore returns an in-memory store for live rooms.
func NewStore() *Store {
	return &Store{
		rooms: make(map[int64]*Room),
	}
}

// Get retrieves a live room if it exists.
func (s *Store) Get(id int64) (*Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[id]
	return r, ok
}

// GetOrCreate returns the live room, building it via the factory under the
// store lock when absent so concurrent first-joiners share one instance.
func (s *Store) GetOrCreate(id int64, build func() *Room) *Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.rooms[id]; ok {
		return r
	}
	r := build()
	s.rooms[id] = r
	return r
}

// Delete removes the live room from memory.
func (s *Store) Delete(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, id)
}

// Len reports how many rooms are live, typically for debugging or metrics.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms)
}

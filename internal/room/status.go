// internal/room/status.go
package room

import "fmt"

// Status is the lifecycle state of a room. The sequential states only ever
// advance in the order Initializing -> Lobby -> InProgress -> Completed.
// Loading is a transient state used while a blocking fetch is running, and
// Error is terminal: it is reachable from any live state and absorbs nothing.
type Status string

const (
	StatusInitializing Status = "initializing"
	StatusLoading      Status = "loading"
	StatusLobby        Status = "lobby"
	StatusInProgress   Status = "in-progress"
	StatusCompleted    Status = "completed"
	StatusError        Status = "error"
)

// Event is a trigger fed into Transition.
type Event string

const (
	// EventLoaded fires once the room record and its relations have loaded.
	EventLoaded Event = "loaded"
	// EventLoadBegin marks the start of a blocking fetch before the lobby opens.
	EventLoadBegin Event = "load_begin"
	// EventStartGame is the host's "start game" action.
	EventStartGame Event = "start_game"
	// EventTracksExhausted fires when the round controller runs out of tracks.
	EventTracksExhausted Event = "tracks_exhausted"
	// EventLoadFailed fires on any unrecoverable load failure.
	EventLoadFailed Event = "load_failed"
)

// ErrInvalidTransition is returned when an event is not legal in the current
// status. The status is left unchanged.
type ErrInvalidTransition struct {
	From  Status
	Event Event
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("room status %q does not accept event %q", e.From, e.Event)
}

// seq assigns each sequential status its forward-order rank. Loading sits
// between Initializing and Lobby; Error has no rank.
var seq = map[Status]int{
	StatusInitializing: 0,
	StatusLoading:      1,
	StatusLobby:        2,
	StatusInProgress:   3,
	StatusCompleted:    4,
}

// Transition is the pure state function: given a status and an event it
// returns the next status, or the unchanged status and an error if the event
// is illegal. Re-applying an event whose target is the current status is a
// no-op, not an error, so duplicate broadcasts converge instead of failing.
func Transition(s Status, e Event) (Status, error) {
	if s == StatusError || s == StatusCompleted {
		// Terminal. Nothing is reachable from here.
		return s, &ErrInvalidTransition{From: s, Event: e}
	}

	switch e {
	case EventLoadFailed:
		return StatusError, nil
	case EventLoadBegin:
		if s == StatusInitializing {
			return StatusLoading, nil
		}
		if s == StatusLoading {
			return s, nil
		}
	case EventLoaded:
		if s == StatusInitializing || s == StatusLoading {
			return StatusLobby, nil
		}
		if s == StatusLobby {
			return s, nil
		}
	case EventStartGame:
		if s == StatusLobby {
			return StatusInProgress, nil
		}
		if s == StatusInProgress {
			return s, nil
		}
	case EventTracksExhausted:
		if s == StatusInProgress {
			return StatusCompleted, nil
		}
	}
	return s, &ErrInvalidTransition{From: s, Event: e}
}

// Terminal reports whether no further transitions can leave s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Before reports whether s precedes t in the required forward order.
// Error and unknown statuses are never ordered.
func (s Status) Before(t Status) bool {
	a, ok1 := seq[s]
	b, ok2 := seq[t]
	return ok1 && ok2 && a < b
}

// ParseStatus validates a persisted status string.
func ParseStatus(raw string) (Status, error) {
	switch s := Status(raw); s {
	case StatusInitializing, StatusLoading, StatusLobby, StatusInProgress, StatusCompleted, StatusError:
		return s, nil
	default:
		return "", fmt.Errorf("unknown room status %q", raw)
	}
}

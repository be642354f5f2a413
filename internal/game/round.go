// internal/game/round.go
package game

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/whowillhear/server/internal/models"
)

// EventType is an enum-like type for broadcasting game progression events.
type EventType string

const (
	EventGameCountdown EventType = "game_countdown" // cosmetic pre-game 3-2-1
	EventRoundStart    EventType = "round_start"    // options + preview for the next round
	EventRoundPlay     EventType = "round_play"     // round clock armed
	EventRoundGuess    EventType = "round_guess"    // a participant locked in a guess
	EventRoundResult   EventType = "round_result"   // reveal: correct name + awards
	EventRoundSkipped  EventType = "round_skipped"  // metadata unavailable, auto-forfeit
	EventGameComplete  EventType = "game_complete"  // track list exhausted
)

// Event holds data about a game progression step in a broadcast-ready shape.
type Event struct {
	Type    EventType              `json:"type"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// DistractorFunc supplies n track names in random order for the decoy options.
// It is an opaque collaborator with no ordering guarantee across calls and may
// return names colliding with the correct answer.
type DistractorFunc func(ctx context.Context, n int) ([]string, error)

// guessRecord is one participant's locked-in answer for the current round.
type guessRecord struct {
	option  string
	correct bool
	points  int
}

// phase tracks where the controller is inside a single round.
type phase int

const (
	phaseIdle phase = iota
	phaseCountdown
	phaseLoading   // round announced, waiting for a ready-to-play signal
	phasePlaying   // clock running, guesses accepted
	phaseRevealing // answer shown, input rejected
	phaseDone
)

// Controller drives sequential playback of a room's fixed track list: one
// authoritative process per room runs the countdown, the per-round clock,
// scoring, and advancement, and every connected client follows its broadcasts.
// The original left each client to advance rounds on its own timer; that gap
// is closed here by making the server the single arbiter.
type Controller struct {
	RoomID   int64
	Tracks   []*models.TrackInRoom
	Duration time.Duration // per-round clock

	// Countdown, ReadyGrace, RevealDelay and SkipDelay default via Start.
	// Tests shrink them to keep runs fast.
	Countdown   time.Duration // cosmetic preamble before round 0
	ReadyGrace  time.Duration // bound on waiting for a ready-to-play signal
	RevealDelay time.Duration // how long the answer stays on screen
	SkipDelay   time.Duration // bound on a metadata-failure stall

	// BroadcastFn sends events to all clients of the room. If nil, no
	// broadcast is done.
	BroadcastFn func(ev Event)

	// FetchDistractors supplies decoy names for the option set.
	FetchDistractors DistractorFunc

	// OnScore is invoked with every per-round award so scores can be
	// persisted outside the controller.
	OnScore func(participantID uuid.UUID, points int)

	// OnComplete is invoked exactly once after the last round's reveal.
	OnComplete func(scores map[uuid.UUID]int)

	Mu sync.Mutex

	participants []uuid.UUID
	scores       map[uuid.UUID]int
	guesses      map[uuid.UUID]guessRecord

	idx     int
	phase   phase
	roundID int // increments per round; guards stale timer callbacks

	deadline    time.Time
	roundTimer  *time.Timer
	loadTimer   *time.Timer
	revealTimer *time.Timer

	rng *rand.Rand
}

// NewController builds an idle controller for a room's track list.
func NewController(roomID int64, tracks []*models.TrackInRoom, songDuration int, participants []uuid.UUID) *Controller {
	c := &Controller{
		RoomID:       roomID,
		Tracks:       tracks,
		Duration:     time.Duration(songDuration) * time.Second,
		Countdown:    3 * time.Second,
		ReadyGrace:   2 * time.Second,
		RevealDelay:  2 * time.Second,
		SkipDelay:    3 * time.Second,
		participants: append([]uuid.UUID(nil), participants...),
		scores:       make(map[uuid.UUID]int),
		guesses:      make(map[uuid.UUID]guessRecord),
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, p := range c.participants {
		c.scores[p] = 0
	}
	return c
}

// Start fires the cosmetic countdown and schedules round 0. Calling Start on
// a running or finished controller is a no-op.
func (c *Controller) Start() {
	c.Mu.Lock()
	defer c.Mu.Unlock()
	if c.phase != phaseIdle {
		return
	}
	c.phase = phaseCountdown
	c.fireEvent(Event{
		Type:    EventGameCountdown,
		Payload: map[string]interface{}{"seconds": int(c.Countdown / time.Second)},
	})
	roundID := c.roundID
	c.loadTimer = time.AfterFunc(c.Countdown, func() {
		c.Mu.Lock()
		defer c.Mu.Unlock()
		if c.phase != phaseCountdown || c.roundID != roundID {
			return
		}
		c.startRoundLocked(0)
	})
}

// startRoundLocked announces round i, builds its option set, and waits for a
// ready-to-play signal (bounded by ReadyGrace) before arming the clock.
// Assumes lock is held.
func (c *Controller) startRoundLocked(i int) {
	if c.phase == phaseDone {
		return
	}
	if i >= len(c.Tracks) {
		c.completeLocked()
		return
	}

	c.idx = i
	c.roundID++
	c.guesses = make(map[uuid.UUID]guessRecord)

	tr := c.Tracks[i]
	if tr.Track == nil || tr.AudioPreview == "" {
		c.skipRoundLocked(i)
		return
	}

	options := c.buildRoundOptions(tr.Track.Name)
	c.phase = phaseLoading
	c.fireEvent(Event{
		Type: EventRoundStart,
		Payload: map[string]interface{}{
			"index":        i,
			"total":        len(c.Tracks),
			"options":      options,
			"audioPreview": tr.AudioPreview,
			"imageUrl":     tr.ImageURL,
			"duration":     int(c.Duration / time.Second),
		},
	})

	// The clock never starts eagerly: either a client reports ready-to-play
	// or the grace bound expires, whichever comes first.
	roundID := c.roundID
	c.loadTimer = time.AfterFunc(c.ReadyGrace, func() {
		c.Mu.Lock()
		defer c.Mu.Unlock()
		if c.phase != phaseLoading || c.roundID != roundID {
			return
		}
		c.beginPlaybackLocked()
	})
}

// buildRoundOptions fetches distractor names and assembles the answer set.
// A failed fetch degrades to fewer options; the correct name is always there.
// Assumes lock is held.
func (c *Controller) buildRoundOptions(correct string) []string {
	var distractors []string
	if c.FetchDistractors != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		names, err := c.FetchDistractors(ctx, OptionCount+1)
		cancel()
		if err != nil {
			logrus.Warnf("room %d: distractor fetch failed: %v", c.RoomID, err)
		} else {
			distractors = names
		}
	}
	return BuildOptions(correct, distractors, OptionCount, c.rng)
}

// Ready reports a client's ready-to-play signal for the current round. The
// first signal arms the round clock; later ones are ignored.
func (c *Controller) Ready() {
	c.Mu.Lock()
	defer c.Mu.Unlock()
	if c.phase != phaseLoading {
		return
	}
	if c.loadTimer != nil {
		c.loadTimer.Stop()
		c.loadTimer = nil
	}
	c.beginPlaybackLocked()
}

// beginPlaybackLocked anchors the round deadline to the wall clock and arms
// the timeout. Assumes lock is held.
func (c *Controller) beginPlaybackLocked() {
	c.phase = phasePlaying
	c.deadline = time.Now().Add(c.Duration)
	c.fireEvent(Event{
		Type: EventRoundPlay,
		Payload: map[string]interface{}{
			"index":    c.idx,
			"duration": int(c.Duration / time.Second),
			"endsAt":   c.deadline.UnixMilli(),
		},
	})

	roundID := c.roundID
	c.roundTimer = time.AfterFunc(c.Duration, func() {
		c.Mu.Lock()
		defer c.Mu.Unlock()
		if c.phase != phasePlaying || c.roundID != roundID {
			return // stale timer
		}
		c.revealLocked()
	})
}

// SubmitGuess records a participant's answer for the current round. The first
// accepted guess per participant wins; anything after the round reveals is
// rejected. Returns the points awarded.
func (c *Controller) SubmitGuess(participantID uuid.UUID, option string) (int, bool) {
	c.Mu.Lock()
	defer c.Mu.Unlock()

	if c.phase != phasePlaying {
		return 0, false
	}
	if _, already := c.guesses[participantID]; already {
		return 0, false
	}

	timeRemaining := time.Until(c.deadline)
	if timeRemaining < 0 {
		timeRemaining = 0
	}

	correct := option == c.Tracks[c.idx].Track.Name
	points := ScoreGuess(correct, timeRemaining, c.Duration)
	c.guesses[participantID] = guessRecord{option: option, correct: correct, points: points}
	c.scores[participantID] += points
	if c.OnScore != nil && points > 0 {
		c.OnScore(participantID, points)
	}

	c.fireEvent(Event{
		Type: EventRoundGuess,
		Payload: map[string]interface{}{
			"index":       c.idx,
			"participant": participantID.String(),
		},
	})

	if len(c.guesses) >= len(c.participants) && len(c.participants) > 0 {
		// Everyone locked in; no reason to run out the clock.
		if c.roundTimer != nil {
			c.roundTimer.Stop()
			c.roundTimer = nil
		}
		c.revealLocked()
	}
	return points, true
}

// revealLocked shows the answer, broadcasts per-round awards, and schedules
// the advance after the reveal delay. Assumes lock is held.
func (c *Controller) revealLocked() {
	c.phase = phaseRevealing

	awards := map[string]int{}
	for pid, g := range c.guesses {
		awards[pid.String()] = g.points
	}
	c.fireEvent(Event{
		Type: EventRoundResult,
		Payload: map[string]interface{}{
			"index":   c.idx,
			"correct": c.Tracks[c.idx].Track.Name,
			"awards":  awards,
			"scores":  c.scoreSnapshotLocked(),
		},
	})

	next := c.idx + 1
	roundID := c.roundID
	c.revealTimer = time.AfterFunc(c.RevealDelay, func() {
		c.Mu.Lock()
		defer c.Mu.Unlock()
		if c.phase != phaseRevealing || c.roundID != roundID {
			return
		}
		c.startRoundLocked(next)
	})
}

// skipRoundLocked handles a round whose metadata never arrived: every
// participant forfeits and the controller advances after a bounded delay
// instead of hanging. Assumes lock is held.
func (c *Controller) skipRoundLocked(i int) {
	c.phase = phaseRevealing
	c.fireEvent(Event{
		Type: EventRoundSkipped,
		Payload: map[string]interface{}{
			"index":  i,
			"reason": "metadata unavailable",
		},
	})

	next := i + 1
	roundID := c.roundID
	c.revealTimer = time.AfterFunc(c.SkipDelay, func() {
		c.Mu.Lock()
		defer c.Mu.Unlock()
		if c.phase != phaseRevealing || c.roundID != roundID {
			return
		}
		c.startRoundLocked(next)
	})
}

// completeLocked finishes the game exactly once. Assumes lock is held.
func (c *Controller) completeLocked() {
	if c.phase == phaseDone {
		return
	}
	c.phase = phaseDone
	c.stopTimersLocked()

	final := c.scoreSnapshotLocked()
	c.fireEvent(Event{
		Type:    EventGameComplete,
		Payload: map[string]interface{}{"scores": final},
	})
	if c.OnComplete != nil {
		scores := make(map[uuid.UUID]int, len(c.scores))
		for pid, s := range c.scores {
			scores[pid] = s
		}
		c.OnComplete(scores)
	}
}

// Stop tears the controller down deterministically: all timers are cleared so
// nothing can mutate state afterwards.
func (c *Controller) Stop() {
	c.Mu.Lock()
	defer c.Mu.Unlock()
	c.phase = phaseDone
	c.roundID++ // invalidate any in-flight timer callback
	c.stopTimersLocked()
}

// stopTimersLocked stops every pending timer. Assumes lock is held.
func (c *Controller) stopTimersLocked() {
	for _, t := range []*time.Timer{c.roundTimer, c.loadTimer, c.revealTimer} {
		if t != nil {
			t.Stop()
		}
	}
	c.roundTimer, c.loadTimer, c.revealTimer = nil, nil, nil
}

// Done reports whether the controller has finished or been stopped.
func (c *Controller) Done() bool {
	c.Mu.Lock()
	defer c.Mu.Unlock()
	return c.phase == phaseDone
}

// CurrentRound returns the active track index.
func (c *Controller) CurrentRound() int {
	c.Mu.Lock()
	defer c.Mu.Unlock()
	return c.idx
}

// Scores returns a copy of the accumulated scores keyed by participant.
func (c *Controller) Scores() map[uuid.UUID]int {
	c.Mu.Lock()
	defer c.Mu.Unlock()
	out := make(map[uuid.UUID]int, len(c.scores))
	for pid, s := range c.scores {
		out[pid] = s
	}
	return out
}

// scoreSnapshotLocked renders scores with string keys for JSON payloads.
// Assumes lock is held.
func (c *Controller) scoreSnapshotLocked() map[string]int {
	out := make(map[string]int, len(c.scores))
	for pid, s := range c.scores {
		out[pid.String()] = s
	}
	return out
}

// fireEvent broadcasts an event to all connected clients. Assumes lock is held.
func (c *Controller) fireEvent(ev Event) {
	if c.BroadcastFn != nil {
		c.BroadcastFn(ev)
	}
}

package game

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/whowillhear/server/internal/models"
)

// eventRecorder collects broadcast events so tests can assert on ordering.
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) record(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *eventRecorder) types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

func (r *eventRecorder) waitFor(t *testing.T, want EventType, timeout time.Duration) Event {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		r.mu.Lock()
		for _, ev := range r.events {
			if ev.Type == want {
				r.mu.Unlock()
				return ev
			}
		}
		r.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s; got %v", want, r.types())
	return Event{}
}

func testTracks(names ...string) []*models.TrackInRoom {
	tracks := make([]*models.TrackInRoom, len(names))
	for i, name := range names {
		tracks[i] = &models.TrackInRoom{
			TrackID:      int64(i + 1),
			AudioPreview: "https://cdn.example/" + name + ".mp3",
			Track:        &models.Track{ID: int64(i + 1), Name: name},
		}
	}
	return tracks
}

// newTestController shrinks every delay so a full game runs in milliseconds,
// mirroring how short turn timers are used elsewhere in this repo's tests.
func newTestController(tracks []*models.TrackInRoom, participants []uuid.UUID, rec *eventRecorder) *Controller {
	c := NewController(42, tracks, 30, participants)
	c.Duration = 100 * time.Millisecond
	c.Countdown = 10 * time.Millisecond
	c.ReadyGrace = 10 * time.Millisecond
	c.RevealDelay = 10 * time.Millisecond
	c.SkipDelay = 10 * time.Millisecond
	c.BroadcastFn = rec.record
	c.FetchDistractors = func(ctx context.Context, n int) ([]string, error) {
		return []string{"decoy-a", "decoy-b", "decoy-c", "decoy-d"}, nil
	}
	return c
}

func TestControllerRunsAllRoundsToCompletion(t *testing.T) {
	p1 := uuid.New()
	rec := &eventRecorder{}
	c := newTestController(testTracks("alpha", "beta"), []uuid.UUID{p1}, rec)

	done := make(chan map[uuid.UUID]int, 1)
	c.OnComplete = func(scores map[uuid.UUID]int) { done <- scores }

	c.Start()

	select {
	case scores := <-done:
		assert.Equal(t, 0, scores[p1], "no guesses means no points")
	case <-time.After(2 * time.Second):
		t.Fatalf("game never completed; events: %v", rec.types())
	}

	types := rec.types()
	require.NotEmpty(t, types)
	assert.Equal(t, EventGameCountdown, types[0])
	assert.Equal(t, EventGameComplete, types[len(types)-1])

	starts := 0
	for _, ty := range types {
		if ty == EventRoundStart {
			starts++
		}
	}
	assert.Equal(t, 2, starts, "each track gets exactly one round")
	assert.True(t, c.Done())
}

func TestControllerCorrectGuessScores(t *testing.T) {
	p1 := uuid.New()
	p2 := uuid.New()
	rec := &eventRecorder{}
	c := newTestController(testTracks("alpha"), []uuid.UUID{p1, p2}, rec)

	var scored sync.Map
	c.OnScore = func(pid uuid.UUID, points int) { scored.Store(pid, points) }

	c.Start()
	rec.waitFor(t, EventRoundPlay, time.Second)

	points, ok := c.SubmitGuess(p1, "alpha")
	require.True(t, ok)
	assert.GreaterOrEqual(t, points, 1)
	assert.LessOrEqual(t, points, MaxRoundPoints)

	// Second guess from the same participant is rejected.
	_, ok = c.SubmitGuess(p1, "alpha")
	assert.False(t, ok)

	wrong, ok := c.SubmitGuess(p2, "decoy-a")
	require.True(t, ok)
	assert.Equal(t, 0, wrong)

	// Both locked in, so the reveal arrives without waiting out the clock.
	ev := rec.waitFor(t, EventRoundResult, time.Second)
	assert.Equal(t, "alpha", ev.Payload["correct"])

	v, found := scored.Load(p1)
	require.True(t, found)
	assert.Equal(t, points, v)
	_, found = scored.Load(p2)
	assert.False(t, found, "zero awards are not persisted")
}

func TestControllerTimeoutAdvancesOnce(t *testing.T) {
	p1 := uuid.New()
	rec := &eventRecorder{}
	c := newTestController(testTracks("alpha"), []uuid.UUID{p1}, rec)

	done := make(chan struct{})
	c.OnComplete = func(map[uuid.UUID]int) { close(done) }

	c.Start()
	rec.waitFor(t, EventRoundPlay, time.Second)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout never advanced the round")
	}

	results := 0
	for _, ty := range rec.types() {
		if ty == EventRoundResult {
			results++
		}
	}
	assert.Equal(t, 1, results, "a round reveals exactly once")
	assert.Equal(t, 0, c.Scores()[p1])
}

func TestControllerGuessRejectedAfterReveal(t *testing.T) {
	p1 := uuid.New()
	p2 := uuid.New()
	rec := &eventRecorder{}
	c := newTestController(testTracks("alpha", "beta"), []uuid.UUID{p1, p2}, rec)
	c.RevealDelay = time.Second // hold the reveal so the next round cannot open

	c.Start()
	rec.waitFor(t, EventRoundPlay, time.Second)
	rec.waitFor(t, EventRoundResult, 2*time.Second)

	_, ok := c.SubmitGuess(p1, "alpha")
	assert.False(t, ok, "reveal closes the round to input")
	c.Stop()
}

func TestControllerSkipsRoundMissingMetadata(t *testing.T) {
	p1 := uuid.New()
	tracks := testTracks("alpha", "broken", "gamma")
	tracks[1].AudioPreview = "" // metadata never arrived for this one
	rec := &eventRecorder{}
	c := newTestController(tracks, []uuid.UUID{p1}, rec)

	done := make(chan struct{})
	c.OnComplete = func(map[uuid.UUID]int) { close(done) }

	c.Start()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatalf("game stalled on missing metadata; events: %v", rec.types())
	}

	skipped := rec.waitFor(t, EventRoundSkipped, time.Second)
	assert.Equal(t, 1, skipped.Payload["index"])

	starts := 0
	for _, ty := range rec.types() {
		if ty == EventRoundStart {
			starts++
		}
	}
	assert.Equal(t, 2, starts, "the broken track never opens a round")
}

func TestControllerDegradesOnDistractorFailure(t *testing.T) {
	p1 := uuid.New()
	rec := &eventRecorder{}
	c := newTestController(testTracks("alpha"), []uuid.UUID{p1}, rec)
	c.FetchDistractors = func(ctx context.Context, n int) ([]string, error) {
		return nil, context.DeadlineExceeded
	}
	c.OnComplete = func(map[uuid.UUID]int) {}

	c.Start()
	ev := rec.waitFor(t, EventRoundStart, time.Second)

	opts, ok := ev.Payload["options"].([]string)
	require.True(t, ok)
	assert.Equal(t, []string{"alpha"}, opts, "correct answer alone when no decoys load")
	c.Stop()
}

func TestControllerReadySignalStartsClockEarly(t *testing.T) {
	p1 := uuid.New()
	rec := &eventRecorder{}
	c := newTestController(testTracks("alpha"), []uuid.UUID{p1}, rec)
	c.ReadyGrace = 5 * time.Second // would stall without the signal
	c.OnComplete = func(map[uuid.UUID]int) {}

	c.Start()
	rec.waitFor(t, EventRoundStart, time.Second)
	c.Ready()
	rec.waitFor(t, EventRoundPlay, time.Second)
	c.Stop()
}

func TestControllerStopSilencesTimers(t *testing.T) {
	p1 := uuid.New()
	rec := &eventRecorder{}
	c := newTestController(testTracks("alpha", "beta"), []uuid.UUID{p1}, rec)

	c.Start()
	rec.waitFor(t, EventRoundPlay, time.Second)
	c.Stop()
	assert.True(t, c.Done())

	n := len(rec.types())
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, n, len(rec.types()), "no events after Stop")

	_, ok := c.SubmitGuess(p1, "alpha")
	assert.False(t, ok)
}

func TestControllerStartTwiceIsNoop(t *testing.T) {
	p1 := uuid.New()
	rec := &eventRecorder{}
	c := newTestController(testTracks("alpha"), []uuid.UUID{p1}, rec)
	c.OnComplete = func(map[uuid.UUID]int) {}

	c.Start()
	c.Start()
	rec.waitFor(t, EventRoundStart, time.Second)

	countdowns := 0
	for _, ty := range rec.types() {
		if ty == EventGameCountdown {
			countdowns++
		}
	}
	assert.Equal(t, 1, countdowns)
	c.Stop()
}

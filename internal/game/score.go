// internal/game/score.go
package game

import (
	"math"
	"time"
)

// MaxRoundPoints is the award for an instant correct answer. Points decay
// linearly with elapsed time down to 1 at the very last moment.
const MaxRoundPoints = 5

// ScoreGuess returns the points awarded for a guess: ceil(5 * t / T) for a
// correct guess with time remaining t of a total round duration T, which lands
// in [1, MaxRoundPoints] for any t in (0, T]. Wrong guesses and timeouts
// (t == 0) award nothing.
func ScoreGuess(correct bool, timeRemaining, totalDuration time.Duration) int {
	if !correct || timeRemaining <= 0 || totalDuration <= 0 {
		return 0
	}
	if timeRemaining > totalDuration {
		timeRemaining = totalDuration
	}
	points := int(math.Ceil(MaxRoundPoints * timeRemaining.Seconds() / totalDuration.Seconds()))
	if points < 1 {
		points = 1
	}
	if points > MaxRoundPoints {
		points = MaxRoundPoints
	}
	return points
}

// internal/game/options.go
package game

import "math/rand"

// OptionCount is the fixed size of a round's multiple-choice set.
const OptionCount = 4

// BuildOptions assembles the answer set for a round: distractor names are
// deduplicated against each other and against the correct name, truncated to
// count-1, and only then is the correct name inserted before the final
// shuffle. Built this way the correct answer survives any number of
// distractor collisions, instead of hoping dedup-then-slice keeps it.
//
// The result holds the correct name exactly once and at most count entries;
// fewer if not enough distinct distractors were supplied.
func BuildOptions(correct string, distractors []string, count int, rng *rand.Rand) []string {
	if count < 1 {
		count = 1
	}

	seen := map[string]bool{correct: true}
	options := make([]string, 0, count)
	for _, name := range distractors {
		if len(options) == count-1 {
			break
		}
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		options = append(options, name)
	}
	options = append(options, correct)

	shuffle := rand.Shuffle
	if rng != nil {
		shuffle = rng.Shuffle
	}
	shuffle(len(options), func(i, j int) {
		options[i], options[j] = options[j], options[i]
	})
	return options
}

// Package scoring maps answer correctness and time remaining to points.
package scoring

const (
	basePoints  = 100
	speedBonus  = 50
)

// Points returns the score for a single answer. A correct answer earns the
// base plus a speed bonus proportional to the fraction of the round timer
// still remaining; an incorrect answer earns nothing regardless of speed.
func Points(correct bool, remainingSeconds, timerSeconds int) int {
	if !correct {
		return 0
	}
	if timerSeconds <= 0 {
		return basePoints
	}
	if remainingSeconds < 0 {
		remainingSeconds = 0
	}
	if remainingSeconds > timerSeconds {
		remainingSeconds = timerSeconds
	}
	return basePoints + (remainingSeconds*speedBonus)/timerSeconds
}

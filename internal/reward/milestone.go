package reward

import (
	"slices"
	"time"
)

// baseThresholds are the named milestones; past the last one a milestone
// falls on every further thresholdStep.
var baseThresholds = []int{7, 14, 30, 50, 100, 365, 500, 1000}

const thresholdStep = 100

// Event is emitted when a streak reaches a milestone.
type Event struct {
	TaskID       uint      `json:"task_id"`
	StreakLength int       `json:"streak_length"`
	AchievedAt   time.Time `json:"achieved_at"`
}

// IsThreshold reports whether n is a milestone streak length.
func IsThreshold(n int) bool {
	last := baseThresholds[len(baseThresholds)-1]
	if n > last {
		return n%thresholdStep == 0
	}
	return slices.Contains(baseThresholds, n)
}

// Thresholds lists every milestone up to and including upTo.
func Thresholds(upTo int) []int {
	var out []int
	for _, t := range baseThresholds {
		if t > upTo {
			return out
		}
		out = append(out, t)
	}
	for t := baseThresholds[len(baseThresholds)-1] + thresholdStep; t <= upTo; t += thresholdStep {
		out = append(out, t)
	}
	return out
}

// DetectMilestone returns the highest threshold t with prev < t <= next.
// ok is false when none was crossed, including when next <= prev.
func DetectMilestone(prev, next int) (threshold int, ok bool) {
	if next <= prev {
		return 0, false
	}
	last := baseThresholds[len(baseThresholds)-1]
	if next > last {
		if t := next / thresholdStep * thresholdStep; t > last && t > prev {
			return t, true
		}
	}
	for i := len(baseThresholds) - 1; i >= 0; i-- {
		t := baseThresholds[i]
		if t <= next && t > prev {
			return t, true
		}
	}
	return 0, false
}

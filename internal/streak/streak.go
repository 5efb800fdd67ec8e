// Package streak derives streak metrics from a task's completion history.
//
// Calculate is a pure function: the same completions, forgiven days and
// "today" always produce the same State. Nothing here is stored; callers
// recompute on read and may keep results in a Cache.
package streak

import (
	"math"
	"slices"
	"time"

	"habit-planner/internal/calendar"
	"habit-planner/internal/model"
)

// State is the derived streak summary of one task.
type State struct {
	CurrentStreak    int     `json:"current_streak"`
	LongestStreak    int     `json:"longest_streak"`
	TotalCompletions int     `json:"total_completions"`
	CompletionRate   float64 `json:"completion_rate"`
	IsActiveToday    bool    `json:"is_active_today"`
	MissedDays       int     `json:"missed_days"`
}

// Input is everything Calculate looks at.
type Input struct {
	Completions        []time.Time
	Frequency          model.Frequency
	CustomIntervalDays int
	// StartDate anchors the completion rate; the first completion is used
	// when nil.
	StartDate *calendar.Date
	Today     calendar.Date
	// Location maps completion instants to calendar days. Nil means UTC.
	Location *time.Location
	// Forgiven days were covered by a break credit. They bridge gaps but do
	// not add to any count.
	Forgiven []calendar.Date
}

// ExpectedIntervalDays is the number of days one interval of freq spans.
func ExpectedIntervalDays(freq model.Frequency, customDays int) int {
	switch freq {
	case model.FrequencyWeekly:
		return 7
	case model.FrequencyMonthly:
		return 30
	case model.FrequencyYearly:
		return 365
	case model.FrequencyCustom:
		if customDays > 0 {
			return customDays
		}
		return 1
	default:
		return 1
	}
}

// CustomIntervalDays approximates a custom pattern's step in days.
func CustomIntervalDays(p *model.RecurrencePattern) int {
	if p == nil || p.Interval <= 0 {
		return 0
	}
	switch p.Unit {
	case model.UnitWeeks:
		return 7 * p.Interval
	case model.UnitMonths:
		return 30 * p.Interval
	default:
		return p.Interval
	}
}

type mark struct {
	day  calendar.Date
	real bool
}

// Calculate computes the streak state. The current streak walks back from
// today one expected interval at a time; a period with no completion and no
// forgiven day ends it. The latest completion may sit one interval before
// today (inclusive span of expectedIntervalDays + 1) without breaking it.
func Calculate(in Input) State {
	if len(in.Completions) == 0 {
		return State{}
	}

	interval := ExpectedIntervalDays(in.Frequency, in.CustomIntervalDays)
	days := make([]calendar.Date, 0, len(in.Completions))
	for _, c := range in.Completions {
		days = append(days, calendar.FromTime(c, in.Location))
	}
	slices.SortFunc(days, calendar.Date.Compare)

	marks := buildMarks(days, in.Forgiven)

	current := currentStreak(marks, in.Today, interval)
	state := State{
		CurrentStreak:    current,
		LongestStreak:    max(longestStreak(marks, interval), current),
		TotalCompletions: len(days),
		IsActiveToday:    days[len(days)-1].Equal(in.Today),
	}

	start := days[0]
	if in.StartDate != nil {
		start = *in.StartDate
	}
	sinceStart := max(start.DaysUntil(in.Today), 0)
	expected := sinceStart/interval + 1
	rate := float64(state.TotalCompletions) / float64(expected) * 100
	state.CompletionRate = math.Round(min(rate, 100)*100) / 100

	lastCovered := days[len(days)-1]
	for _, m := range marks {
		if !m.day.After(in.Today) {
			lastCovered = calendar.Max(lastCovered, m.day)
		}
	}
	if since := lastCovered.DaysUntil(in.Today); since > interval {
		state.MissedDays = since / interval
	}

	return state
}

// buildMarks merges completion days and forgiven days into one ascending,
// de-duplicated list. A day that is both stays a real completion.
func buildMarks(days, forgiven []calendar.Date) []mark {
	marks := make([]mark, 0, len(days)+len(forgiven))
	for _, d := range days {
		marks = append(marks, mark{day: d, real: true})
	}
	for _, d := range forgiven {
		marks = append(marks, mark{day: d})
	}
	slices.SortStableFunc(marks, func(a, b mark) int {
		if c := a.day.Compare(b.day); c != 0 {
			return c
		}
		switch {
		case a.real == b.real:
			return 0
		case a.real:
			return -1
		default:
			return 1
		}
	})
	return slices.CompactFunc(marks, func(a, b mark) bool {
		return a.day.Equal(b.day)
	})
}

// walkBack counts real marks over consecutive periods of interval days,
// newest first. The first period ends at from and tolerates a completion
// exactly one interval back, since the period ending today may still be open.
// Every qualifying mark moves the cursor back by one whole period, so an
// early completion inside a period does not shrink the next one.
func walkBack(marks []mark, from calendar.Date, interval int) int {
	streak := 0
	cursor := from
	first := true
	for i := len(marks) - 1; i >= 0; i-- {
		m := marks[i]
		if m.day.After(cursor) {
			continue
		}
		gap := m.day.DaysUntil(cursor)
		switch {
		case gap < interval:
		case first && gap == interval:
			cursor = m.day
		default:
			return streak
		}
		if m.real {
			streak++
		}
		cursor = cursor.AddDays(-interval)
		first = false
	}
	return streak
}

func currentStreak(marks []mark, today calendar.Date, interval int) int {
	return walkBack(marks, today, interval)
}

// longestStreak is the best walk anchored at any real completion. Forgiven
// days never anchor a run.
func longestStreak(marks []mark, interval int) int {
	longest := 0
	for i, m := range marks {
		if m.real {
			longest = max(longest, walkBack(marks[:i+1], m.day, interval))
		}
	}
	return longest
}

// Package recurrence turns a task's repetition rule into concrete due dates.
//
// Everything here is pure: no clocks, no I/O, no time zones. Callers convert
// instants to calendar.Date at the boundary.
package recurrence

import (
	"slices"
	"time"

	"habit-planner/internal/calendar"
	"habit-planner/internal/model"
)

// lookahead bounds Next; four years covers a Feb 29 anniversary.
const lookahead = 4 * 366

// Filter is applied after a rule produces its candidates.
type Filter struct {
	WeekdaysOnly bool
	Exclusions   []calendar.Date
}

func (f Filter) keep(d calendar.Date) bool {
	if f.WeekdaysOnly && d.IsWeekend() {
		return false
	}
	return !slices.Contains(f.Exclusions, d)
}

// Evaluate returns the due dates of rule within [rangeStart, rangeEnd],
// never earlier than taskStart, sorted ascending without duplicates.
func Evaluate(rule Rule, filter Filter, rangeStart, rangeEnd, taskStart calendar.Date) ([]calendar.Date, error) {
	if rule == nil {
		return nil, patternErr("", "rule is required")
	}
	if rangeEnd.Before(rangeStart) {
		return nil, &InvalidRangeError{Start: rangeStart, End: rangeEnd}
	}
	if err := rule.validate(); err != nil {
		return nil, err
	}

	if taskStart.IsZero() {
		taskStart = rangeStart
	}
	from := calendar.Max(rangeStart, taskStart)
	if from.After(rangeEnd) {
		return []calendar.Date{}, nil
	}

	raw := rule.candidates(from, rangeEnd, taskStart)
	out := make([]calendar.Date, 0, len(raw))
	for _, d := range raw {
		if filter.keep(d) {
			out = append(out, d)
		}
	}
	slices.SortFunc(out, calendar.Date.Compare)
	return slices.Compact(out), nil
}

// EvaluateTask evaluates a persisted task. Inactive tasks have no due dates.
func EvaluateTask(task model.Task, rangeStart, rangeEnd calendar.Date) ([]calendar.Date, error) {
	rule, filter, err := FromPattern(task.Frequency, task.Pattern)
	if err != nil {
		return nil, err
	}
	if !task.IsActive {
		if rangeEnd.Before(rangeStart) {
			return nil, &InvalidRangeError{Start: rangeStart, End: rangeEnd}
		}
		return []calendar.Date{}, nil
	}
	return Evaluate(rule, filter, rangeStart, rangeEnd, task.StartDate)
}

// Next returns the first due date strictly after after. ok is false when
// nothing is due within the look-ahead window.
func Next(rule Rule, filter Filter, after, taskStart calendar.Date) (calendar.Date, bool, error) {
	from := after.AddDays(1)
	dates, err := Evaluate(rule, filter, from, from.AddDays(lookahead), taskStart)
	if err != nil || len(dates) == 0 {
		return calendar.Date{}, false, err
	}
	return dates[0], true, nil
}

// FromPattern converts a frequency and its persisted pattern into a typed
// rule and filter. A nil pattern is fine for every frequency except custom.
func FromPattern(freq model.Frequency, p *model.RecurrencePattern) (Rule, Filter, error) {
	var pattern model.RecurrencePattern
	if p != nil {
		pattern = *p
	}
	filter := Filter{
		WeekdaysOnly: pattern.WeekdaysOnly,
		Exclusions:   slices.Clone(pattern.ExclusionDates),
	}

	var rule Rule
	switch freq {
	case model.FrequencyDaily:
		rule = Daily{}
	case model.FrequencyWeekly:
		days := make([]time.Weekday, 0, len(pattern.DaysOfWeek))
		for _, d := range pattern.DaysOfWeek {
			days = append(days, time.Weekday(d))
		}
		rule = Weekly{Days: days}
	case model.FrequencyMonthly:
		rule = Monthly{Days: slices.Clone(pattern.DaysOfMonth)}
	case model.FrequencyYearly:
		rule = Yearly{}
	case model.FrequencyCustom:
		if p == nil {
			return nil, Filter{}, patternErr(freq, "interval and unit are required")
		}
		rule = Custom{Interval: pattern.Interval, Unit: Unit(pattern.Unit)}
	default:
		return nil, Filter{}, patternErr(freq, "unknown frequency %q", freq)
	}

	if err := rule.validate(); err != nil {
		return nil, Filter{}, err
	}
	return rule, filter, nil
}

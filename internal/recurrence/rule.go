package recurrence

import (
	"slices"
	"time"

	"habit-planner/internal/calendar"
	"habit-planner/internal/model"
)

// Rule is a typed recurrence rule. The set of implementations is closed:
// Daily, Weekly, Monthly, Yearly and Custom.
type Rule interface {
	Frequency() model.Frequency
	validate() error
	// candidates lists due dates in [from, to], ascending. from is never
	// before taskStart.
	candidates(from, to, taskStart calendar.Date) []calendar.Date
}

// Daily is due every calendar day.
type Daily struct{}

// Weekly is due on the listed weekdays, or every 7th day counted from the
// task start when Days is empty.
type Weekly struct {
	Days []time.Weekday
}

// Monthly is due on the listed days of the month. Days that do not exist in
// a month are skipped, not rolled over. Empty Days means the start day.
type Monthly struct {
	Days []int
}

// Yearly is due on the anniversary of the task start.
type Yearly struct{}

// Unit is the step unit of a Custom rule.
type Unit string

const (
	Days   Unit = model.UnitDays
	Weeks  Unit = model.UnitWeeks
	Months Unit = model.UnitMonths
)

// Custom is due every Interval Units counted from the task start.
type Custom struct {
	Interval int
	Unit     Unit
}

func (Daily) Frequency() model.Frequency   { return model.FrequencyDaily }
func (Weekly) Frequency() model.Frequency  { return model.FrequencyWeekly }
func (Monthly) Frequency() model.Frequency { return model.FrequencyMonthly }
func (Yearly) Frequency() model.Frequency  { return model.FrequencyYearly }
func (Custom) Frequency() model.Frequency  { return model.FrequencyCustom }

func (Daily) validate() error  { return nil }
func (Yearly) validate() error { return nil }

func (w Weekly) validate() error {
	for _, d := range w.Days {
		if d < time.Sunday || d > time.Saturday {
			return patternErr(model.FrequencyWeekly, "day of week %d out of range 0-6", d)
		}
	}
	return nil
}

func (m Monthly) validate() error {
	for _, d := range m.Days {
		if d < 1 || d > 31 {
			return patternErr(model.FrequencyMonthly, "day of month %d out of range 1-31", d)
		}
	}
	return nil
}

func (c Custom) validate() error {
	if c.Interval <= 0 {
		return patternErr(model.FrequencyCustom, "interval must be positive, got %d", c.Interval)
	}
	switch c.Unit {
	case Days, Weeks, Months:
		return nil
	case "":
		return patternErr(model.FrequencyCustom, "unit is required")
	default:
		return patternErr(model.FrequencyCustom, "unknown unit %q", c.Unit)
	}
}

func (Daily) candidates(from, to, _ calendar.Date) []calendar.Date {
	var out []calendar.Date
	for d := from; !d.After(to); d = d.AddDays(1) {
		out = append(out, d)
	}
	return out
}

func (w Weekly) candidates(from, to, taskStart calendar.Date) []calendar.Date {
	if len(w.Days) == 0 {
		return stepDays(from, to, taskStart, 7)
	}
	var out []calendar.Date
	for d := from; !d.After(to); d = d.AddDays(1) {
		if slices.Contains(w.Days, d.Weekday()) {
			out = append(out, d)
		}
	}
	return out
}

func (m Monthly) candidates(from, to, taskStart calendar.Date) []calendar.Date {
	days := slices.Clone(m.Days)
	if len(days) == 0 {
		days = []int{taskStart.Day}
	}
	slices.Sort(days)
	days = slices.Compact(days)

	var out []calendar.Date
	month := calendar.New(from.Year, from.Month, 1)
	for !month.After(to) {
		limit := calendar.DaysIn(month.Year, month.Month)
		for _, day := range days {
			if day > limit {
				continue
			}
			d := calendar.Date{Year: month.Year, Month: month.Month, Day: day}
			if d.Before(from) || d.After(to) {
				continue
			}
			out = append(out, d)
		}
		month, _ = month.AddMonths(1)
	}
	return out
}

func (Yearly) candidates(from, to, taskStart calendar.Date) []calendar.Date {
	var out []calendar.Date
	for y := from.Year; y <= to.Year; y++ {
		if taskStart.Day > calendar.DaysIn(y, taskStart.Month) {
			continue
		}
		d := calendar.Date{Year: y, Month: taskStart.Month, Day: taskStart.Day}
		if d.Before(from) || d.After(to) {
			continue
		}
		out = append(out, d)
	}
	return out
}

func (c Custom) candidates(from, to, taskStart calendar.Date) []calendar.Date {
	switch c.Unit {
	case Days:
		return stepDays(from, to, taskStart, c.Interval)
	case Weeks:
		return stepDays(from, to, taskStart, 7*c.Interval)
	}

	var out []calendar.Date
	for k := 0; ; k += c.Interval {
		if calendar.New(taskStart.Year, taskStart.Month+time.Month(k), 1).After(to) {
			break
		}
		d, ok := taskStart.AddMonths(k)
		if !ok || d.Before(from) || d.After(to) {
			continue
		}
		out = append(out, d)
	}
	return out
}

// stepDays returns taskStart + k*step for every k that lands in [from, to].
func stepDays(from, to, taskStart calendar.Date, step int) []calendar.Date {
	first := taskStart
	if offset := taskStart.DaysUntil(from); offset > 0 {
		k := (offset + step - 1) / step
		first = taskStart.AddDays(k * step)
	}
	var out []calendar.Date
	for d := first; !d.After(to); d = d.AddDays(step) {
		out = append(out, d)
	}
	return out
}

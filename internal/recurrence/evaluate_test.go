package recurrence

import (
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"habit-planner/internal/calendar"
	"habit-planner/internal/model"
)

func d(s string) calendar.Date { return calendar.MustParse(s) }

func dates(ss ...string) []calendar.Date {
	out := make([]calendar.Date, 0, len(ss))
	for _, s := range ss {
		out = append(out, d(s))
	}
	return out
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name      string
		rule      Rule
		filter    Filter
		start     string
		end       string
		taskStart string
		want      []calendar.Date
	}{
		{
			name:      "daily covers the whole range",
			rule:      Daily{},
			start:     "2024-01-01",
			end:       "2024-01-05",
			taskStart: "2024-01-01",
			want:      dates("2024-01-01", "2024-01-02", "2024-01-03", "2024-01-04", "2024-01-05"),
		},
		{
			name:      "daily clipped to task start",
			rule:      Daily{},
			start:     "2024-01-01",
			end:       "2024-01-05",
			taskStart: "2024-01-04",
			want:      dates("2024-01-04", "2024-01-05"),
		},
		{
			name:      "weekly with days of week",
			rule:      Weekly{Days: []time.Weekday{time.Monday, time.Wednesday, time.Friday}},
			start:     "2024-01-07", // Sunday
			end:       "2024-01-13",
			taskStart: "2024-01-01",
			want:      dates("2024-01-08", "2024-01-10", "2024-01-12"),
		},
		{
			name:      "weekly without days steps from start weekday",
			rule:      Weekly{},
			start:     "2024-01-01",
			end:       "2024-01-31",
			taskStart: "2024-01-03",
			want:      dates("2024-01-03", "2024-01-10", "2024-01-17", "2024-01-24", "2024-01-31"),
		},
		{
			name:      "weekly without days aligned when range starts later",
			rule:      Weekly{},
			start:     "2024-02-01",
			end:       "2024-02-15",
			taskStart: "2024-01-03",
			want:      dates("2024-02-07", "2024-02-14"),
		},
		{
			name:      "monthly skips days missing from short months",
			rule:      Monthly{Days: []int{31, 15}},
			start:     "2024-01-01",
			end:       "2024-04-30",
			taskStart: "2024-01-01",
			want:      dates("2024-01-15", "2024-01-31", "2024-02-15", "2024-03-15", "2024-03-31", "2024-04-15"),
		},
		{
			name:      "monthly defaults to start day",
			rule:      Monthly{},
			start:     "2024-01-01",
			end:       "2024-03-31",
			taskStart: "2024-01-20",
			want:      dates("2024-01-20", "2024-02-20", "2024-03-20"),
		},
		{
			name:      "yearly skips feb 29 outside leap years",
			rule:      Yearly{},
			start:     "2024-01-01",
			end:       "2028-12-31",
			taskStart: "2024-02-29",
			want:      dates("2024-02-29", "2028-02-29"),
		},
		{
			name:      "custom every three days",
			rule:      Custom{Interval: 3, Unit: Days},
			start:     "2024-01-01",
			end:       "2024-01-10",
			taskStart: "2024-01-01",
			want:      dates("2024-01-01", "2024-01-04", "2024-01-07", "2024-01-10"),
		},
		{
			name:      "custom every two weeks",
			rule:      Custom{Interval: 2, Unit: Weeks},
			start:     "2024-01-10",
			end:       "2024-02-20",
			taskStart: "2024-01-01",
			want:      dates("2024-01-15", "2024-01-29", "2024-02-12"),
		},
		{
			name:      "custom every month from the 31st",
			rule:      Custom{Interval: 1, Unit: Months},
			start:     "2024-01-01",
			end:       "2024-05-31",
			taskStart: "2024-01-31",
			want:      dates("2024-01-31", "2024-03-31", "2024-05-31"),
		},
		{
			name:      "weekdays only drops weekend",
			rule:      Daily{},
			filter:    Filter{WeekdaysOnly: true},
			start:     "2024-01-05",
			end:       "2024-01-09",
			taskStart: "2024-01-01",
			want:      dates("2024-01-05", "2024-01-08", "2024-01-09"),
		},
		{
			name:      "exclusions removed",
			rule:      Daily{},
			filter:    Filter{Exclusions: dates("2024-01-02", "2024-01-04")},
			start:     "2024-01-01",
			end:       "2024-01-05",
			taskStart: "2024-01-01",
			want:      dates("2024-01-01", "2024-01-03", "2024-01-05"),
		},
		{
			name:      "task starting after range yields nothing",
			rule:      Daily{},
			start:     "2024-01-01",
			end:       "2024-01-05",
			taskStart: "2024-02-01",
			want:      []calendar.Date{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Evaluate(tt.rule, tt.filter, d(tt.start), d(tt.end), d(tt.taskStart))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateIsDeterministic(t *testing.T) {
	rule := Weekly{Days: []time.Weekday{time.Friday, time.Monday}}
	filter := Filter{Exclusions: dates("2024-01-12")}

	first, err := Evaluate(rule, filter, d("2024-01-01"), d("2024-03-01"), d("2024-01-01"))
	require.NoError(t, err)
	second, err := Evaluate(rule, filter, d("2024-01-01"), d("2024-03-01"), d("2024-01-01"))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.True(t, slices.IsSortedFunc(first, calendar.Date.Compare))
	assert.NotContains(t, first, d("2024-01-12"))
}

func TestEvaluateErrors(t *testing.T) {
	_, err := Evaluate(Daily{}, Filter{}, d("2024-01-05"), d("2024-01-01"), d("2024-01-01"))
	var rangeErr *InvalidRangeError
	require.ErrorAs(t, err, &rangeErr)
	assert.ErrorIs(t, err, ErrInvalidRange)
	assert.False(t, errors.Is(err, ErrInvalidPattern))

	_, err = Evaluate(Custom{Unit: Days}, Filter{}, d("2024-01-01"), d("2024-01-05"), d("2024-01-01"))
	assert.ErrorIs(t, err, ErrInvalidPattern)

	_, err = Evaluate(Custom{Interval: 2}, Filter{}, d("2024-01-01"), d("2024-01-05"), d("2024-01-01"))
	assert.ErrorIs(t, err, ErrInvalidPattern)

	_, err = Evaluate(Weekly{Days: []time.Weekday{7}}, Filter{}, d("2024-01-01"), d("2024-01-05"), d("2024-01-01"))
	assert.ErrorIs(t, err, ErrInvalidPattern)

	_, err = Evaluate(nil, Filter{}, d("2024-01-01"), d("2024-01-05"), d("2024-01-01"))
	assert.ErrorIs(t, err, ErrInvalidPattern)
}

func TestFromPattern(t *testing.T) {
	rule, filter, err := FromPattern(model.FrequencyWeekly, &model.RecurrencePattern{
		DaysOfWeek:     []int{1, 3},
		WeekdaysOnly:   true,
		ExclusionDates: dates("2024-01-01"),
	})
	require.NoError(t, err)
	assert.Equal(t, Weekly{Days: []time.Weekday{time.Monday, time.Wednesday}}, rule)
	assert.True(t, filter.WeekdaysOnly)
	assert.Equal(t, dates("2024-01-01"), filter.Exclusions)

	rule, _, err = FromPattern(model.FrequencyDaily, nil)
	require.NoError(t, err)
	assert.Equal(t, Daily{}, rule)

	rule, _, err = FromPattern(model.FrequencyCustom, &model.RecurrencePattern{Interval: 3, Unit: "days"})
	require.NoError(t, err)
	assert.Equal(t, Custom{Interval: 3, Unit: Days}, rule)

	_, _, err = FromPattern(model.FrequencyCustom, nil)
	var patternErr *InvalidPatternError
	require.ErrorAs(t, err, &patternErr)
	assert.Equal(t, model.FrequencyCustom, patternErr.Frequency)

	_, _, err = FromPattern(model.FrequencyCustom, &model.RecurrencePattern{Interval: 3})
	assert.ErrorIs(t, err, ErrInvalidPattern)

	_, _, err = FromPattern(model.FrequencyMonthly, &model.RecurrencePattern{DaysOfMonth: []int{0}})
	assert.ErrorIs(t, err, ErrInvalidPattern)

	_, _, err = FromPattern("hourly", nil)
	assert.ErrorIs(t, err, ErrInvalidPattern)
}

func TestEvaluateTask(t *testing.T) {
	task := model.Task{
		Frequency: model.FrequencyCustom,
		Pattern:   &model.RecurrencePattern{Interval: 3, Unit: model.UnitDays},
		StartDate: d("2024-01-01"),
		IsActive:  true,
	}

	got, err := EvaluateTask(task, d("2024-01-01"), d("2024-01-10"))
	require.NoError(t, err)
	assert.Equal(t, dates("2024-01-01", "2024-01-04", "2024-01-07", "2024-01-10"), got)

	task.IsActive = false
	got, err = EvaluateTask(task, d("2024-01-01"), d("2024-01-10"))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestNext(t *testing.T) {
	next, ok, err := Next(Monthly{Days: []int{31}}, Filter{}, d("2024-01-31"), d("2024-01-01"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, d("2024-03-31"), next)

	_, ok, err = Next(Daily{}, Filter{}, d("2024-01-01"), d("2030-01-01"))
	require.NoError(t, err)
	assert.False(t, ok)
}

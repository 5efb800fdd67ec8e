package model

import (
	"time"

	"habit-planner/internal/calendar"
)

// Frequency is the coarse repetition category of a task.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyYearly  Frequency = "yearly"
	FrequencyCustom  Frequency = "custom"
)

// Valid reports whether f is one of the known frequencies.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyYearly, FrequencyCustom:
		return true
	}
	return false
}

// Interval units for custom recurrence.
const (
	UnitDays   = "days"
	UnitWeeks  = "weeks"
	UnitMonths = "months"
)

// RecurrencePattern is the persisted, loosely-typed refinement of a
// frequency. Which fields matter depends on the frequency; the recurrence
// package turns it into a typed rule.
type RecurrencePattern struct {
	DaysOfWeek     []int           `json:"days_of_week,omitempty"`
	DaysOfMonth    []int           `json:"days_of_month,omitempty"`
	Interval       int             `json:"interval,omitempty"`
	Unit           string          `json:"unit,omitempty"`
	WeekdaysOnly   bool            `json:"weekdays_only,omitempty"`
	ExclusionDates []calendar.Date `json:"exclusion_dates,omitempty"`
}

// Task is a recurring habit owned by a user. Tasks are deactivated rather
// than deleted so that their instances keep a parent.
type Task struct {
	ID          uint `gorm:"primaryKey"`
	UserID      uint `gorm:"index"`
	Title       string
	Description string
	Frequency   Frequency          `gorm:"index"`
	Pattern     *RecurrencePattern `gorm:"serializer:json"`
	StartDate   calendar.Date
	// ScheduledTime is an optional HH:MM in the owner's timezone.
	ScheduledTime string
	SubtaskCount  int
	IsActive      bool `gorm:"index"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

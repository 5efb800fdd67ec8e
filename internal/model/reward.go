package model

import (
	"time"

	"habit-planner/internal/calendar"
)

// CreditLedger holds the break-credit balance of a task.
type CreditLedger struct {
	TaskID    uint `gorm:"primaryKey;autoIncrement:false"`
	Balance   int
	Earned    int
	UpdatedAt time.Time
}

// CreditUse records a day forgiven by spending a break credit.
type CreditUse struct {
	ID        uint          `gorm:"primaryKey"`
	TaskID    uint          `gorm:"uniqueIndex:idx_credit_use_task_day;not null"`
	Day       calendar.Date `gorm:"uniqueIndex:idx_credit_use_task_day;not null"`
	CreatedAt time.Time
}

// Milestone is a streak threshold reached by a task.
type Milestone struct {
	ID           uint   `gorm:"primaryKey"`
	EventID      string `gorm:"uniqueIndex"`
	TaskID       uint   `gorm:"index"`
	StreakLength int
	AchievedAt   time.Time
	Seen         bool `gorm:"index"`
	CreatedAt    time.Time
}

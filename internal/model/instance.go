package model

import (
	"time"

	"habit-planner/internal/calendar"
)

// InstanceStatus is the lifecycle state of a task instance.
type InstanceStatus string

const (
	InstancePending   InstanceStatus = "pending"
	InstanceCompleted InstanceStatus = "completed"
	InstanceSkipped   InstanceStatus = "skipped"
)

// TaskInstance is one dated occurrence of a recurring task.
// (TaskID, DueDate) is unique; the materializer relies on it.
type TaskInstance struct {
	ID                uint          `gorm:"primaryKey"`
	TaskID            uint          `gorm:"uniqueIndex:idx_instance_task_due;not null"`
	DueDate           calendar.Date `gorm:"uniqueIndex:idx_instance_task_due;not null"`
	ScheduledTime     string
	Status            InstanceStatus `gorm:"index"`
	SubtasksCompleted int
	CompletedAt       *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Completion is an append-only record of a user finishing a task.
type Completion struct {
	ID                uint      `gorm:"primaryKey"`
	TaskID            uint      `gorm:"index"`
	InstanceID        *uint     `gorm:"index"`
	CompletedAt       time.Time `gorm:"index"`
	SubtasksCompleted int
	CreatedAt         time.Time
}

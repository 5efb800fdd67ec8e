package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"habit-planner/internal/calendar"
	"habit-planner/internal/model"
)

// ErrDuplicateInstance is returned when an instance for (task, due date)
// already exists.
var ErrDuplicateInstance = errors.New("instance already exists")

// InstanceRepository stores task instances. The unique (task_id, due_date)
// index is what keeps materialization idempotent across processes.
type InstanceRepository struct {
	db *gorm.DB
}

func NewInstanceRepository(db *gorm.DB) *InstanceRepository {
	return &InstanceRepository{db: db}
}

func (r *InstanceRepository) Exists(ctx context.Context, taskID uint, due calendar.Date) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.TaskInstance{}).
		Where("task_id = ? AND due_date = ?", taskID, due).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("check instance: %w", err)
	}
	return count > 0, nil
}

// InsertPending creates a pending instance, or returns ErrDuplicateInstance
// when one is already there.
func (r *InstanceRepository) InsertPending(ctx context.Context, taskID uint, due calendar.Date, scheduledTime string) error {
	inst := model.TaskInstance{
		TaskID:        taskID,
		DueDate:       due,
		ScheduledTime: scheduledTime,
		Status:        model.InstancePending,
	}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&inst)
	switch {
	case errors.Is(res.Error, gorm.ErrDuplicatedKey):
		return ErrDuplicateInstance
	case res.Error != nil:
		return fmt.Errorf("insert instance: %w", res.Error)
	case res.RowsAffected == 0:
		return ErrDuplicateInstance
	}
	return nil
}

func (r *InstanceRepository) Find(ctx context.Context, taskID uint, due calendar.Date) (*model.TaskInstance, error) {
	var inst model.TaskInstance
	if err := r.db.WithContext(ctx).Where("task_id = ? AND due_date = ?", taskID, due).First(&inst).Error; err != nil {
		return nil, err
	}
	return &inst, nil
}

// ListByTask returns instances of taskID due within [from, to].
func (r *InstanceRepository) ListByTask(ctx context.Context, taskID uint, from, to calendar.Date) ([]model.TaskInstance, error) {
	var out []model.TaskInstance
	if err := r.db.WithContext(ctx).
		Where("task_id = ? AND due_date >= ? AND due_date <= ?", taskID, from, to).
		Order("due_date ASC").
		Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list instances: %w", err)
	}
	return out, nil
}

// ListDueForUser returns the user's instances due on day, active tasks only.
func (r *InstanceRepository) ListDueForUser(ctx context.Context, userID uint, day calendar.Date) ([]model.TaskInstance, error) {
	var out []model.TaskInstance
	if err := r.db.WithContext(ctx).
		Joins("JOIN tasks ON tasks.id = task_instances.task_id").
		Where("tasks.user_id = ? AND tasks.is_active = ? AND task_instances.due_date = ?", userID, true, day).
		Order("task_instances.scheduled_time ASC, task_instances.task_id ASC").
		Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list due instances: %w", err)
	}
	return out, nil
}

// Complete marks the instance for (taskID, due) completed, creating it when
// the day was never materialized (off-schedule completion).
func (r *InstanceRepository) Complete(ctx context.Context, taskID uint, due calendar.Date, at time.Time, subtasks int) (*model.TaskInstance, error) {
	inst := model.TaskInstance{
		TaskID:            taskID,
		DueDate:           due,
		Status:            model.InstanceCompleted,
		SubtasksCompleted: subtasks,
		CompletedAt:       &at,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "task_id"}, {Name: "due_date"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "subtasks_completed", "completed_at", "updated_at"}),
	}).Create(&inst).Error
	if err != nil {
		return nil, fmt.Errorf("complete instance: %w", err)
	}
	return r.Find(ctx, taskID, due)
}

// Skip marks a pending instance skipped. Completed instances are left alone.
func (r *InstanceRepository) Skip(ctx context.Context, taskID uint, due calendar.Date) error {
	res := r.db.WithContext(ctx).Model(&model.TaskInstance{}).
		Where("task_id = ? AND due_date = ? AND status = ?", taskID, due, model.InstancePending).
		Update("status", model.InstanceSkipped)
	if res.Error != nil {
		return fmt.Errorf("skip instance: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

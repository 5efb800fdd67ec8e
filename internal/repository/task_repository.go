package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"habit-planner/internal/model"
)

// TaskRepository handles CRUD for tasks.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// Get loads a task regardless of its owner.
func (r *TaskRepository) Get(ctx context.Context, taskID uint) (*model.Task, error) {
	var task model.Task
	if err := r.db.WithContext(ctx).First(&task, taskID).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *TaskRepository) FindByID(ctx context.Context, userID, taskID uint) (*model.Task, error) {
	var task model.Task
	if err := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, taskID).First(&task).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *TaskRepository) ListByUser(ctx context.Context, userID uint, includeInactive bool) ([]model.Task, error) {
	var tasks []model.Task
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if !includeInactive {
		q = q.Where("is_active = ?", true)
	}
	if err := q.Order("created_at ASC").Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// ListActive returns every active task across users.
func (r *TaskRepository) ListActive(ctx context.Context) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).Where("is_active = ?", true).Order("id ASC").Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// Deactivate stops a task from producing new instances. Tasks are never
// hard-deleted because instances and completions reference them.
func (r *TaskRepository) Deactivate(ctx context.Context, userID, taskID uint) error {
	res := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("user_id = ? AND id = ?", userID, taskID).
		Update("is_active", false)
	if res.Error != nil {
		return fmt.Errorf("deactivate task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

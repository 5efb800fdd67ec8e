package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"habit-planner/internal/model"
)

// CompletionRepository is the append-only completion log.
type CompletionRepository struct {
	db *gorm.DB
}

func NewCompletionRepository(db *gorm.DB) *CompletionRepository {
	return &CompletionRepository{db: db}
}

func (r *CompletionRepository) Append(ctx context.Context, c *model.Completion) error {
	if err := r.db.WithContext(ctx).Create(c).Error; err != nil {
		return fmt.Errorf("append completion: %w", err)
	}
	return nil
}

// ListCompletions returns completion timestamps of taskID, oldest first.
func (r *CompletionRepository) ListCompletions(ctx context.Context, taskID uint) ([]time.Time, error) {
	var times []time.Time
	if err := r.db.WithContext(ctx).Model(&model.Completion{}).
		Where("task_id = ?", taskID).
		Order("completed_at ASC").
		Pluck("completed_at", &times).Error; err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}
	return times, nil
}

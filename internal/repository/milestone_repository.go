package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"habit-planner/internal/model"
)

// MilestoneRepository stores reached milestones and their seen flag.
type MilestoneRepository struct {
	db *gorm.DB
}

func NewMilestoneRepository(db *gorm.DB) *MilestoneRepository {
	return &MilestoneRepository{db: db}
}

// Create stores m, assigning an event ID when it has none.
func (r *MilestoneRepository) Create(ctx context.Context, m *model.Milestone) error {
	if m.EventID == "" {
		m.EventID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("create milestone: %w", err)
	}
	return nil
}

func (r *MilestoneRepository) ListByTask(ctx context.Context, taskID uint) ([]model.Milestone, error) {
	var out []model.Milestone
	if err := r.db.WithContext(ctx).Where("task_id = ?", taskID).Order("achieved_at ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list milestones: %w", err)
	}
	return out, nil
}

// ListUnseen returns the user's milestones not yet shown to them.
func (r *MilestoneRepository) ListUnseen(ctx context.Context, userID uint) ([]model.Milestone, error) {
	var out []model.Milestone
	if err := r.db.WithContext(ctx).
		Joins("JOIN tasks ON tasks.id = milestones.task_id").
		Where("tasks.user_id = ? AND milestones.seen = ?", userID, false).
		Order("milestones.achieved_at ASC").
		Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list unseen milestones: %w", err)
	}
	return out, nil
}

func (r *MilestoneRepository) MarkSeen(ctx context.Context, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Model(&model.Milestone{}).
		Where("id IN ?", ids).
		Update("seen", true).Error; err != nil {
		return fmt.Errorf("mark milestones seen: %w", err)
	}
	return nil
}

package service

import (
	"context"
	"log"

	"habit-planner/internal/model"
	"habit-planner/internal/reward"
)

// MilestoneNotifier receives milestone events as they are reached.
type MilestoneNotifier interface {
	NotifyMilestone(ctx context.Context, task model.Task, event reward.Event) error
}

// LogNotifier writes milestone events to the standard logger.
type LogNotifier struct{}

func (LogNotifier) NotifyMilestone(_ context.Context, task model.Task, event reward.Event) error {
	log.Printf("[info] milestone task=%d streak=%d at=%s", task.ID, event.StreakLength, event.AchievedAt.Format("2006-01-02"))
	return nil
}

package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"habit-planner/internal/calendar"
	"habit-planner/internal/model"
	"habit-planner/internal/recurrence"
	"habit-planner/internal/repository"
)

// TaskInput represents data required to create a task.
type TaskInput struct {
	Title         string
	Description   string
	Frequency     model.Frequency
	Pattern       *model.RecurrencePattern
	StartDate     calendar.Date
	ScheduledTime string
	SubtaskCount  int
}

// TaskService wraps task-related business logic.
type TaskService struct {
	taskRepo     *repository.TaskRepository
	materializer *Materializer
	horizonDays  int
	loc          *time.Location
}

func NewTaskService(taskRepo *repository.TaskRepository, materializer *Materializer, horizonDays int, loc *time.Location) *TaskService {
	if loc == nil {
		loc = time.UTC
	}
	return &TaskService{taskRepo: taskRepo, materializer: materializer, horizonDays: horizonDays, loc: loc}
}

// CreateTask validates the recurrence, stores the task and materializes its
// first instances.
func (s *TaskService) CreateTask(ctx context.Context, user *model.User, input TaskInput) (*model.Task, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, fmt.Errorf("title is required")
	}
	if input.Frequency == "" {
		input.Frequency = model.FrequencyDaily
	}
	if _, _, err := recurrence.FromPattern(input.Frequency, input.Pattern); err != nil {
		return nil, err
	}
	if input.ScheduledTime != "" {
		if _, err := buildDailySpec(input.ScheduledTime); err != nil {
			return nil, err
		}
	}
	if input.SubtaskCount < 0 {
		return nil, fmt.Errorf("subtask count must not be negative")
	}

	loc := user.Location(s.loc)
	start := input.StartDate
	if start.IsZero() {
		start = calendar.Today(time.Now(), loc)
	}

	task := model.Task{
		UserID:        user.ID,
		Title:         title,
		Description:   strings.TrimSpace(input.Description),
		Frequency:     input.Frequency,
		Pattern:       input.Pattern,
		StartDate:     start,
		ScheduledTime: input.ScheduledTime,
		SubtaskCount:  input.SubtaskCount,
		IsActive:      true,
	}
	if err := s.taskRepo.Create(ctx, &task); err != nil {
		return nil, err
	}

	if s.materializer != nil {
		today := calendar.Today(time.Now(), loc)
		if _, err := s.materializer.MaterializeTask(ctx, task, today, today.AddDays(s.horizonDays)); err != nil {
			log.Printf("materialize new task %d: %v", task.ID, err)
		}
	}

	return &task, nil
}

func (s *TaskService) ListActive(ctx context.Context, user *model.User) ([]model.Task, error) {
	return s.taskRepo.ListByUser(ctx, user.ID, false)
}

func (s *TaskService) GetTask(ctx context.Context, user *model.User, taskID uint) (*model.Task, error) {
	return s.taskRepo.FindByID(ctx, user.ID, taskID)
}

// DeactivateTask stops the task from producing instances; history is kept.
func (s *TaskService) DeactivateTask(ctx context.Context, user *model.User, taskID uint) error {
	return s.taskRepo.Deactivate(ctx, user.ID, taskID)
}

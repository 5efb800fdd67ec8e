package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"habit-planner/internal/calendar"
	"habit-planner/internal/model"
	"habit-planner/internal/recurrence"
	"habit-planner/internal/repository"
)

// InstanceStore is the storage the materializer writes to. InsertPending
// must return repository.ErrDuplicateInstance when (task, due date) exists.
type InstanceStore interface {
	Exists(ctx context.Context, taskID uint, due calendar.Date) (bool, error)
	InsertPending(ctx context.Context, taskID uint, due calendar.Date, scheduledTime string) error
}

// Materializer turns due dates into pending task instances.
type Materializer struct {
	store InstanceStore
	tasks *repository.TaskRepository
	users *repository.UserRepository
	loc   *time.Location
}

// NewMaterializer builds a Materializer. loc is used for users without a
// timezone of their own.
func NewMaterializer(store InstanceStore, tasks *repository.TaskRepository, users *repository.UserRepository, loc *time.Location) *Materializer {
	if loc == nil {
		loc = time.UTC
	}
	return &Materializer{store: store, tasks: tasks, users: users, loc: loc}
}

// Materialize creates a pending instance for each date that has none and
// returns how many were created. Existing instances are never touched, so
// repeated and concurrent runs converge on one instance per date.
func (m *Materializer) Materialize(ctx context.Context, taskID uint, dates []calendar.Date, scheduledTime string) (int, error) {
	created := 0
	for _, due := range dates {
		if err := ctx.Err(); err != nil {
			return created, err
		}
		exists, err := m.store.Exists(ctx, taskID, due)
		if err != nil {
			return created, fmt.Errorf("materialize task %d on %s: %w", taskID, due, err)
		}
		if exists {
			continue
		}
		err = m.store.InsertPending(ctx, taskID, due, scheduledTime)
		switch {
		case errors.Is(err, repository.ErrDuplicateInstance):
			continue
		case err != nil:
			return created, fmt.Errorf("materialize task %d on %s: %w", taskID, due, err)
		}
		created++
	}
	return created, nil
}

// MaterializeTask evaluates task over [from, to] and materializes the result.
func (m *Materializer) MaterializeTask(ctx context.Context, task model.Task, from, to calendar.Date) (int, error) {
	dates, err := recurrence.EvaluateTask(task, from, to)
	if err != nil {
		return 0, err
	}
	return m.Materialize(ctx, task.ID, dates, task.ScheduledTime)
}

// MaterializeAll materializes every active task from its owner's today up to
// horizonDays ahead. A failing task is logged and skipped.
func (m *Materializer) MaterializeAll(ctx context.Context, now time.Time, horizonDays int) (int, error) {
	tasks, err := m.tasks.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("list active tasks: %w", err)
	}

	locations := make(map[uint]*time.Location)
	total := 0
	for _, task := range tasks {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		loc, ok := locations[task.UserID]
		if !ok {
			loc = m.userLocation(ctx, task.UserID)
			locations[task.UserID] = loc
		}
		today := calendar.Today(now, loc)
		created, err := m.MaterializeTask(ctx, task, today, today.AddDays(max(horizonDays, 0)))
		total += created
		if err != nil {
			log.Printf("materialize task %d: %v", task.ID, err)
		}
	}
	log.Printf("[info] materialized %d instances for %d tasks", total, len(tasks))
	return total, nil
}

func (m *Materializer) userLocation(ctx context.Context, userID uint) *time.Location {
	if m.users == nil {
		return m.loc
	}
	user, err := m.users.FindByID(ctx, userID)
	if err != nil {
		return m.loc
	}
	return user.Location(m.loc)
}

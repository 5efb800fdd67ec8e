package repository

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"habit-planner/internal/calendar"
	"habit-planner/internal/model"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "data", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func seedTask(t *testing.T, db *gorm.DB) (*model.User, *model.Task) {
	t.Helper()
	ctx := context.Background()
	user, err := NewUserRepository(db).UpsertFromTelegram(ctx, 42, "Ann", "", "ann")
	require.NoError(t, err)
	task := &model.Task{
		UserID:    user.ID,
		Title:     "read",
		Frequency: model.FrequencyWeekly,
		Pattern:   &model.RecurrencePattern{DaysOfWeek: []int{1, 3}},
		StartDate: calendar.MustParse("2024-01-01"),
		IsActive:  true,
	}
	require.NoError(t, NewTaskRepository(db).Create(ctx, task))
	return user, task
}

func TestTaskRepositoryRoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	user, task := seedTask(t, db)
	repo := NewTaskRepository(db)

	got, err := repo.FindByID(ctx, user.ID, task.ID)
	require.NoError(t, err)
	assert.Equal(t, calendar.MustParse("2024-01-01"), got.StartDate)
	require.NotNil(t, got.Pattern)
	assert.Equal(t, []int{1, 3}, got.Pattern.DaysOfWeek)

	_, err = repo.FindByID(ctx, user.ID+1, task.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	require.NoError(t, repo.Deactivate(ctx, user.ID, task.ID))
	active, err := repo.ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := repo.ListByUser(ctx, user.ID, true)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	assert.ErrorIs(t, repo.Deactivate(ctx, user.ID, 999), gorm.ErrRecordNotFound)
}

func TestUserRepositoryTimezone(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewUserRepository(db)

	user, err := repo.UpsertFromTelegram(ctx, 7, "Bob", "", "")
	require.NoError(t, err)
	require.NoError(t, repo.SetTimezone(ctx, user.ID, "Asia/Tokyo"))

	got, err := repo.FindByTelegramID(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "Asia/Tokyo", got.Location(nil).String())
}

func TestInstanceRepositoryInsertPendingIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	_, task := seedTask(t, db)
	repo := NewInstanceRepository(db)
	due := calendar.MustParse("2024-01-03")

	require.NoError(t, repo.InsertPending(ctx, task.ID, due, "08:00"))
	err := repo.InsertPending(ctx, task.ID, due, "09:00")
	assert.ErrorIs(t, err, ErrDuplicateInstance)

	ok, err := repo.Exists(ctx, task.ID, due)
	require.NoError(t, err)
	assert.True(t, ok)

	inst, err := repo.Find(ctx, task.ID, due)
	require.NoError(t, err)
	assert.Equal(t, "08:00", inst.ScheduledTime)
	assert.Equal(t, model.InstancePending, inst.Status)
}

func TestInstanceRepositoryConcurrentInserts(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	_, task := seedTask(t, db)
	repo := NewInstanceRepository(db)
	due := calendar.MustParse("2024-01-08")

	var wg sync.WaitGroup
	var mu sync.Mutex
	created := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.InsertPending(ctx, task.ID, due, "")
			if err == nil {
				mu.Lock()
				created++
				mu.Unlock()
				return
			}
			assert.True(t, errors.Is(err, ErrDuplicateInstance), "unexpected error: %v", err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	list, err := repo.ListByTask(ctx, task.ID, due, due)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestInstanceRepositoryCompleteAndSkip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	user, task := seedTask(t, db)
	repo := NewInstanceRepository(db)
	monday := calendar.MustParse("2024-01-01")
	wednesday := calendar.MustParse("2024-01-03")
	at := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, repo.InsertPending(ctx, task.ID, monday, ""))
	inst, err := repo.Complete(ctx, task.ID, monday, at, 2)
	require.NoError(t, err)
	assert.Equal(t, model.InstanceCompleted, inst.Status)
	assert.Equal(t, 2, inst.SubtasksCompleted)

	// Completing a day that was never materialized creates it.
	offDay := calendar.MustParse("2024-01-02")
	inst, err = repo.Complete(ctx, task.ID, offDay, at.AddDate(0, 0, 1), 0)
	require.NoError(t, err)
	assert.Equal(t, offDay, inst.DueDate)

	// A completed instance cannot be skipped.
	assert.ErrorIs(t, repo.Skip(ctx, task.ID, monday), gorm.ErrRecordNotFound)

	require.NoError(t, repo.InsertPending(ctx, task.ID, wednesday, ""))
	require.NoError(t, repo.Skip(ctx, task.ID, wednesday))

	due, err := repo.ListDueForUser(ctx, user.ID, wednesday)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, model.InstanceSkipped, due[0].Status)
}

func TestCompletionRepositoryListsAscending(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	_, task := seedTask(t, db)
	repo := NewCompletionRepository(db)

	late := time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC)
	early := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Append(ctx, &model.Completion{TaskID: task.ID, CompletedAt: late}))
	require.NoError(t, repo.Append(ctx, &model.Completion{TaskID: task.ID, CompletedAt: early}))

	times, err := repo.ListCompletions(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, times, 2)
	assert.True(t, times[0].Equal(early))
	assert.True(t, times[1].Equal(late))
}

func TestCreditRepository(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	_, task := seedTask(t, db)
	repo := NewCreditRepository(db)

	balance, err := repo.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Zero(t, balance)

	require.NoError(t, repo.Set(ctx, task.ID, 2))
	require.NoError(t, repo.Set(ctx, task.ID, 1))
	require.NoError(t, repo.Set(ctx, task.ID, 3))

	ledger, err := repo.Ledger(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, ledger.Balance)
	assert.Equal(t, 4, ledger.Earned)

	assert.Error(t, repo.Set(ctx, task.ID, -1))

	day := calendar.MustParse("2024-01-04")
	spent, err := repo.Spend(ctx, task.ID, day)
	require.NoError(t, err)
	assert.True(t, spent)
	spent, err = repo.Spend(ctx, task.ID, day)
	require.NoError(t, err)
	assert.False(t, spent)

	forgiven, err := repo.ListForgiven(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, []calendar.Date{day}, forgiven)
}

func TestCreditRepositorySpendIsAllOrNothing(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	_, task := seedTask(t, db)
	repo := NewCreditRepository(db)
	monday := calendar.MustParse("2024-01-08")
	tuesday := calendar.MustParse("2024-01-09")

	// No balance: the day must not be recorded as forgiven.
	ok, err := repo.Spend(ctx, task.ID, monday)
	require.NoError(t, err)
	assert.False(t, ok)
	forgiven, err := repo.ListForgiven(ctx, task.ID)
	require.NoError(t, err)
	assert.Empty(t, forgiven)

	require.NoError(t, repo.Set(ctx, task.ID, 2))
	ok, err = repo.Spend(ctx, task.ID, monday)
	require.NoError(t, err)
	assert.True(t, ok)

	// Covering the same day twice keeps the credit.
	ok, err = repo.Spend(ctx, task.ID, monday)
	require.NoError(t, err)
	assert.False(t, ok)
	balance, err := repo.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, balance)

	ok, err = repo.Spend(ctx, task.ID, tuesday)
	require.NoError(t, err)
	assert.True(t, ok)

	forgiven, err = repo.ListForgiven(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, []calendar.Date{monday, tuesday}, forgiven)
	balance, err = repo.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Zero(t, balance)
}

func TestMilestoneRepository(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	user, task := seedTask(t, db)
	repo := NewMilestoneRepository(db)

	m := &model.Milestone{TaskID: task.ID, StreakLength: 7, AchievedAt: time.Now()}
	require.NoError(t, repo.Create(ctx, m))
	assert.NotEmpty(t, m.EventID)

	unseen, err := repo.ListUnseen(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, unseen, 1)
	assert.Equal(t, 7, unseen[0].StreakLength)

	require.NoError(t, repo.MarkSeen(ctx, []uint{m.ID}))
	unseen, err = repo.ListUnseen(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, unseen)

	all, err := repo.ListByTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.True(t, all[0].Seen)
}

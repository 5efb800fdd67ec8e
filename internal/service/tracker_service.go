package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"sync"
	"time"

	"habit-planner/internal/calendar"
	"habit-planner/internal/model"
	"habit-planner/internal/repository"
	"habit-planner/internal/reward"
	"habit-planner/internal/streak"
)

var (
	// ErrTaskInactive is returned when completing a deactivated task.
	ErrTaskInactive = errors.New("task is inactive")
	// ErrFutureDay is returned when a completion or a break credit falls on a
	// day after the owner's today.
	ErrFutureDay = errors.New("day is in the future")
)

// CompletionResult describes what a completion changed.
type CompletionResult struct {
	Instance      *model.TaskInstance
	Before        streak.State
	After         streak.State
	CreditsEarned int
	// Milestone is set when the completion crossed a threshold.
	Milestone *reward.Event
}

// TrackerService records completions and keeps streak, credit and milestone
// state in step with them.
type TrackerService struct {
	tasks       *repository.TaskRepository
	users       *repository.UserRepository
	instances   *repository.InstanceRepository
	completions *repository.CompletionRepository
	credits     *repository.CreditRepository
	milestones  *repository.MilestoneRepository
	creditMgr   *reward.CreditManager
	cache       *streak.Cache
	notifier    MilestoneNotifier
	loc         *time.Location
	clock       func() time.Time

	// mu serializes writes so a streak transition is observed exactly once.
	mu sync.Mutex
}

// TrackerDeps groups the repositories TrackerService works on.
type TrackerDeps struct {
	Tasks       *repository.TaskRepository
	Users       *repository.UserRepository
	Instances   *repository.InstanceRepository
	Completions *repository.CompletionRepository
	Credits     *repository.CreditRepository
	Milestones  *repository.MilestoneRepository
}

func NewTrackerService(deps TrackerDeps, cache *streak.Cache, notifier MilestoneNotifier, loc *time.Location) *TrackerService {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &TrackerService{
		tasks:       deps.Tasks,
		users:       deps.Users,
		instances:   deps.Instances,
		completions: deps.Completions,
		credits:     deps.Credits,
		milestones:  deps.Milestones,
		creditMgr:   reward.NewCreditManager(deps.Credits),
		cache:       cache,
		notifier:    notifier,
		loc:         loc,
		clock:       time.Now,
	}
}

// SetNotifier replaces the milestone sink.
func (s *TrackerService) SetNotifier(n MilestoneNotifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifier = n
}

// CompleteTask records a completion of taskID at the given instant. A
// completion on a day after the owner's today is rejected with ErrFutureDay.
func (s *TrackerService) CompleteTask(ctx context.Context, taskID uint, at time.Time, subtasks int) (*CompletionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, err := s.tasks.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !task.IsActive {
		return nil, ErrTaskInactive
	}
	if subtasks < 0 || (task.SubtaskCount > 0 && subtasks > task.SubtaskCount) {
		return nil, fmt.Errorf("subtasks completed must be between 0 and %d, got %d", task.SubtaskCount, subtasks)
	}

	loc := s.location(ctx, task.UserID)
	today := calendar.Today(s.clock(), loc)
	day := calendar.FromTime(at, loc)
	if day.After(today) {
		return nil, ErrFutureDay
	}

	before, err := s.compute(ctx, task, loc, today)
	if err != nil {
		return nil, err
	}

	inst, err := s.instances.Complete(ctx, task.ID, day, at, subtasks)
	if err != nil {
		return nil, err
	}
	if err := s.completions.Append(ctx, &model.Completion{
		TaskID:            task.ID,
		InstanceID:        &inst.ID,
		CompletedAt:       at,
		SubtasksCompleted: subtasks,
	}); err != nil {
		return nil, err
	}

	result := &CompletionResult{Instance: inst, Before: before}
	result.After, result.CreditsEarned, result.Milestone, err = s.advance(ctx, task, loc, today, before, at)
	if err != nil {
		return nil, err
	}

	log.Printf("[info] completion task=%d streak=%d->%d credits=+%d", task.ID, before.CurrentStreak, result.After.CurrentStreak, result.CreditsEarned)
	return result, nil
}

// advance recomputes the streak after a write, refreshes the cache and
// settles the rewards of the transition from before: credits are granted and
// a crossed milestone is stored and announced. Callers hold s.mu.
func (s *TrackerService) advance(ctx context.Context, task *model.Task, loc *time.Location, today calendar.Date, before streak.State, at time.Time) (streak.State, int, *reward.Event, error) {
	s.invalidate(task.ID)
	after, err := s.compute(ctx, task, loc, today)
	if err != nil {
		return streak.State{}, 0, nil, err
	}
	s.put(task.ID, today, after)

	earned, err := s.creditMgr.Accrue(ctx, task.ID, before.CurrentStreak, after.CurrentStreak)
	if err != nil {
		return streak.State{}, 0, nil, err
	}

	threshold, ok := reward.DetectMilestone(before.CurrentStreak, after.CurrentStreak)
	if !ok {
		return after, earned, nil, nil
	}
	event := reward.Event{TaskID: task.ID, StreakLength: threshold, AchievedAt: at}
	if err := s.milestones.Create(ctx, &model.Milestone{
		TaskID:       task.ID,
		StreakLength: threshold,
		AchievedAt:   at,
	}); err != nil {
		return streak.State{}, 0, nil, err
	}
	if err := s.notifier.NotifyMilestone(ctx, *task, event); err != nil {
		log.Printf("notify milestone task=%d: %v", task.ID, err)
	}
	return after, earned, &event, nil
}

// Streak returns the streak state of taskID as of now, in the owner's timezone.
func (s *TrackerService) Streak(ctx context.Context, taskID uint, now time.Time) (streak.State, error) {
	task, err := s.tasks.Get(ctx, taskID)
	if err != nil {
		return streak.State{}, err
	}
	loc := s.location(ctx, task.UserID)
	today := calendar.Today(now, loc)

	// Held across compute and put so a state read before a concurrent write
	// cannot be cached after that write invalidated the task.
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cache != nil {
		if state, ok := s.cache.Get(taskID, today); ok {
			return state, nil
		}
	}
	state, err := s.compute(ctx, task, loc, today)
	if err != nil {
		return streak.State{}, err
	}
	s.put(taskID, today, state)
	return state, nil
}

// CreditBalance returns the unspent break credits of taskID.
func (s *TrackerService) CreditBalance(ctx context.Context, taskID uint) (int, error) {
	return s.creditMgr.Balance(ctx, taskID)
}

// UseBreakCredit spends one credit to cover day. It returns false when no
// credit is available, the day is already covered, the day has a completion
// of its own or the day precedes the task's start. A bridged streak earns
// credits and milestones the same way a completion does.
func (s *TrackerService) UseBreakCredit(ctx context.Context, taskID uint, day calendar.Date) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, err := s.tasks.Get(ctx, taskID)
	if err != nil {
		return false, err
	}
	now := s.clock()
	loc := s.location(ctx, task.UserID)
	today := calendar.Today(now, loc)
	if day.After(today) {
		return false, ErrFutureDay
	}
	if !task.StartDate.IsZero() && day.Before(task.StartDate) {
		return false, nil
	}

	times, err := s.completions.ListCompletions(ctx, taskID)
	if err != nil {
		return false, err
	}
	if slices.ContainsFunc(times, func(t time.Time) bool { return calendar.FromTime(t, loc).Equal(day) }) {
		return false, nil
	}

	before, err := s.compute(ctx, task, loc, today)
	if err != nil {
		return false, err
	}
	// A bridge restores the streak that stood before the gap; only lengths
	// beyond it are new.
	held, err := s.compute(ctx, task, loc, day.AddDays(-1))
	if err != nil {
		return false, err
	}
	if held.CurrentStreak > before.CurrentStreak {
		before = held
	}
	ok, err := s.creditMgr.Spend(ctx, taskID, day)
	if err != nil || !ok {
		return false, err
	}
	after, earned, _, err := s.advance(ctx, task, loc, today, before, now)
	if err != nil {
		return false, err
	}
	log.Printf("[info] break credit used task=%d day=%s streak=%d->%d credits=+%d", taskID, day, before.CurrentStreak, after.CurrentStreak, earned)
	return true, nil
}

// SkipInstance marks the pending instance of taskID on day as skipped.
func (s *TrackerService) SkipInstance(ctx context.Context, taskID uint, day calendar.Date) error {
	return s.instances.Skip(ctx, taskID, day)
}

// UnseenMilestones lists milestones of userID not yet shown.
func (s *TrackerService) UnseenMilestones(ctx context.Context, userID uint) ([]model.Milestone, error) {
	return s.milestones.ListUnseen(ctx, userID)
}

func (s *TrackerService) MarkMilestonesSeen(ctx context.Context, ids []uint) error {
	return s.milestones.MarkSeen(ctx, ids)
}

func (s *TrackerService) compute(ctx context.Context, task *model.Task, loc *time.Location, today calendar.Date) (streak.State, error) {
	times, err := s.completions.ListCompletions(ctx, task.ID)
	if err != nil {
		return streak.State{}, err
	}
	forgiven, err := s.credits.ListForgiven(ctx, task.ID)
	if err != nil {
		return streak.State{}, err
	}
	in := streak.Input{
		Completions:        times,
		Frequency:          task.Frequency,
		CustomIntervalDays: streak.CustomIntervalDays(task.Pattern),
		Today:              today,
		Location:           loc,
		Forgiven:           forgiven,
	}
	if !task.StartDate.IsZero() {
		start := task.StartDate
		in.StartDate = &start
	}
	return streak.Calculate(in), nil
}

func (s *TrackerService) location(ctx context.Context, userID uint) *time.Location {
	if s.users == nil {
		return s.loc
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return s.loc
	}
	return user.Location(s.loc)
}

func (s *TrackerService) invalidate(taskID uint) {
	if s.cache != nil {
		s.cache.Invalidate(taskID)
	}
}

func (s *TrackerService) put(taskID uint, today calendar.Date, state streak.State) {
	if s.cache != nil {
		s.cache.Put(taskID, today, state)
	}
}

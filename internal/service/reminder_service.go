package service

import (
	"context"
	"fmt"
	"html"
	"log"
	"sort"
	"strings"
	"time"

	"habit-planner/internal/calendar"
	"habit-planner/internal/model"
	"habit-planner/internal/recurrence"
	"habit-planner/internal/repository"
)

// ReminderService builds human-readable summaries for daily notifications.
type ReminderService struct {
	taskRepo     *repository.TaskRepository
	instanceRepo *repository.InstanceRepository
	tracker      *TrackerService
	loc          *time.Location
}

func NewReminderService(taskRepo *repository.TaskRepository, instanceRepo *repository.InstanceRepository, tracker *TrackerService, loc *time.Location) *ReminderService {
	if loc == nil {
		loc = time.UTC
	}
	return &ReminderService{taskRepo: taskRepo, instanceRepo: instanceRepo, tracker: tracker, loc: loc}
}

// DailySummary lists what the user has due today with each task's streak,
// followed by the next due date of tasks with nothing due today.
func (s *ReminderService) DailySummary(ctx context.Context, user model.User, now time.Time) (string, error) {
	loc := user.Location(s.loc)
	today := calendar.Today(now, loc)

	tasks, err := s.taskRepo.ListByUser(ctx, user.ID, false)
	if err != nil {
		return "", err
	}
	due, err := s.instanceRepo.ListDueForUser(ctx, user.ID, today)
	if err != nil {
		return "", err
	}

	byID := make(map[uint]model.Task, len(tasks))
	for _, task := range tasks {
		byID[task.ID] = task
	}

	var builder strings.Builder
	builder.WriteString("📋 <b>Ежедневный отчёт</b>\n")
	builder.WriteString(fmt.Sprintf("🗓 %s\n\n", today.Time(loc).Format("02.01.2006")))

	builder.WriteString("🔥 <b>На сегодня</b>\n")
	dueToday := make(map[uint]bool, len(due))
	if len(due) == 0 {
		builder.WriteString("— ничего не запланировано\n")
	}
	for _, inst := range due {
		task, ok := byID[inst.TaskID]
		if !ok {
			continue
		}
		dueToday[task.ID] = true
		builder.WriteString(s.formatInstance(ctx, task, inst, now))
	}

	var upcoming []upcomingTask
	for _, task := range tasks {
		if dueToday[task.ID] {
			continue
		}
		next, ok := nextDue(task, today)
		if !ok {
			continue
		}
		upcoming = append(upcoming, upcomingTask{task: task, next: next})
	}
	sort.SliceStable(upcoming, func(i, j int) bool {
		if !upcoming[i].next.Equal(upcoming[j].next) {
			return upcoming[i].next.Before(upcoming[j].next)
		}
		return upcoming[i].task.ID < upcoming[j].task.ID
	})

	builder.WriteString("\n♻️ <b>Ближайшие</b>\n")
	if len(upcoming) == 0 {
		builder.WriteString("— нет запланированных задач\n")
	}
	for _, u := range upcoming {
		builder.WriteString(fmt.Sprintf("♻️ #%d %s\n   📆 %s\n", u.task.ID, html.EscapeString(strings.TrimSpace(u.task.Title)), u.next))
	}

	return strings.TrimSpace(builder.String()), nil
}

type upcomingTask struct {
	task model.Task
	next calendar.Date
}

func (s *ReminderService) formatInstance(ctx context.Context, task model.Task, inst model.TaskInstance, now time.Time) string {
	var sb strings.Builder

	icon := "🟢"
	switch inst.Status {
	case model.InstanceCompleted:
		icon = "✅"
	case model.InstanceSkipped:
		icon = "⏭️"
	}
	sb.WriteString(fmt.Sprintf("%s #%d %s", icon, task.ID, html.EscapeString(strings.TrimSpace(task.Title))))
	if inst.ScheduledTime != "" {
		sb.WriteString(fmt.Sprintf(" <i>(%s)</i>", inst.ScheduledTime))
	}

	if s.tracker != nil {
		state, err := s.tracker.Streak(ctx, task.ID, now)
		if err != nil {
			log.Printf("streak for task %d: %v", task.ID, err)
		} else {
			sb.WriteString(fmt.Sprintf("\n   🔥 Серия: %d · рекорд %d", state.CurrentStreak, state.LongestStreak))
		}
		if credits, err := s.tracker.CreditBalance(ctx, task.ID); err == nil && credits > 0 {
			sb.WriteString(fmt.Sprintf(" · ❄️ %d", credits))
		}
	}

	if task.SubtaskCount > 0 {
		sb.WriteString(fmt.Sprintf("\n   📝 Подзадачи: %d/%d", inst.SubtasksCompleted, task.SubtaskCount))
	}

	sb.WriteByte('\n')
	return sb.String()
}

func nextDue(task model.Task, today calendar.Date) (calendar.Date, bool) {
	rule, filter, err := recurrence.FromPattern(task.Frequency, task.Pattern)
	if err != nil {
		return calendar.Date{}, false
	}
	next, ok, err := recurrence.Next(rule, filter, today, task.StartDate)
	if err != nil {
		return calendar.Date{}, false
	}
	return next, ok
}

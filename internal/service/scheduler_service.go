package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is a scheduled unit of work. It receives a context bounded by the
// scheduler's job timeout.
type Job func(ctx context.Context) error

// SchedulerService wraps cron-based jobs.
type SchedulerService struct {
	cron    *cron.Cron
	timeout time.Duration
}

func NewSchedulerService(loc *time.Location, timeout time.Duration) *SchedulerService {
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &SchedulerService{
		cron:    cron.New(cron.WithLocation(loc), cron.WithSeconds()),
		timeout: timeout,
	}
}

// ScheduleDaily registers a daily job at the given HH:MM time string.
func (s *SchedulerService) ScheduleDaily(name, timeStr string, job Job) (cron.EntryID, error) {
	spec, err := buildDailySpec(timeStr)
	if err != nil {
		return 0, err
	}
	return s.cron.AddFunc(spec, s.wrap(name, job))
}

// ScheduleInterval registers a periodic job every given duration.
func (s *SchedulerService) ScheduleInterval(name string, interval time.Duration, job Job) (cron.EntryID, error) {
	if interval <= 0 {
		return 0, fmt.Errorf("interval must be positive")
	}
	// Convert to cron spec: every N seconds.
	seconds := max(int(interval.Seconds()), 1)
	spec := fmt.Sprintf("@every %ds", seconds)
	return s.cron.AddFunc(spec, s.wrap(name, job))
}

// Entries returns the number of registered jobs.
func (s *SchedulerService) Entries() int {
	return len(s.cron.Entries())
}

func (s *SchedulerService) Start() {
	s.cron.Start()
}

func (s *SchedulerService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *SchedulerService) wrap(name string, job Job) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		started := time.Now()
		if err := job(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("job %s: %v", name, err)
			return
		}
		log.Printf("[info] job %s done in %s", name, time.Since(started).Round(time.Millisecond))
	}
}

func buildDailySpec(timeStr string) (string, error) {
	parts := strings.Split(timeStr, ":")
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid time %q, expected HH:MM", timeStr)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return "", fmt.Errorf("invalid hour in %q", timeStr)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return "", fmt.Errorf("invalid minute in %q", timeStr)
	}
	// cron format: second minute hour dom month dow
	return fmt.Sprintf("0 %d %d * * *", minute, hour), nil
}

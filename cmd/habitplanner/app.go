package main

import (
	"database/sql"
	"fmt"
	"time"

	"habit-planner/internal/config"
	"habit-planner/internal/repository"
	"habit-planner/internal/service"
	"habit-planner/internal/streak"
)

// app holds the wired services shared by every subcommand.
type app struct {
	cfg          config.Config
	loc          *time.Location
	sqlDB        *sql.DB
	users        *repository.UserRepository
	materializer *service.Materializer
	tracker      *service.TrackerService
	taskSvc      *service.TaskService
	reminderSvc  *service.ReminderService
}

func newApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}

	userRepo := repository.NewUserRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	instanceRepo := repository.NewInstanceRepository(db)

	cache, err := streak.NewCache(streak.DefaultCacheSize)
	if err != nil {
		return nil, err
	}

	tracker := service.NewTrackerService(service.TrackerDeps{
		Tasks:       taskRepo,
		Users:       userRepo,
		Instances:   instanceRepo,
		Completions: repository.NewCompletionRepository(db),
		Credits:     repository.NewCreditRepository(db),
		Milestones:  repository.NewMilestoneRepository(db),
	}, cache, service.LogNotifier{}, loc)
	materializer := service.NewMaterializer(instanceRepo, taskRepo, userRepo, loc)

	return &app{
		cfg:          cfg,
		loc:          loc,
		sqlDB:        sqlDB,
		users:        userRepo,
		materializer: materializer,
		tracker:      tracker,
		taskSvc:      service.NewTaskService(taskRepo, materializer, cfg.HorizonDays, loc),
		reminderSvc:  service.NewReminderService(taskRepo, instanceRepo, tracker, loc),
	}, nil
}

func (a *app) Close() error {
	return a.sqlDB.Close()
}

package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"habit-planner/internal/bot"
	"habit-planner/internal/service"
)

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Telegram bot with scheduled materialization and reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.cfg.RequireTelegram(); err != nil {
				return err
			}

			telegramBot, err := bot.New(a.cfg.TelegramToken, a.users, a.taskSvc, a.tracker, a.reminderSvc, a.loc)
			if err != nil {
				return err
			}
			a.tracker.SetNotifier(telegramBot)

			scheduler := service.NewSchedulerService(a.loc, 5*time.Minute)
			if _, err := scheduler.ScheduleDaily("materialize", a.cfg.MaterializeAt, func(ctx context.Context) error {
				_, err := a.materializer.MaterializeAll(ctx, time.Now(), a.cfg.HorizonDays)
				return err
			}); err != nil {
				return err
			}
			if _, err := scheduler.ScheduleInterval("report", a.cfg.ReportInterval, telegramBot.SendDailyReports); err != nil {
				return err
			}
			scheduler.Start()
			defer scheduler.Stop()

			// Catch up on anything missed while the process was down.
			if _, err := a.materializer.MaterializeAll(ctx, time.Now(), a.cfg.HorizonDays); err != nil {
				log.Printf("initial materialize: %v", err)
			}

			log.Println("Habit planner bot started.")
			if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			log.Println("Shutdown complete.")
			return nil
		},
	}
}

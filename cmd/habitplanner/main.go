package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:          "habitplanner",
		Short:        "Habit planner: recurring tasks, streaks and break credits over Telegram",
		Version:      Version,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "optional YAML config file")

	rootCmd.AddCommand(serveCmd(&configPath))
	rootCmd.AddCommand(materializeCmd(&configPath))
	rootCmd.AddCommand(streakCmd(&configPath))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

func streakCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "streak [task-id]",
		Short: "Print the streak state of a task as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid task id %q", args[0])
			}

			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			state, err := a.tracker.Streak(cmd.Context(), uint(taskID), time.Now())
			if err != nil {
				return err
			}
			credits, err := a.tracker.CreditBalance(cmd.Context(), uint(taskID))
			if err != nil {
				return err
			}

			out := struct {
				TaskID  uint `json:"task_id"`
				Credits int  `json:"break_credits"`
				State   any  `json:"streak"`
			}{TaskID: uint(taskID), Credits: credits, State: state}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
}

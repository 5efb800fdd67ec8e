package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func materializeCmd(configPath *string) *cobra.Command {
	var horizon int

	cmd := &cobra.Command{
		Use:   "materialize",
		Short: "Create pending instances for every active task up to the horizon",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			if horizon <= 0 {
				horizon = a.cfg.HorizonDays
			}
			created, err := a.materializer.MaterializeAll(cmd.Context(), time.Now(), horizon)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %d instances (horizon %d days)\n", created, horizon)
			return nil
		},
	}

	cmd.Flags().IntVar(&horizon, "horizon", 0, "days ahead to materialize (defaults to HORIZON_DAYS)")
	return cmd
}

package main

import (
	"fmt"
	"strconv"

	"cleanrate/app/services"

	"github.com/spf13/cobra"
)

func rateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rate <task-id> <rating>",
		Short: "Record a leaf task rating and propagate it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rating, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("rating must be an integer: %w", err)
			}
			repo, closeRepo, err := openRepository(cmd.Context(), cfg.Storage)
			if err != nil {
				return err
			}
			defer closeRepo()

			result, err := services.NewEngine(repo, retryPolicy(cfg.Propagation)).RecordLeafRating(cmd.Context(), args[0], rating)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "task %s rated %d, propagated: %t\n", args[0], rating, result.Propagated)
			return nil
		},
	}
}

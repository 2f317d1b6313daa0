package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// solveCMD runs one chain in the foreground and prints its trace.
func solveCMD(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "solve <url>",
		Short: "Solve a quiz chain synchronously and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			d, err := loadDeps(ctx, *cfgPath, false)
			if err != nil {
				return err
			}
			defer d.Close(context.Background())

			result := d.solver.Solve(ctx, args[0])
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}
}

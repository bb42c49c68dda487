package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"scriptsync/internal/config"
	"scriptsync/internal/logging"
	"scriptsync/internal/logs"
	"scriptsync/internal/runstore"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var (
		lines  int
		follow bool
	)
	cmd := &cobra.Command{
		Use:   "logs <run-id>",
		Short: "Print a run's log, optionally following it until the run finishes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *runstore.Store) error {
				run, err := resolveRun(cmd.Context(), store, args[0])
				if err != nil {
					return err
				}
				path := logging.RunLogPath(cfg.Paths.LogDir, run.ID)
				result, err := logs.Last(path, lines)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, line := range result.Lines {
					fmt.Fprintln(out, line)
				}
				if !follow || run.IsTerminal() {
					return nil
				}

				followCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
				defer stop()
				finished := func() bool {
					current, err := store.GetRun(context.WithoutCancel(followCtx), run.ID)
					return err != nil || current.IsTerminal()
				}
				return logs.Follow(followCtx, path, result.Offset, finished, func(line string) {
					fmt.Fprintln(out, line)
				})
			})
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to print")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines while the run is in progress")
	return cmd
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"scriptsync/internal/preflight"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	var skipOracle bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check directories, external tools, credentials and oracle reachability",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			if ctx.configPath != "" {
				fmt.Fprintln(out, renderStatusLine("Config", statusInfo, ctx.configPath, colorize))
			}

			results := preflight.RunAll(cmd.Context(), cfg, preflight.Options{Oracle: !skipOracle})
			fmt.Fprintln(out, renderSectionHeader("Environment", colorize))
			for _, r := range results {
				fmt.Fprintln(out, renderResult(r, colorize))
			}
			if skipOracle {
				fmt.Fprintln(out, renderStatusLine("Oracle", statusWarn, "skipped", colorize))
			}

			if failed := preflight.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%d check(s) failed", len(failed))
			}
			fmt.Fprintln(out, "All checks passed")
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipOracle, "skip-oracle", false, "Skip the live oracle request")
	return cmd
}

func renderResult(r preflight.Result, colorize bool) string {
	kind := statusOK
	if !r.Passed {
		kind = statusError
	}
	return renderStatusLine(r.Name, kind, r.Detail, colorize)
}

package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var logLevelFlag string
	var verboseFlag bool

	ctx := newCommandContext(&configFlag, &logLevelFlag, &verboseFlag)

	rootCmd := &cobra.Command{
		Use:           "scriptsync",
		Short:         "Align a video transcript with its script and write subtitles",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Override logging.level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&verboseFlag, "verbose", false, "Shorthand for --log-level debug")

	rootCmd.AddCommand(newRunCommand(ctx))
	rootCmd.AddCommand(newTranscribeCommand(ctx))
	rootCmd.AddCommand(newExtractCommand(ctx))
	rootCmd.AddCommand(newAlignCommand(ctx))
	rootCmd.AddCommand(newReparseCommand(ctx))
	rootCmd.AddCommand(newRunsCommand(ctx))
	rootCmd.AddCommand(newUsageCommand(ctx))
	rootCmd.AddCommand(newLogsCommand(ctx))
	rootCmd.AddCommand(newDoctorCommand(ctx))
	rootCmd.AddCommand(newTestNotifyCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}

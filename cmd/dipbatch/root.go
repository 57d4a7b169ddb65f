package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"dipbatch/internal/logging"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var logLevelFlag string
	var verbose, quiet int

	ctx := newCommandContext(&configFlag, &logLevelFlag, &verbose, &quiet)

	rootCmd := &cobra.Command{
		Use:           "dipbatch",
		Short:         "Create DIPs for every AIP in an Archivematica storage location",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if logLevelFlag != "" && !logging.ValidLevel(logLevelFlag) {
				return fmt.Errorf("invalid --log-level %q (use debug, info, warn or error)", logLevelFlag)
			}
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

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	flags.StringVar(&logLevelFlag, "log-level", "", "Log level (debug, info, warn, error); overrides -v/-q")
	flags.CountVarP(&verbose, "verbose", "v", "Increase log verbosity")
	flags.CountVarP(&quiet, "quiet", "q", "Decrease log verbosity (repeatable)")

	rootCmd.AddCommand(newRunCommand(ctx))
	rootCmd.AddCommand(newUploadCommand(ctx))
	rootCmd.AddCommand(newLedgerCommand(ctx))
	rootCmd.AddCommand(newPreflightCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}

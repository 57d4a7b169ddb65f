package main

import (
	"github.com/spf13/cobra"

	"dipbatch/internal/preflight"
	"dipbatch/internal/storageservice"
)

func newPreflightCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "preflight",
		Short: "Check Storage Service access, directories, and external commands",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client, err := storageservice.NewFromConfig(cfg)
			if err != nil {
				return err
			}
			results := preflight.RunAll(cmd.Context(), cfg, client)
			printChecks(cmd, results)
			if preflight.Failed(results) {
				return withExitCode(1, nil)
			}
			return nil
		},
	}
}

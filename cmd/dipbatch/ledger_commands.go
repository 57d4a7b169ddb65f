package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"dipbatch/internal/config"
	"dipbatch/internal/ledger"
)

func newLedgerCommand(ctx *commandContext) *cobra.Command {
	var databaseFile string

	ledgerCmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect the ledger of claimed AIPs",
	}
	ledgerCmd.PersistentFlags().StringVar(&databaseFile, "database-file", "", "Ledger database file (defaults to batch.database_file)")

	ledgerCmd.AddCommand(newLedgerListCommand(ctx, &databaseFile))
	ledgerCmd.AddCommand(newLedgerShowCommand(ctx, &databaseFile))
	return ledgerCmd
}

func openLedger(cmd *cobra.Command, ctx *commandContext, databaseFile string) (*ledger.Store, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	path := cfg.Batch.DatabaseFile
	if strings.TrimSpace(databaseFile) != "" {
		if path, err = config.ExpandPath(strings.TrimSpace(databaseFile)); err != nil {
			return nil, err
		}
	}
	if path == "" {
		return nil, fmt.Errorf("batch.database_file is required")
	}
	store, err := ledger.Open(cmd.Context(), path)
	if err != nil {
		return nil, withExitCode(exitLedgerFailure, err)
	}
	return store, nil
}

func newLedgerListCommand(ctx *commandContext, databaseFile *string) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List claimed AIPs in claim order",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openLedger(cmd, ctx, *databaseFile)
			if err != nil {
				return err
			}
			defer store.Close()

			claims, err := store.List(cmd.Context())
			if err != nil {
				return withExitCode(exitLedgerFailure, err)
			}
			if jsonOutput {
				if claims == nil {
					claims = []ledger.Claim{}
				}
				return writeJSON(cmd, claims)
			}

			out := cmd.OutOrStdout()
			if len(claims) == 0 {
				fmt.Fprintln(out, "No AIPs claimed")
				return nil
			}
			rows := make([][]string, 0, len(claims))
			for i, claim := range claims {
				rows = append(rows, []string{
					strconv.Itoa(i + 1),
					claim.Identifier,
					claim.ClaimedAt.Local().Format(time.DateTime),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"#", "AIP", "Claimed"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft},
				isTerminal(out),
			))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print claims as JSON")
	return cmd
}

func newLedgerShowCommand(ctx *commandContext, databaseFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "show <aip-uuid>",
		Short: "Show whether an AIP has been claimed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openLedger(cmd, ctx, *databaseFile)
			if err != nil {
				return err
			}
			defer store.Close()

			id := strings.TrimSpace(args[0])
			claim, ok, err := store.Claimed(cmd.Context(), id)
			if err != nil {
				return withExitCode(exitLedgerFailure, err)
			}
			if !ok {
				return fmt.Errorf("AIP %s has not been claimed", id)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "AIP %s claimed at %s\n", claim.Identifier, claim.ClaimedAt.Local().Format(time.RFC3339))
			return nil
		},
	}
}

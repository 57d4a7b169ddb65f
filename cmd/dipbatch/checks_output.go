package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"dipbatch/internal/preflight"
)

func printChecks(cmd *cobra.Command, results []preflight.Result) {
	out := cmd.OutOrStdout()
	colorize := isTerminal(out)
	for _, result := range results {
		fmt.Fprintln(out, renderCheckLine(result.Name, result.Passed, result.Detail, colorize))
	}
}

package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"dipbatch/internal/batch"
	"dipbatch/internal/config"
	"dipbatch/internal/logging"
	"dipbatch/internal/preflight"
	"dipbatch/internal/storageservice"
)

const (
	exitLedgerFailure  = 1
	exitListingFailure = 2
)

type runOptions struct {
	locationUUID    string
	databaseFile    string
	tmpDir          string
	outputDir       string
	uploadType      string
	deleteLocalCopy bool
	exclusive       bool
	preflight       bool
	jsonOutput      bool
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Create DIPs for every unprocessed AIP in a storage location",
		Long: "Lists the AIPs held by the Storage Service, keeps those stored in the\n" +
			"configured location, claims each one in the ledger, builds its DIP and\n" +
			"optionally uploads it. Already claimed AIPs are skipped.\n\n" +
			"Exit codes: 0 success, 1 ledger failure, 2 AIP listing failure.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := applyRunOverrides(cmd, cfg, opts); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return err
			}

			logger, closeLog, err := ctx.newLogger(cmd, cfg)
			if err != nil {
				return err
			}
			defer closeLog()
			logging.PruneOldLogs(logger, cfg.Logging.Dir, "*.log", cfg.LogFilePath(), cfg.Logging.RetentionDays)

			if opts.preflight {
				client, err := storageservice.NewFromConfig(cfg)
				if err != nil {
					return err
				}
				results := preflight.RunAll(cmd.Context(), cfg, client)
				if preflight.Failed(results) {
					printChecks(cmd, results)
					return errors.New("preflight checks failed; nothing was claimed")
				}
			}

			driver, err := batch.NewFromConfig(cfg, logger)
			if err != nil {
				return err
			}
			summary, runErr := driver.Run(cmd.Context())
			if opts.jsonOutput {
				if err := writeJSON(cmd, summary); err != nil {
					return err
				}
			} else if runErr == nil {
				printSummary(cmd, summary)
			}
			return runExitError(runErr)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.locationUUID, "location-uuid", "", "UUID of the AIP storage location")
	flags.StringVar(&opts.databaseFile, "database-file", "", "Ledger database file")
	flags.StringVar(&opts.tmpDir, "tmp-dir", "", "Temporary directory for DIP creation")
	flags.StringVar(&opts.outputDir, "output-dir", "", "Directory receiving created DIPs")
	flags.StringVar(&opts.uploadType, "upload-type", "", "Upload created DIPs: ss-upload or atom-upload")
	flags.BoolVar(&opts.deleteLocalCopy, "delete-local-copy", false, "Delete the local DIP after upload; ss-upload applies ss_upload.delete_policy (on_success or always)")
	flags.BoolVar(&opts.exclusive, "exclusive", false, "Refuse to start while another run uses the same ledger")
	flags.BoolVar(&opts.preflight, "preflight", false, "Run readiness checks before claiming anything")
	flags.BoolVar(&opts.jsonOutput, "json", false, "Print the run summary as JSON")
	return cmd
}

// applyRunOverrides copies explicitly set flags onto cfg.
func applyRunOverrides(cmd *cobra.Command, cfg *config.Config, opts runOptions) error {
	flags := cmd.Flags()
	if flags.Changed("location-uuid") {
		cfg.Batch.LocationUUID = opts.locationUUID
	}
	if flags.Changed("database-file") {
		cfg.Batch.DatabaseFile = opts.databaseFile
	}
	if flags.Changed("tmp-dir") {
		cfg.Batch.TmpDir = opts.tmpDir
	}
	if flags.Changed("output-dir") {
		cfg.Batch.OutputDir = opts.outputDir
	}
	if flags.Changed("upload-type") {
		cfg.Batch.UploadType = opts.uploadType
	}
	if flags.Changed("delete-local-copy") {
		cfg.Batch.DeleteLocalCopy = opts.deleteLocalCopy
	}
	if flags.Changed("exclusive") {
		cfg.Batch.Exclusive = opts.exclusive
	}
	// Flag values get the same trimming and path expansion as file values.
	return cfg.Normalize()
}

func runExitError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, batch.ErrListing):
		return withExitCode(exitListingFailure, err)
	case errors.Is(err, batch.ErrLedger), errors.Is(err, batch.ErrLocked):
		return withExitCode(exitLedgerFailure, err)
	default:
		return err
	}
}

var summaryOrder = []batch.ItemStatus{
	batch.StatusUploaded,
	batch.StatusCreated,
	batch.StatusAlreadyClaimed,
	batch.StatusCreationFailed,
	batch.StatusUploadFailed,
}

func printSummary(cmd *cobra.Command, summary batch.Summary) {
	out := cmd.OutOrStdout()
	boxed := isTerminal(out)

	counts := summary.Counts()
	rows := [][]string{
		{"Listed", strconv.Itoa(summary.Listed)},
		{"Selected", strconv.Itoa(summary.Selected)},
		{"Skipped", strconv.Itoa(summary.Skipped)},
	}
	for _, status := range summaryOrder {
		rows = append(rows, []string{titleLabel(string(status)), strconv.Itoa(counts[status])})
	}
	fmt.Fprintln(out, renderTable([]string{"Outcome", "AIPs"}, rows, []columnAlignment{alignLeft, alignRight}, boxed))

	var failed [][]string
	for _, item := range summary.Items {
		if item.Status == batch.StatusCreationFailed || item.Status == batch.StatusUploadFailed {
			failed = append(failed, []string{item.AIPUUID, titleLabel(string(item.Status)), item.Detail})
		}
	}
	if len(failed) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, renderTable([]string{"AIP", "Status", "Detail"}, failed, nil, boxed))
	}
}

package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"dipbatch/internal/config"
	"dipbatch/internal/logging"
	"dipbatch/internal/ssupload"
	"dipbatch/internal/storageservice"
)

type uploadOptions struct {
	dipPath         string
	aipUUID         string
	pipelineUUID    string
	cpLocationUUID  string
	dsLocationUUID  string
	sharedDirectory string
	deleteLocalCopy bool
	jsonOutput      bool
}

type uploadResult struct {
	Outcome       string   `json:"outcome"`
	ExitCode      int      `json:"exit_code"`
	DIPPath       string   `json:"dip_path"`
	StagingPath   string   `json:"staging_path"`
	PackageUUID   string   `json:"package_uuid,omitempty"`
	JobURL        string   `json:"job_url,omitempty"`
	Error         string   `json:"error,omitempty"`
	SourceRemoved bool     `json:"source_removed"`
	CleanupErrors []string `json:"cleanup_errors,omitempty"`
}

func newUploadCommand(ctx *commandContext) *cobra.Command {
	var opts uploadOptions

	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Store one DIP in the Storage Service",
		Long: "Copies the DIP into the pipeline's uploadDIP watched directory, registers\n" +
			"it with the Storage Service as related to the given AIP, and waits for\n" +
			"the asynchronous storage job.\n\n" +
			"Exit codes: 0 uploaded, 1 already in the upload path, 2 copy failed,\n" +
			"3 submission rejected or failed, 4 job failed or timed out.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(opts.dipPath) == "" {
				return errors.New("--dip-path is required")
			}
			if strings.TrimSpace(opts.aipUUID) == "" {
				return errors.New("--aip-uuid is required")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			applyUploadOverrides(cmd, cfg, opts)
			if err := cfg.ValidateUpload(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			logger, closeLog, err := ctx.newLogger(cmd, cfg)
			if err != nil {
				return err
			}
			defer closeLog()

			client, err := storageservice.NewFromConfig(cfg)
			if err != nil {
				return err
			}
			uploader := ssupload.New(client,
				ssupload.OptionsFromConfig(cfg, opts.deleteLocalCopy),
				ssupload.PollerFromConfig(cfg, logger),
				logger)

			runCtx := logging.WithAIPUUID(cmd.Context(), strings.ToLower(strings.TrimSpace(opts.aipUUID)))
			runCtx = logging.WithStage(runCtx, "upload")
			report, err := uploader.Upload(runCtx, opts.dipPath, strings.TrimSpace(opts.aipUUID))
			if err != nil {
				return err
			}

			result := newUploadResult(report)
			if opts.jsonOutput {
				if err := writeJSON(cmd, result); err != nil {
					return err
				}
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", titleLabel(result.Outcome), result.DIPPath)
			}
			if code := report.Outcome.ExitCode(); code != 0 {
				return withExitCode(code, nil)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.dipPath, "dip-path", "", "Path to the local DIP directory")
	flags.StringVar(&opts.aipUUID, "aip-uuid", "", "UUID of the AIP the DIP was created from")
	flags.StringVar(&opts.pipelineUUID, "pipeline-uuid", "", "UUID of the origin pipeline")
	flags.StringVar(&opts.cpLocationUUID, "cp-location-uuid", "", "UUID of the pipeline's currently processing location")
	flags.StringVar(&opts.dsLocationUUID, "ds-location-uuid", "", "UUID of the DIP storage location")
	flags.StringVar(&opts.sharedDirectory, "shared-directory", "", "Absolute path to the pipeline's shared directory")
	flags.BoolVar(&opts.deleteLocalCopy, "delete-local-copy", false, "Delete the local DIP according to ss_upload.delete_policy (on_success or always)")
	flags.BoolVar(&opts.jsonOutput, "json", false, "Print the upload report as JSON")
	return cmd
}

func applyUploadOverrides(cmd *cobra.Command, cfg *config.Config, opts uploadOptions) {
	flags := cmd.Flags()
	if flags.Changed("pipeline-uuid") {
		cfg.SSUpload.PipelineUUID = strings.ToLower(strings.TrimSpace(opts.pipelineUUID))
	}
	if flags.Changed("cp-location-uuid") {
		cfg.SSUpload.CPLocationUUID = strings.ToLower(strings.TrimSpace(opts.cpLocationUUID))
	}
	if flags.Changed("ds-location-uuid") {
		cfg.SSUpload.DSLocationUUID = strings.ToLower(strings.TrimSpace(opts.dsLocationUUID))
	}
	if flags.Changed("shared-directory") {
		cfg.SSUpload.SharedDirectory = strings.TrimSpace(opts.sharedDirectory)
	}
}

func newUploadResult(report ssupload.Report) uploadResult {
	result := uploadResult{
		Outcome:       report.Outcome.String(),
		ExitCode:      report.Outcome.ExitCode(),
		DIPPath:       report.Job.SourcePath,
		StagingPath:   report.Job.StagingPath,
		PackageUUID:   report.Job.RemoteID,
		JobURL:        report.JobURL,
		SourceRemoved: report.SourceRemoved,
	}
	if report.Err != nil {
		result.Error = report.Err.Error()
	}
	for _, failed := range report.Cleanup.Errors {
		result.CleanupErrors = append(result.CleanupErrors, fmt.Sprintf("%s: %v", failed.Path, failed.Error))
	}
	return result
}

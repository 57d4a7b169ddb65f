package ssupload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"dipbatch/internal/asyncjob"
	"dipbatch/internal/config"
	"dipbatch/internal/fileutil"
	"dipbatch/internal/logging"
	"dipbatch/internal/staging"
	"dipbatch/internal/storageservice"
)

const (
	packageTypeDIP = "DIP"
	aipSubtype     = "Archival Information Package"
)

// API is the part of the Storage Service client the uploader needs.
type API interface {
	SubmitPackage(ctx context.Context, pkg storageservice.PackageRequest) (string, error)
	JobStatus(ctx context.Context, jobURL string) (asyncjob.Status, error)
}

// Options configures an Uploader.
type Options struct {
	PipelineUUID       string
	CPLocationUUID     string
	DSLocationUUID     string
	SharedDirectory    string
	DeleteLocalCopy    bool
	DeletePolicy       string
	CleanFailedStaging bool
}

// OptionsFromConfig copies the upload settings out of cfg.
func OptionsFromConfig(cfg *config.Config, deleteLocalCopy bool) Options {
	return Options{
		PipelineUUID:       cfg.SSUpload.PipelineUUID,
		CPLocationUUID:     cfg.SSUpload.CPLocationUUID,
		DSLocationUUID:     cfg.SSUpload.DSLocationUUID,
		SharedDirectory:    cfg.SSUpload.SharedDirectory,
		DeleteLocalCopy:    deleteLocalCopy,
		DeletePolicy:       cfg.SSUpload.DeletePolicy,
		CleanFailedStaging: cfg.SSUpload.CleanFailedStaging,
	}
}

// PollerFromConfig builds the job poller with the configured budget.
func PollerFromConfig(cfg *config.Config, logger *slog.Logger) asyncjob.Poller {
	return asyncjob.Poller{
		MaxAttempts: cfg.SSUpload.PollAttempts,
		Interval:    secondsToDuration(cfg.SSUpload.PollInterval),
		Logger:      logger,
	}
}

// Job describes one upload attempt.
type Job struct {
	SourcePath       string
	StagingPath      string
	RemoteID         string
	RelatedPackageID string
	SizeBytes        int64
}

// Report is the result of Upload.
type Report struct {
	Outcome Outcome
	Job     Job
	JobURL  string
	// Payload is the job result returned by the Storage Service on success.
	Payload json.RawMessage
	// Err is the cause for any outcome other than Uploaded.
	Err           error
	Cleanup       staging.CleanupResult
	SourceRemoved bool
}

// Uploader stores DIPs in the Storage Service.
type Uploader struct {
	api    API
	opts   Options
	poller asyncjob.Poller
	logger *slog.Logger
	newID  func() string
}

// New constructs an uploader.
func New(api API, opts Options, poller asyncjob.Poller, logger *slog.Logger) *Uploader {
	if opts.DeletePolicy == "" {
		opts.DeletePolicy = config.DeleteOnSuccess
	}
	return &Uploader{
		api:    api,
		opts:   opts,
		poller: poller,
		logger: logging.NewComponentLogger(logger, "ss-upload"),
		newID:  uuid.NewString,
	}
}

// Upload stores the DIP at dipPath as related to the AIP relatedID. Every
// failure is reported through Report.Outcome; the error return is reserved
// for unusable arguments.
func (u *Uploader) Upload(ctx context.Context, dipPath, relatedID string) (Report, error) {
	dipPath = strings.TrimSpace(dipPath)
	if dipPath == "" {
		return Report{}, errors.New("upload: dip path is empty")
	}
	name := filepath.Base(filepath.Clean(dipPath))
	job := Job{
		SourcePath:       dipPath,
		StagingPath:      staging.UploadPath(u.opts.SharedDirectory, name),
		RelatedPackageID: relatedID,
	}
	logger := logging.WithContext(ctx, u.logger).With(
		logging.String("dip_path", dipPath),
		logging.String("staging_path", job.StagingPath),
	)
	report := Report{Job: job}

	if _, err := os.Lstat(job.StagingPath); err == nil {
		report.Outcome = AlreadyExists
		report.Err = fmt.Errorf("staging path %s already exists", job.StagingPath)
		logging.ErrorWithContext(logger, "a directory already exists for the DIP in the upload path", "upload_already_exists",
			logging.String(logging.FieldErrorHint, "remove the stale directory from the uploadDIP watched directory"),
		)
		return report, nil
	}

	if err := u.stage(job); err != nil {
		report.Outcome = StagingCopyFailed
		report.Err = err
		logging.WarnWithContext(logger, "could not copy DIP to the upload path", "upload_staging_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check ss_upload.shared_directory permissions and free space"),
			logging.String(logging.FieldImpact, "DIP was not uploaded"),
		)
		if u.opts.CleanFailedStaging {
			report.Cleanup = staging.Clean(logger, staging.Step{Name: "partial_staging_copy", Path: job.StagingPath})
		}
		return report, nil
	}

	size, err := fileutil.DirSize(job.StagingPath)
	if err != nil {
		report.Outcome = StagingCopyFailed
		report.Err = fmt.Errorf("measure staged DIP: %w", err)
		logging.WarnWithContext(logger, "could not measure staged DIP", "upload_staging_failed", logging.Error(err))
		report.Cleanup = staging.Clean(logger, staging.Step{Name: "staging_copy", Path: job.StagingPath})
		return report, nil
	}
	job.SizeBytes = size
	job.RemoteID = u.newID()
	report.Job = job

	u.register(ctx, logger, &report)
	u.cleanup(logger, &report)
	return report, nil
}

func (u *Uploader) stage(job Job) error {
	if err := os.MkdirAll(filepath.Dir(job.StagingPath), 0o755); err != nil {
		return fmt.Errorf("create upload directory: %w", err)
	}
	if err := fileutil.CopyTree(job.SourcePath, job.StagingPath); err != nil {
		return fmt.Errorf("copy %s: %w", job.SourcePath, err)
	}
	return nil
}

// PackageRequest builds the registration body for a staged job.
func (u *Uploader) PackageRequest(job Job) storageservice.PackageRequest {
	name := filepath.Base(job.StagingPath)
	return storageservice.PackageRequest{
		UUID:               job.RemoteID,
		OriginPipeline:     storageservice.PipelineURI(u.opts.PipelineUUID),
		OriginLocation:     storageservice.LocationURI(u.opts.CPLocationUUID),
		OriginPath:         staging.OriginPath(name),
		CurrentLocation:    storageservice.LocationURI(u.opts.DSLocationUUID),
		CurrentPath:        name,
		PackageType:        packageTypeDIP,
		AIPSubtype:         aipSubtype,
		Size:               job.SizeBytes,
		RelatedPackageUUID: job.RelatedPackageID,
		Events:             []any{},
		Agents:             []any{},
	}
}

func (u *Uploader) register(ctx context.Context, logger *slog.Logger, report *Report) {
	jobURL, err := u.api.SubmitPackage(ctx, u.PackageRequest(report.Job))
	if err != nil {
		report.Err = err
		report.Outcome = SubmissionFailed
		if errors.Is(err, storageservice.ErrUnexpectedStatus) {
			report.Outcome = SubmissionRejected
		}
		logging.ErrorWithContext(logger, "could not store DIP in the Storage Service", "upload_submission_failed",
			logging.String("outcome", report.Outcome.String()),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check storage_service credentials and the pipeline/location UUIDs"),
		)
		return
	}
	report.JobURL = jobURL
	logger.Info("storing DIP in the Storage Service",
		logging.String("job_url", jobURL),
		logging.String("package_uuid", report.Job.RemoteID),
		logging.Int64("size_bytes", report.Job.SizeBytes),
		logging.String(logging.FieldEventType, "upload_submitted"),
	)

	result, err := u.poller.Await(ctx, jobURL, u.api.JobStatus)
	switch {
	case err != nil:
		report.Outcome = PollFailed
		report.Err = err
		logging.ErrorWithContext(logger, "could not store DIP in the Storage Service", "upload_poll_failed",
			logging.String("job_url", jobURL),
			logging.Error(err),
		)
	case result.TimedOut:
		report.Outcome = PollTimedOut
		report.Err = fmt.Errorf("no result from %s after %d checks", jobURL, result.Attempts)
		logging.WarnWithContext(logger, "timeout checking the DIP storage result", "upload_poll_timeout",
			logging.String("job_url", jobURL),
			logging.Int("attempts", result.Attempts),
			logging.String(logging.FieldErrorHint, "check the Storage Service for the package or raise ss_upload.poll_attempts"),
			logging.String(logging.FieldImpact, "storage was not confirmed"),
		)
	default:
		report.Outcome = Uploaded
		report.Payload = result.Payload
		attrs := []logging.Attr{logging.String(logging.FieldEventType, "upload_stored")}
		if stored := payloadUUID(result.Payload); stored != "" {
			attrs = append(attrs, logging.String("ss_uuid", stored))
		}
		logger.Info("DIP stored", logging.Args(attrs...)...)
	}
}

func (u *Uploader) cleanup(logger *slog.Logger, report *Report) {
	steps := []staging.Step{{Name: "staging_copy", Path: report.Job.StagingPath}}
	removeSource := u.shouldRemoveSource(report.Outcome)
	if removeSource {
		steps = append(steps, staging.Step{Name: "local_dip", Path: report.Job.SourcePath})
	} else if u.opts.DeleteLocalCopy {
		logger.Info("keeping local DIP because storage was not confirmed",
			logging.String("outcome", report.Outcome.String()),
			logging.String("delete_policy", u.opts.DeletePolicy),
			logging.String(logging.FieldEventType, "local_dip_kept"),
		)
	}
	report.Cleanup = staging.Clean(logger, steps...)
	if removeSource {
		for _, failed := range report.Cleanup.Errors {
			if failed.Step == "local_dip" {
				return
			}
		}
		report.SourceRemoved = true
	}
}

func (u *Uploader) shouldRemoveSource(outcome Outcome) bool {
	if !u.opts.DeleteLocalCopy {
		return false
	}
	return u.opts.DeletePolicy == config.DeleteAlways || outcome.Succeeded()
}

func payloadUUID(payload json.RawMessage) string {
	var body struct {
		UUID string `json:"uuid"`
	}
	if len(payload) == 0 || json.Unmarshal(payload, &body) != nil {
		return ""
	}
	return body.UUID
}

func secondsToDuration(seconds int) time.Duration {
	if seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"dipbatch/internal/aips"
	"dipbatch/internal/atomupload"
	"dipbatch/internal/config"
	"dipbatch/internal/dipcreate"
	"dipbatch/internal/ledger"
	"dipbatch/internal/logging"
	"dipbatch/internal/ssupload"
	"dipbatch/internal/storageservice"
)

var (
	// ErrLedger marks failures to open or write the ledger.
	ErrLedger = errors.New("ledger failure")
	// ErrListing marks failures to list AIPs from the Storage Service.
	ErrListing = errors.New("aip listing failure")
	// ErrLocked means another run holds the exclusive run lock.
	ErrLocked = errors.New("another run holds the batch lock")
)

// Ledger is the claim store used by a run.
type Ledger interface {
	Claim(ctx context.Context, id string) (ledger.ClaimResult, error)
	Close() error
}

// Lister returns AIP records for the given statuses.
type Lister interface {
	ListAIPs(ctx context.Context, statuses []string) ([]storageservice.Package, error)
}

// SSUploader stores a DIP in the Storage Service.
type SSUploader interface {
	Upload(ctx context.Context, dipPath, relatedID string) (ssupload.Report, error)
}

// Driver runs one batch. Uploaders are only consulted for the matching
// UploadType and may be nil otherwise.
type Driver struct {
	LocationUUID    string
	Statuses        []string
	UploadType      string
	DeleteLocalCopy bool
	// LockPath, when set, is held exclusively for the whole run.
	LockPath string

	OpenLedger func(ctx context.Context) (Ledger, error)
	Lister     Lister
	Creator    dipcreate.Creator
	SSUpload   SSUploader
	AtoM       atomupload.Uploader
	Logger     *slog.Logger
	NewRunID   func() string
}

// NewFromConfig wires a driver with the production collaborators.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) (*Driver, error) {
	client, err := storageservice.NewFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	driver := &Driver{
		LocationUUID:    cfg.Batch.LocationUUID,
		Statuses:        cfg.Batch.Statuses,
		UploadType:      cfg.Batch.UploadType,
		DeleteLocalCopy: cfg.Batch.DeleteLocalCopy,
		OpenLedger: func(ctx context.Context) (Ledger, error) {
			return ledger.Open(ctx, cfg.Batch.DatabaseFile)
		},
		Lister:  client,
		Creator: dipcreate.NewFromConfig(cfg, logger),
		Logger:  logger,
	}
	if cfg.Batch.Exclusive {
		driver.LockPath = cfg.Batch.DatabaseFile + ".run.lock"
	}
	switch cfg.Batch.UploadType {
	case config.UploadStorageService:
		driver.SSUpload = ssupload.New(client,
			ssupload.OptionsFromConfig(cfg, cfg.Batch.DeleteLocalCopy),
			ssupload.PollerFromConfig(cfg, logger),
			logger)
	case config.UploadAtoM:
		driver.AtoM = atomupload.NewFromConfig(cfg, logger)
	}
	return driver, nil
}

// METSType returns the METS flavour requested from the DIP builder.
func (d *Driver) METSType() string {
	if d.UploadType == config.UploadStorageService {
		return "storage-service"
	}
	return "atom"
}

// Run executes the batch. The returned Summary is valid even when err is
// non-nil and describes the work done before the failure.
func (d *Driver) Run(ctx context.Context) (Summary, error) {
	runID := uuid.NewString()
	if d.NewRunID != nil {
		runID = d.NewRunID()
	}
	ctx = logging.WithCorrelationID(ctx, runID)
	logger := logging.WithContext(ctx, logging.NewComponentLogger(d.Logger, "batch"))
	summary := Summary{CorrelationID: runID}

	logger.Info("processing AIPs in storage location",
		logging.String("location_uuid", d.LocationUUID),
		logging.String("upload_type", uploadLabel(d.UploadType)),
		logging.String(logging.FieldEventType, "run_started"),
	)

	if d.LockPath != "" {
		lock := flock.New(d.LockPath)
		locked, err := lock.TryLock()
		if err != nil {
			return summary, fmt.Errorf("%w: %w", ErrLedger, err)
		}
		if !locked {
			return summary, fmt.Errorf("%w: %s", ErrLocked, d.LockPath)
		}
		defer func() { _ = lock.Unlock() }()
	}

	store, err := d.OpenLedger(ctx)
	if err != nil {
		logging.ErrorWithContext(logger, "could not open ledger database", "ledger_open_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check batch.database_file and that its directory exists"),
		)
		return summary, fmt.Errorf("%w: %w", ErrLedger, err)
	}
	defer store.Close()

	records, err := d.Lister.ListAIPs(ctx, d.Statuses)
	if err != nil {
		logging.ErrorWithContext(logger, "could not list AIPs from the Storage Service", "aip_listing_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check storage_service.url and credentials"),
		)
		return summary, fmt.Errorf("%w: %w", ErrListing, err)
	}
	summary.Listed = len(records)

	selected, skipped := aips.FilterByLocation(records, d.LocationUUID)
	summary.Selected = len(selected)
	summary.Skipped = len(skipped)
	for _, skip := range skipped {
		if skip.Reason == aips.SkipMissingUUID {
			logging.WarnWithContext(logger, "skipping AIP without uuid", "aip_skipped",
				logging.String("current_location", skip.Location),
				logging.String(logging.FieldImpact, "record ignored"),
			)
			continue
		}
		logger.Debug("skipping AIP",
			logging.String(logging.FieldAIPUUID, skip.UUID),
			logging.String("reason", string(skip.Reason)),
			logging.String("current_location", skip.Location),
		)
	}
	logger.Info("AIPs selected",
		logging.Int("listed", summary.Listed),
		logging.Int("selected", summary.Selected),
		logging.Int("skipped", summary.Skipped),
	)

	for _, id := range selected {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		item, err := d.processAIP(logging.WithAIPUUID(ctx, id), store, id)
		if err != nil {
			return summary, err
		}
		summary.Items = append(summary.Items, item)
	}

	logger.Info("run finished",
		logging.Int("uploaded", summary.Count(StatusUploaded)),
		logging.Int("created", summary.Count(StatusCreated)),
		logging.Int("already_claimed", summary.Count(StatusAlreadyClaimed)),
		logging.Int("creation_failed", summary.Count(StatusCreationFailed)),
		logging.Int("upload_failed", summary.Count(StatusUploadFailed)),
		logging.String(logging.FieldEventType, "run_finished"),
	)
	return summary, nil
}

func (d *Driver) processAIP(ctx context.Context, store Ledger, id string) (ItemResult, error) {
	item := ItemResult{AIPUUID: id}
	logger := logging.WithContext(logging.WithStage(ctx, "claim"), logging.NewComponentLogger(d.Logger, "batch"))

	result, err := store.Claim(ctx, id)
	if err != nil {
		logging.ErrorWithContext(logger, "could not record AIP in the ledger", "ledger_claim_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the ledger database file and free disk space"),
		)
		return item, fmt.Errorf("%w: %w", ErrLedger, err)
	}
	if result == ledger.AlreadyClaimed {
		logger.Debug("skipping AIP (already processed/processing)")
		item.Status = StatusAlreadyClaimed
		return item, nil
	}

	createCtx := logging.WithStage(ctx, "dip_creation")
	logger = logging.WithContext(createCtx, logging.NewComponentLogger(d.Logger, "batch"))
	dipPath, err := d.Creator.Create(createCtx, id, d.METSType())
	dipPath = strings.TrimSpace(dipPath)
	if err == nil && dipPath == "" {
		err = dipcreate.ErrNoOutput
	}
	if err != nil {
		item.Status = StatusCreationFailed
		item.Detail = err.Error()
		logging.WarnWithContext(logger, "DIP creation failed", "dip_creation_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "inspect the DIP builder output; the AIP stays claimed"),
			logging.String(logging.FieldImpact, "no DIP for this AIP"),
		)
		return item, nil
	}
	item.DIPPath = dipPath
	logger.Info("DIP created",
		logging.String("dip_path", dipPath),
		logging.String(logging.FieldEventType, "dip_created"),
	)

	uploadCtx := logging.WithStage(ctx, "upload")
	logger = logging.WithContext(uploadCtx, logging.NewComponentLogger(d.Logger, "batch"))
	switch d.UploadType {
	case config.UploadStorageService:
		report, err := d.SSUpload.Upload(uploadCtx, dipPath, id)
		if err != nil {
			item.Status = StatusUploadFailed
			item.Detail = err.Error()
			break
		}
		item.Detail = report.Outcome.String()
		if report.Outcome.Succeeded() {
			item.Status = StatusUploaded
		} else {
			item.Status = StatusUploadFailed
		}
	case config.UploadAtoM:
		if err := d.AtoM.Upload(uploadCtx, dipPath, d.DeleteLocalCopy); err != nil {
			item.Status = StatusUploadFailed
			item.Detail = err.Error()
			logging.WarnWithContext(logger, "AtoM upload failed", "atom_upload_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the atom settings and rsync target"),
				logging.String(logging.FieldImpact, "DIP remains in the output directory"),
			)
			break
		}
		item.Status = StatusUploaded
		logger.Info("DIP uploaded to AtoM", logging.String(logging.FieldEventType, "atom_uploaded"))
	default:
		item.Status = StatusCreated
	}
	return item, nil
}

func uploadLabel(uploadType string) string {
	if uploadType == config.UploadNone {
		return "none"
	}
	return uploadType
}

package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// Validate ensures the configuration is usable for a batch run.
func (c *Config) Validate() error {
	if err := c.validateStorageService(); err != nil {
		return err
	}
	if err := c.validateBatch(); err != nil {
		return err
	}
	if err := c.validateDIPCreation(); err != nil {
		return err
	}
	switch c.Batch.UploadType {
	case UploadStorageService:
		return c.validateSSUpload()
	case UploadAtoM:
		return c.validateAtoM()
	}
	return nil
}

// ValidateUpload ensures the configuration can drive a standalone Storage
// Service upload. Batch settings are not required.
func (c *Config) ValidateUpload() error {
	if err := c.validateStorageService(); err != nil {
		return err
	}
	return c.validateSSUpload()
}

func (c *Config) validateStorageService() error {
	parsed, err := url.Parse(c.StorageService.URL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("storage_service.url %q must be an absolute http(s) URL", c.StorageService.URL)
	}
	if c.StorageService.User == "" {
		return errors.New("storage_service.user is required")
	}
	if c.StorageService.APIKey == "" {
		return fmt.Errorf("storage_service.api_key is required (or set %s)", storageServiceAPIKeyEnv)
	}
	if c.StorageService.RequestTimeout <= 0 {
		return errors.New("storage_service.request_timeout must be positive (seconds)")
	}
	return nil
}

func (c *Config) validateBatch() error {
	if err := requireUUID("batch.location_uuid", c.Batch.LocationUUID); err != nil {
		return err
	}
	if c.Batch.DatabaseFile == "" {
		return errors.New("batch.database_file is required")
	}
	if len(c.Batch.Statuses) == 0 {
		return errors.New("batch.statuses must include at least one status")
	}
	switch c.Batch.UploadType {
	case UploadNone, UploadStorageService, UploadAtoM:
	default:
		return fmt.Errorf("batch.upload_type %q must be one of %q, %q or empty", c.Batch.UploadType, UploadStorageService, UploadAtoM)
	}
	return nil
}

func (c *Config) validateDIPCreation() error {
	if c.DIPCreation.Command == "" {
		return errors.New("dip_creation.command must be set")
	}
	return nil
}

func (c *Config) validateSSUpload() error {
	if err := requireUUID("ss_upload.pipeline_uuid", c.SSUpload.PipelineUUID); err != nil {
		return err
	}
	if err := requireUUID("ss_upload.cp_location_uuid", c.SSUpload.CPLocationUUID); err != nil {
		return err
	}
	if err := requireUUID("ss_upload.ds_location_uuid", c.SSUpload.DSLocationUUID); err != nil {
		return err
	}
	if c.SSUpload.SharedDirectory == "" {
		return errors.New("ss_upload.shared_directory must be set")
	}
	if c.SSUpload.PollAttempts <= 0 {
		return errors.New("ss_upload.poll_attempts must be positive")
	}
	if c.SSUpload.PollInterval < 0 {
		return errors.New("ss_upload.poll_interval must be >= 0 (seconds)")
	}
	switch c.SSUpload.DeletePolicy {
	case DeleteOnSuccess, DeleteAlways:
	default:
		return fmt.Errorf("ss_upload.delete_policy %q must be %q or %q", c.SSUpload.DeletePolicy, DeleteOnSuccess, DeleteAlways)
	}
	return nil
}

func (c *Config) validateAtoM() error {
	if c.AtoM.Command == "" {
		return errors.New("atom.command must be set when batch.upload_type is atom-upload")
	}
	if c.AtoM.URL == "" {
		return errors.New("atom.url must be set when batch.upload_type is atom-upload")
	}
	if c.AtoM.Email == "" {
		return errors.New("atom.email must be set when batch.upload_type is atom-upload")
	}
	if c.AtoM.Password == "" {
		return fmt.Errorf("atom.password must be set when batch.upload_type is atom-upload (or set %s)", atomPasswordEnv)
	}
	if c.AtoM.Slug == "" {
		return errors.New("atom.slug must be set when batch.upload_type is atom-upload")
	}
	if c.AtoM.RsyncTarget == "" {
		return errors.New("atom.rsync_target must be set when batch.upload_type is atom-upload")
	}
	return nil
}

func requireUUID(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s is required", field)
	}
	if _, err := uuid.Parse(value); err != nil {
		return fmt.Errorf("%s %q is not a valid UUID: %w", field, value, err)
	}
	return nil
}

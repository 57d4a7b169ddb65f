package config

import (
	"fmt"
	"os"
	"strings"
)

// Normalize trims values, expands paths, and applies environment fallbacks.
// Load calls it; commands call it again after applying flag overrides.
func (c *Config) Normalize() error {
	c.normalizeStorageService()
	if err := c.normalizeBatch(); err != nil {
		return err
	}
	c.normalizeDIPCreation()
	if err := c.normalizeSSUpload(); err != nil {
		return err
	}
	c.normalizeAtoM()
	return c.normalizeLogging()
}

func (c *Config) normalizeStorageService() {
	c.StorageService.URL = strings.TrimRight(strings.TrimSpace(c.StorageService.URL), "/")
	if c.StorageService.URL == "" {
		c.StorageService.URL = defaultStorageServiceURL
	}
	c.StorageService.User = strings.TrimSpace(c.StorageService.User)
	if c.StorageService.User == "" {
		if value, ok := os.LookupEnv(storageServiceUserEnv); ok {
			c.StorageService.User = strings.TrimSpace(value)
		}
	}
	c.StorageService.APIKey = strings.TrimSpace(c.StorageService.APIKey)
	if c.StorageService.APIKey == "" {
		if value, ok := os.LookupEnv(storageServiceAPIKeyEnv); ok {
			c.StorageService.APIKey = strings.TrimSpace(value)
		}
	}
	if c.StorageService.RequestTimeout <= 0 {
		c.StorageService.RequestTimeout = defaultRequestTimeout
	}
}

func (c *Config) normalizeBatch() error {
	var err error
	c.Batch.LocationUUID = strings.ToLower(strings.TrimSpace(c.Batch.LocationUUID))
	if c.Batch.DatabaseFile, err = expandPath(strings.TrimSpace(c.Batch.DatabaseFile)); err != nil {
		return fmt.Errorf("batch.database_file: %w", err)
	}
	if strings.TrimSpace(c.Batch.TmpDir) == "" {
		c.Batch.TmpDir = defaultTmpDir
	}
	if c.Batch.TmpDir, err = expandPath(strings.TrimSpace(c.Batch.TmpDir)); err != nil {
		return fmt.Errorf("batch.tmp_dir: %w", err)
	}
	if strings.TrimSpace(c.Batch.OutputDir) == "" {
		c.Batch.OutputDir = defaultOutputDir
	}
	if c.Batch.OutputDir, err = expandPath(strings.TrimSpace(c.Batch.OutputDir)); err != nil {
		return fmt.Errorf("batch.output_dir: %w", err)
	}

	statuses := make([]string, 0, len(c.Batch.Statuses))
	seen := make(map[string]struct{}, len(c.Batch.Statuses))
	for _, status := range c.Batch.Statuses {
		normalized := strings.ToUpper(strings.TrimSpace(status))
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		statuses = append(statuses, normalized)
	}
	if len(statuses) == 0 {
		statuses = []string{defaultStatusUploaded, defaultStatusVerified}
	}
	c.Batch.Statuses = statuses

	c.Batch.UploadType = strings.ToLower(strings.TrimSpace(c.Batch.UploadType))
	if c.Batch.UploadType == "none" {
		c.Batch.UploadType = UploadNone
	}
	return nil
}

func (c *Config) normalizeDIPCreation() {
	c.DIPCreation.Command = strings.TrimSpace(c.DIPCreation.Command)
	if c.DIPCreation.Command == "" {
		c.DIPCreation.Command = defaultDIPCommand
	}
	if c.DIPCreation.Timeout < 0 {
		c.DIPCreation.Timeout = 0
	}
}

func (c *Config) normalizeSSUpload() error {
	c.SSUpload.PipelineUUID = strings.ToLower(strings.TrimSpace(c.SSUpload.PipelineUUID))
	c.SSUpload.CPLocationUUID = strings.ToLower(strings.TrimSpace(c.SSUpload.CPLocationUUID))
	c.SSUpload.DSLocationUUID = strings.ToLower(strings.TrimSpace(c.SSUpload.DSLocationUUID))
	if strings.TrimSpace(c.SSUpload.SharedDirectory) == "" {
		c.SSUpload.SharedDirectory = defaultSharedDirectory
	}
	var err error
	if c.SSUpload.SharedDirectory, err = expandPath(strings.TrimSpace(c.SSUpload.SharedDirectory)); err != nil {
		return fmt.Errorf("ss_upload.shared_directory: %w", err)
	}
	c.SSUpload.DeletePolicy = strings.ToLower(strings.TrimSpace(c.SSUpload.DeletePolicy))
	if c.SSUpload.DeletePolicy == "" {
		c.SSUpload.DeletePolicy = defaultDeletePolicy
	}
	return nil
}

func (c *Config) normalizeAtoM() {
	c.AtoM.Command = strings.TrimSpace(c.AtoM.Command)
	if c.AtoM.Command == "" {
		c.AtoM.Command = defaultAtoMCommand
	}
	c.AtoM.URL = strings.TrimRight(strings.TrimSpace(c.AtoM.URL), "/")
	c.AtoM.Email = strings.TrimSpace(c.AtoM.Email)
	c.AtoM.Slug = strings.TrimSpace(c.AtoM.Slug)
	c.AtoM.RsyncTarget = strings.TrimSpace(c.AtoM.RsyncTarget)
	if c.AtoM.Password == "" {
		if value, ok := os.LookupEnv(atomPasswordEnv); ok {
			c.AtoM.Password = value
		}
	}
	if c.AtoM.Timeout < 0 {
		c.AtoM.Timeout = 0
	}
}

func (c *Config) normalizeLogging() error {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	switch c.Logging.Level {
	case "":
		c.Logging.Level = defaultLogLevel
	case "warning":
		c.Logging.Level = "warn"
	}
	if strings.TrimSpace(c.Logging.Dir) == "" {
		c.Logging.Dir = defaultLogDir
	}
	var err error
	if c.Logging.Dir, err = expandPath(strings.TrimSpace(c.Logging.Dir)); err != nil {
		return fmt.Errorf("logging.dir: %w", err)
	}
	c.Logging.File = strings.TrimSpace(c.Logging.File)
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
	return nil
}

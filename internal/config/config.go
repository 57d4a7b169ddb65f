package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Upload types accepted by batch.upload_type.
const (
	UploadNone           = ""
	UploadStorageService = "ss-upload"
	UploadAtoM           = "atom-upload"
)

// Deletion policies accepted by ss_upload.delete_policy.
const (
	DeleteOnSuccess = "on_success"
	DeleteAlways    = "always"
)

// StorageService contains connection settings for the Archivematica Storage Service.
type StorageService struct {
	URL            string `toml:"url"`
	User           string `toml:"user"`
	APIKey         string `toml:"api_key"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Batch contains settings for a DIP creation run over one AIP location.
type Batch struct {
	LocationUUID    string   `toml:"location_uuid"`
	DatabaseFile    string   `toml:"database_file"`
	TmpDir          string   `toml:"tmp_dir"`
	OutputDir       string   `toml:"output_dir"`
	Statuses        []string `toml:"statuses"`
	UploadType      string   `toml:"upload_type"`
	DeleteLocalCopy bool     `toml:"delete_local_copy"`
	// Exclusive holds an advisory lock next to the database for the whole run.
	Exclusive bool `toml:"exclusive"`
}

// DIPCreation describes the external command that builds a DIP from an AIP.
type DIPCreation struct {
	Command string `toml:"command"`
	Timeout int    `toml:"timeout"`
}

// SSUpload contains settings for storing DIPs back into the Storage Service.
type SSUpload struct {
	PipelineUUID       string `toml:"pipeline_uuid"`
	CPLocationUUID     string `toml:"cp_location_uuid"`
	DSLocationUUID     string `toml:"ds_location_uuid"`
	SharedDirectory    string `toml:"shared_directory"`
	PollAttempts       int    `toml:"poll_attempts"`
	PollInterval       int    `toml:"poll_interval"`
	DeletePolicy       string `toml:"delete_policy"`
	CleanFailedStaging bool   `toml:"clean_failed_staging"`
}

// AtoM contains settings for the access-system upload command.
type AtoM struct {
	Command     string `toml:"command"`
	URL         string `toml:"url"`
	Email       string `toml:"email"`
	Password    string `toml:"password"`
	Slug        string `toml:"slug"`
	RsyncTarget string `toml:"rsync_target"`
	Timeout     int    `toml:"timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	Dir           string `toml:"dir"`
	File          string `toml:"file"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for dipbatch.
//
// Configuration sections by subsystem:
//   - StorageService: API endpoint and credentials
//   - Batch: location, ledger database, working directories, upload choice
//   - DIPCreation: external DIP builder command
//   - SSUpload: Storage Service upload (pipeline, locations, polling)
//   - AtoM: access-system upload command and credentials
//   - Logging: log format, level, destination and retention
type Config struct {
	StorageService StorageService `toml:"storage_service"`
	Batch          Batch          `toml:"batch"`
	DIPCreation    DIPCreation    `toml:"dip_creation"`
	SSUpload       SSUpload       `toml:"ss_upload"`
	AtoM           AtoM           `toml:"atom"`
	Logging        Logging        `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates and parses a configuration file and normalizes it. Validation
// is left to callers because command line flags may still fill in required
// values; call Validate once overrides are applied.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.Normalize(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("dipbatch.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the working directories a run writes into. The
// ledger's own directory is not created; a missing database
// directory is reported as a ledger failure.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Batch.TmpDir, c.Batch.OutputDir, c.Logging.Dir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LogFilePath returns the resolved log file location, or "" when file logging is off.
func (c *Config) LogFilePath() string {
	file := strings.TrimSpace(c.Logging.File)
	if file == "" {
		return ""
	}
	if filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(c.Logging.Dir, file)
}

// METSType returns the METS flavour the DIP builder should produce for the
// configured upload target.
func (c *Config) METSType() string {
	if c.Batch.UploadType == UploadStorageService {
		return "storage-service"
	}
	return "atom"
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"dipbatch/internal/config"
)

// Fixed UUIDs used by generated test configurations.
const (
	LocationUUID   = "e9a08ce2-4e8e-4e01-bdea-09d8d8deff8b"
	PipelineUUID   = "88050c7f-36a3-4900-9294-5a0411d69303"
	CPLocationUUID = "e6409b38-20e9-4739-bb4a-892f2fb300d3"
	DSLocationUUID = "6bbd3dee-b52f-476f-8136-bb3f0d025096"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a valid config seeded with unique temp directories per
// test. It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.StorageService.User = "test"
	cfgVal.StorageService.APIKey = "test-key"
	cfgVal.Batch.LocationUUID = LocationUUID
	cfgVal.Batch.DatabaseFile = filepath.Join(base, "aips.db")
	cfgVal.Batch.TmpDir = filepath.Join(base, "tmp")
	cfgVal.Batch.OutputDir = filepath.Join(base, "output")
	cfgVal.SSUpload.PipelineUUID = PipelineUUID
	cfgVal.SSUpload.CPLocationUUID = CPLocationUUID
	cfgVal.SSUpload.DSLocationUUID = DSLocationUUID
	cfgVal.SSUpload.SharedDirectory = filepath.Join(base, "shared")
	cfgVal.SSUpload.PollInterval = 0
	cfgVal.Logging.Dir = filepath.Join(base, "logs")

	for _, dir := range []string{cfgVal.Batch.TmpDir, cfgVal.Batch.OutputDir, cfgVal.SSUpload.SharedDirectory} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithStorageServiceURL points the config at a test server.
func WithStorageServiceURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.StorageService.URL = url
	}
}

// WithUploadType sets batch.upload_type on the test config.
func WithUploadType(uploadType string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Batch.UploadType = uploadType
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, the configured DIP builder and
// AtoM uploader commands are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{b.cfg.DIPCreation.Command, b.cfg.AtoM.Command}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Batch.DatabaseFile)
}

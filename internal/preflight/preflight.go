package preflight

import (
	"context"
	"path/filepath"

	"dipbatch/internal/config"
	"dipbatch/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// AccessChecker verifies Storage Service credentials.
type AccessChecker interface {
	CheckAccess(ctx context.Context) error
}

// RunAll executes all applicable preflight checks for the given config.
// Checks are only run when the corresponding upload type is enabled.
func RunAll(ctx context.Context, cfg *config.Config, ss AccessChecker) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	if ss != nil {
		results = append(results, CheckStorageService(ctx, cfg.StorageService.URL, ss))
	}

	results = append(results,
		CheckDirectoryAccess("Ledger directory", filepath.Dir(cfg.Batch.DatabaseFile)),
		CheckDirectoryAccess("Temporary directory", cfg.Batch.TmpDir),
		CheckDirectoryAccess("Output directory", cfg.Batch.OutputDir),
	)

	if cfg.Batch.UploadType == config.UploadStorageService {
		results = append(results, CheckDirectoryAccess("Shared directory", cfg.SSUpload.SharedDirectory))
	}

	for _, status := range CheckSystemDeps(cfg) {
		if status.Optional && !status.Available {
			continue
		}
		results = append(results, Result{Name: status.Name, Passed: status.Available, Detail: depDetail(status)})
	}
	return results
}

// Failed reports whether any result did not pass.
func Failed(results []Result) bool {
	for _, result := range results {
		if !result.Passed {
			return true
		}
	}
	return false
}

func depDetail(status deps.Status) string {
	if status.Available {
		return status.Command
	}
	return status.Detail
}

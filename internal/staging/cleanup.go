// Package staging manages the pipeline's upload watch directory and removes
// temporary package copies.
package staging

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"dipbatch/internal/logging"
)

// UploadDIPDir is the watched directory, relative to the shared directory,
// from which the pipeline picks up DIPs to store.
const UploadDIPDir = "watchedDirectories/uploadDIP"

// UploadPath returns where a package named name is staged under sharedDir.
func UploadPath(sharedDir, name string) string {
	return filepath.Join(sharedDir, UploadDIPDir, name)
}

// OriginPath is the staged package path relative to the shared directory,
// with the trailing slash the Storage Service expects for directories.
func OriginPath(name string) string {
	return UploadDIPDir + "/" + name + "/"
}

// Step is one removal performed during cleanup.
type Step struct {
	// Name labels the step in logs, e.g. "staging_copy" or "local_dip".
	Name string
	Path string
}

// CleanupError pairs a path with its cleanup error.
type CleanupError struct {
	Step  string
	Path  string
	Error error
}

// CleanupResult contains the outcome of a cleanup run.
type CleanupResult struct {
	Removed []string
	Errors  []CleanupError
}

// OK reports whether every step succeeded.
func (r CleanupResult) OK() bool {
	return len(r.Errors) == 0
}

// Clean removes each step's path recursively. A failing step never prevents
// later steps from running. Paths that no longer exist count as removed.
func Clean(logger *slog.Logger, steps ...Step) CleanupResult {
	result := CleanupResult{}
	for _, step := range steps {
		path := strings.TrimSpace(step.Path)
		if path == "" {
			continue
		}
		if err := removePath(path); err != nil {
			result.Errors = append(result.Errors, CleanupError{Step: step.Name, Path: path, Error: err})
			logging.WarnWithContext(logger, "cleanup step failed", "cleanup_failed",
				logging.String("step", step.Name),
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check permissions and remove the path manually"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
			continue
		}
		result.Removed = append(result.Removed, path)
		if logger != nil {
			logger.Debug("cleanup step removed path",
				logging.String("step", step.Name),
				logging.String("path", path),
				logging.String(logging.FieldEventType, "cleanup_removed"),
			)
		}
	}
	return result
}

func removePath(path string) error {
	if _, err := os.Lstat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	return os.RemoveAll(path)
}

package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"dipbatch/internal/config"
	"dipbatch/internal/deps"
	"dipbatch/internal/storageservice"
)

// CheckStorageService verifies that the Storage Service is reachable and the
// API key is accepted. It uses a single attempt with a 10-second timeout.
func CheckStorageService(ctx context.Context, baseURL string, ss AccessChecker) Result {
	const name = "Storage Service"

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := ss.CheckAccess(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeAccessError(err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (reachable)", baseURL)}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSystemDeps evaluates the external commands needed by the configured
// batch. Both the preflight command and run --preflight use this list.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "DIP builder",
			Command:     cfg.DIPCreation.Command,
			Description: "Required to build DIPs from AIPs",
		},
	}
	if cfg.Batch.UploadType == config.UploadAtoM {
		requirements = append(requirements,
			deps.Requirement{
				Name:        "AtoM uploader",
				Command:     cfg.AtoM.Command,
				Description: "Required for atom-upload",
			},
			deps.Requirement{
				Name:        "rsync",
				Command:     "rsync",
				Description: "Used by the AtoM uploader to transfer DIPs",
				Optional:    true,
			},
		)
	}
	return deps.CheckBinaries(requirements)
}

func summarizeAccessError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "access check timed out (Storage Service unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "access check timed out (Storage Service unreachable)"
	}
	var statusErr *storageservice.StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return "auth failed (check storage_service.user and api_key)"
		}
		return fmt.Sprintf("access check failed (%d)", statusErr.StatusCode)
	}
	return err.Error()
}

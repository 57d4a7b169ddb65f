// Package dipcreate runs the external DIP builder for one AIP.
package dipcreate

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"dipbatch/internal/config"
	"dipbatch/internal/logging"
)

var commandContext = exec.CommandContext

// ErrNoOutput means the builder exited cleanly without printing a DIP path.
var ErrNoOutput = errors.New("dip builder produced no path")

const stderrLimit = 4096

// Creator builds a DIP from an AIP and returns its local path.
type Creator interface {
	Create(ctx context.Context, aipUUID, metsType string) (string, error)
}

// CLI invokes the DIP builder command.
type CLI struct {
	binary    string
	ssURL     string
	ssUser    string
	ssAPIKey  string
	tmpDir    string
	outputDir string
	timeout   time.Duration
	logger    *slog.Logger
}

// NewFromConfig constructs a CLI from configuration.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) *CLI {
	return &CLI{
		binary:    cfg.DIPCreation.Command,
		ssURL:     cfg.StorageService.URL,
		ssUser:    cfg.StorageService.User,
		ssAPIKey:  cfg.StorageService.APIKey,
		tmpDir:    cfg.Batch.TmpDir,
		outputDir: cfg.Batch.OutputDir,
		timeout:   time.Duration(cfg.DIPCreation.Timeout) * time.Second,
		logger:    logging.NewComponentLogger(logger, "dip-creation"),
	}
}

// Create runs the builder and returns the last non-empty line it printed.
func (c *CLI) Create(ctx context.Context, aipUUID, metsType string) (string, error) {
	if strings.TrimSpace(aipUUID) == "" {
		return "", errors.New("aip uuid required")
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	args := []string{
		"--ss-url", c.ssURL,
		"--ss-user", c.ssUser,
		"--ss-api-key", c.ssAPIKey,
		"--aip-uuid", aipUUID,
		"--tmp-dir", c.tmpDir,
		"--output-dir", c.outputDir,
		"--mets-type", metsType,
	}
	cmd := commandContext(ctx, c.binary, args...) //nolint:gosec
	var stdout bytes.Buffer
	stderr := &tailBuffer{limit: stderrLimit}
	cmd.Stdout = &stdout
	cmd.Stderr = stderr

	started := time.Now()
	logging.WithContext(ctx, c.logger).Debug("running dip builder",
		logging.String("command", c.binary),
		logging.String("mets_type", metsType),
	)
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return "", fmt.Errorf("%s failed: %w: %s", c.binary, err, detail)
		}
		return "", fmt.Errorf("%s failed: %w", c.binary, err)
	}

	path, err := lastLine(stdout.Bytes())
	if err != nil {
		return "", fmt.Errorf("%s: read output: %w", c.binary, err)
	}
	if path == "" {
		return "", fmt.Errorf("%s: %w", c.binary, ErrNoOutput)
	}
	logging.WithContext(ctx, c.logger).Debug("dip builder finished",
		logging.String("dip_path", path),
		logging.Duration("elapsed", time.Since(started)),
	)
	return path, nil
}

func lastLine(output []byte) (string, error) {
	var last string
	scanner := bufio.NewScanner(bytes.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			last = line
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return last, nil
}

// tailBuffer keeps the last limit bytes written. Builders print the fatal
// error at the end of their output, after any progress noise.
type tailBuffer struct {
	data      []byte
	limit     int
	truncated bool
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if len(p) >= t.limit {
		t.data = append(t.data[:0], p[len(p)-t.limit:]...)
		t.truncated = true
		return n, nil
	}
	if overflow := len(t.data) + len(p) - t.limit; overflow > 0 {
		t.data = append(t.data[:0], t.data[overflow:]...)
		t.truncated = true
	}
	t.data = append(t.data, p...)
	return n, nil
}

func (t *tailBuffer) String() string {
	if t.truncated {
		return "..." + string(t.data)
	}
	return string(t.data)
}

var _ Creator = (*CLI)(nil)

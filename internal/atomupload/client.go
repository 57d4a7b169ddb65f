// Package atomupload hands a DIP to the external AtoM upload command.
package atomupload

import (
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

const stderrTail = 2048

// Uploader sends a DIP to the access system.
type Uploader interface {
	Upload(ctx context.Context, dipPath string, deleteLocalCopy bool) error
}

// CLI invokes the AtoM upload command.
type CLI struct {
	binary      string
	url         string
	email       string
	password    string
	slug        string
	rsyncTarget string
	timeout     time.Duration
	logger      *slog.Logger
}

// NewFromConfig constructs a CLI from configuration.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) *CLI {
	return &CLI{
		binary:      cfg.AtoM.Command,
		url:         cfg.AtoM.URL,
		email:       cfg.AtoM.Email,
		password:    cfg.AtoM.Password,
		slug:        cfg.AtoM.Slug,
		rsyncTarget: cfg.AtoM.RsyncTarget,
		timeout:     time.Duration(cfg.AtoM.Timeout) * time.Second,
		logger:      logging.NewComponentLogger(logger, "atom-upload"),
	}
}

// Upload runs the command for dipPath. The command deletes the local copy
// itself when asked to.
func (c *CLI) Upload(ctx context.Context, dipPath string, deleteLocalCopy bool) error {
	if strings.TrimSpace(dipPath) == "" {
		return errors.New("dip path required")
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	args := []string{
		"--atom-url", c.url,
		"--atom-email", c.email,
		"--atom-password", c.password,
		"--atom-slug", c.slug,
		"--rsync-target", c.rsyncTarget,
		"--dip-path", dipPath,
	}
	if deleteLocalCopy {
		args = append(args, "--delete-local-copy")
	}
	cmd := commandContext(ctx, c.binary, args...) //nolint:gosec
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	logging.WithContext(ctx, c.logger).Debug("running atom upload",
		logging.String("command", c.binary),
		logging.String("dip_path", dipPath),
		logging.String("slug", c.slug),
	)
	if err := cmd.Run(); err != nil {
		if tail := tailOf(output.String(), stderrTail); tail != "" {
			return fmt.Errorf("%s failed: %w: %s", c.binary, err, tail)
		}
		return fmt.Errorf("%s failed: %w", c.binary, err)
	}
	return nil
}

func tailOf(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}

var _ Uploader = (*CLI)(nil)

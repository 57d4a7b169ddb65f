package main

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"dipbatch/internal/config"
	"dipbatch/internal/logging"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string
	verbose      *int
	quiet        *int

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag, logLevelFlag *string, verbose, quiet *int) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
		verbose:      verbose,
		quiet:        quiet,
	}
}

// ensureConfig loads and normalizes the configuration once. Validation is
// left to each command because flags may still fill in required values.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

// logLevel resolves the effective level: --log-level wins, then -v/-q, then
// the configured level.
func (c *commandContext) logLevel() string {
	if c.logLevelFlag != nil && strings.TrimSpace(*c.logLevelFlag) != "" {
		return strings.TrimSpace(*c.logLevelFlag)
	}
	verbose, quiet := 0, 0
	if c.verbose != nil {
		verbose = *c.verbose
	}
	if c.quiet != nil {
		quiet = *c.quiet
	}
	if verbose == 0 && quiet == 0 {
		return ""
	}
	return logging.VerbosityLevel(verbose, quiet)
}

// newLogger builds the command logger writing to stderr and, when
// configured, the log file. The returned func closes the file.
func (c *commandContext) newLogger(cmd *cobra.Command, cfg *config.Config) (*slog.Logger, func() error, error) {
	return logging.NewFromConfig(cfg, cmd.ErrOrStderr(), c.logLevel())
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

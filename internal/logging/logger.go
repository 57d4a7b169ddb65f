package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"dipbatch/internal/config"
)

// Options describes logger construction parameters.
type Options struct {
	Level string
	// Format selects the handler for Writer: "console" or "json".
	Format string
	// Writer receives human-facing output. Defaults to stderr.
	Writer io.Writer
	// FilePath, when set, receives a JSON copy of every record at Level.
	FilePath    string
	Development bool
}

// New constructs a slog logger using the provided options. The returned close
// function releases the log file and is safe to call when no file was opened.
func New(opts Options) (*slog.Logger, func() error, error) {
	level := parseLevel(opts.Level)
	levelVar := new(slog.LevelVar)
	levelVar.Set(level)

	writer := opts.Writer
	if writer == nil {
		writer = os.Stderr
	}
	addSource := opts.Development || level <= slog.LevelDebug

	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" {
		format = "console"
	}

	var primary slog.Handler
	switch format {
	case "json":
		primary = newJSONHandler(writer, levelVar, addSource)
	case "console":
		primary = newPrettyHandler(writer, levelVar, addSource)
	default:
		return nil, nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}

	closer := func() error { return nil }
	handlers := []slog.Handler{primary}
	if path := strings.TrimSpace(opts.FilePath); path != "" {
		file, err := openLogFile(path)
		if err != nil {
			return nil, nil, err
		}
		closer = file.Close
		handlers = append(handlers, newJSONHandler(file, levelVar, addSource))
	}

	return slog.New(newFanoutHandler(handlers...)), closer, nil
}

// NewFromConfig creates a logger using application config values. Level
// overrides any configured level when non-empty.
func NewFromConfig(cfg *config.Config, writer io.Writer, level string) (*slog.Logger, func() error, error) {
	if cfg == nil {
		return New(Options{Level: firstNonEmpty(level, "info"), Format: "console", Writer: writer})
	}
	return New(Options{
		Level:    firstNonEmpty(level, cfg.Logging.Level),
		Format:   cfg.Logging.Format,
		Writer:   writer,
		FilePath: cfg.LogFilePath(),
	})
}

// VerbosityLevel converts repeated -v/-q flags into a level name. Each -q
// raises the threshold one step and each -v lowers it, starting from info and
// clamped between debug and error.
func VerbosityLevel(verbose, quiet int) string {
	step := quiet - verbose
	switch {
	case step <= -1:
		return "debug"
	case step == 0:
		return "info"
	case step == 1:
		return "warn"
	default:
		return "error"
	}
}

// ValidLevel reports whether value names a level this package understands.
func ValidLevel(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug", "info", "warn", "warning", "error":
		return true
	default:
		return false
	}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "critical":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func openLogFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure log directory: %w", err)
		}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o664)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	return file, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

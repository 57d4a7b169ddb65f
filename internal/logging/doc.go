// Package logging assembles structured slog loggers and formatting helpers used
// across dipbatch.
//
// It owns the console and JSON handlers, maps CLI verbosity counters onto
// levels, tees console output into a JSON log file, and exposes context-aware
// helpers so batch code can tag log lines with the AIP being processed, the
// current stage, and the run's correlation ID. A no-op logger is provided for
// tests and wiring code that cannot fail.
package logging

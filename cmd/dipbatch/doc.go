// Package main hosts the dipbatch CLI entrypoint and command graph.
//
// The Cobra-based command tree drives batch DIP creation for one AIP storage
// location, standalone Storage Service uploads, ledger inspection, readiness
// checks, and configuration scaffolding. It centralizes configuration
// resolution, flag overrides, logger setup, and the mapping from failures to
// process exit codes so subcommands stay declarative.
package main

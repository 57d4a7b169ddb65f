// Package config loads, normalizes, and validates dipbatch configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// DIPBATCH_SS_API_KEY so credentials can stay out of the file. The Config type
// centralizes every knob the batch driver, the Storage Service uploader, and
// the CLI need.
//
// Load does not validate: command line flags are applied on top of the file
// first, then Validate (batch runs) or ValidateUpload (standalone uploads)
// reports the first unusable value.
package config

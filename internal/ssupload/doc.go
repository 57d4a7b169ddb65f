// Package ssupload stores a local DIP in the Archivematica Storage Service.
//
// The DIP is copied into the pipeline's uploadDIP watched directory, its size
// measured, and a package registration submitted to the asynchronous file
// endpoint. The resulting job is polled until it settles. The staged copy is
// always removed afterwards; the local DIP is removed only when requested and
// the configured deletion policy allows it.
package ssupload

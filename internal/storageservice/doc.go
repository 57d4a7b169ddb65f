// Package storageservice talks to the Archivematica Storage Service REST API:
// listing AIPs, registering packages through the asynchronous file endpoint,
// and reading async job status. Every request carries the ApiKey
// authorization header.
package storageservice

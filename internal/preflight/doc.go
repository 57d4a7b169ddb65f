// Package preflight provides readiness checks for the Storage Service, the
// filesystem paths, and the external commands a dipbatch run depends on.
//
// The "dipbatch preflight" command prints every result; "dipbatch run" calls
// RunAll first when --preflight is set and refuses to claim anything while a
// required check fails. Each check is gated by the configured upload type.
package preflight

// Package batch drives one DIP creation run over an AIP storage location.
//
// A run opens the ledger, lists AIPs from the Storage Service, keeps those in
// the configured location, and claims each one before building its DIP. The
// claim is the only guard against duplicate work: an identifier that is
// already in the ledger is skipped, and one that fails after being claimed
// stays claimed. Failures for a single AIP are logged and counted but never
// stop the run; only ledger and listing failures are fatal.
package batch

// Package ledger persists the set of AIP identifiers that have been claimed
// for DIP creation.
//
// The ledger is a single SQLite table keyed by identifier. Claim performs one
// INSERT and relies on the primary key to decide the winner when two runs race
// for the same AIP, so callers never check before inserting. Rows are written
// once and never updated; a failed DIP stays claimed until an operator clears
// it by hand.
package ledger

package ledger

import "errors"

var (
	// ErrOpen marks failures to create or open the ledger database.
	ErrOpen = errors.New("open ledger")
	// ErrSchemaMismatch indicates the database was written by an incompatible version.
	ErrSchemaMismatch = errors.New("schema version mismatch")
)

package testsupport

import (
	"context"
	"testing"

	"dipbatch/internal/config"
	"dipbatch/internal/ledger"
)

// MustOpenLedger opens the configured ledger for tests and registers cleanup.
func MustOpenLedger(t testing.TB, cfg *config.Config) *ledger.Store {
	t.Helper()

	store, err := ledger.Open(context.Background(), cfg.Batch.DatabaseFile)
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustClaim records ids in store, failing the test on any error.
func MustClaim(t testing.TB, store *ledger.Store, ids ...string) {
	t.Helper()

	for _, id := range ids {
		if _, err := store.Claim(context.Background(), id); err != nil {
			t.Fatalf("store.Claim(%s): %v", id, err)
		}
	}
}

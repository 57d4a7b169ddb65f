package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ClaimResult tags the outcome of a claim attempt.
type ClaimResult int

const (
	// Claimed means this caller inserted the identifier and owns the work.
	Claimed ClaimResult = iota + 1
	// AlreadyClaimed means an earlier run (or a concurrent one) holds it.
	AlreadyClaimed
)

func (r ClaimResult) String() string {
	switch r {
	case Claimed:
		return "claimed"
	case AlreadyClaimed:
		return "already_claimed"
	default:
		return "unknown"
	}
}

// Claim is one ledger row.
type Claim struct {
	Identifier string    `json:"identifier"`
	ClaimedAt  time.Time `json:"claimed_at"`
}

const claimedAtLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store manages ledger persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Open creates the database file and schema if needed and returns a store.
// Opening an existing ledger is idempotent. Failures are wrapped with ErrOpen.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: database path is empty", ErrOpen)
	}
	dir := filepath.Dir(path)
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrOpen, dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrOpen, dir)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite db: %w", ErrOpen, err)
	}
	// Pragmas are per connection; a single connection keeps them in force.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%w: apply pragma %q: %w", ErrOpen, pragma, execErr)
		}
	}

	store := newWithDB(db, path)
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %w", ErrOpen, err)
	}
	return store, nil
}

func newWithDB(db *sql.DB, path string) *Store {
	return &Store{db: db, path: path, now: time.Now}
}

// Path returns the database file backing the store.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Claim records id in the ledger. The insert is the only check: a duplicate
// key reports AlreadyClaimed with a nil error, any other failure is returned.
func (s *Store) Claim(ctx context.Context, id string) (ClaimResult, error) {
	if id == "" {
		return 0, errors.New("claim: identifier is empty")
	}
	claimedAt := s.now().UTC().Format(claimedAtLayout)
	err := retryOnBusy(ctx, func() error {
		_, execErr := s.db.ExecContext(ctx,
			"INSERT INTO aips (identifier, claimed_at) VALUES (?, ?)", id, claimedAt)
		return execErr
	})
	switch {
	case err == nil:
		return Claimed, nil
	case isUniqueViolation(err):
		return AlreadyClaimed, nil
	default:
		return 0, fmt.Errorf("claim %s: %w", id, err)
	}
}

// Claimed looks up a single identifier without modifying the ledger.
func (s *Store) Claimed(ctx context.Context, id string) (Claim, bool, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT identifier, claimed_at FROM aips WHERE identifier = ?", id)
	claim, err := scanClaim(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Claim{}, false, nil
	}
	if err != nil {
		return Claim{}, false, fmt.Errorf("lookup %s: %w", id, err)
	}
	return claim, true, nil
}

// List returns every claim, oldest first.
func (s *Store) List(ctx context.Context) ([]Claim, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT identifier, claimed_at FROM aips ORDER BY claimed_at, identifier")
	if err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}
	defer rows.Close()

	var claims []Claim
	for rows.Next() {
		claim, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("list claims: %w", err)
		}
		claims = append(claims, claim)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}
	return claims, nil
}

// Count returns the number of claimed identifiers.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM aips").Scan(&count); err != nil {
		return 0, fmt.Errorf("count claims: %w", err)
	}
	return count, nil
}

func scanClaim(scanner interface{ Scan(dest ...any) error }) (Claim, error) {
	var (
		claim     Claim
		claimedAt string
	)
	if err := scanner.Scan(&claim.Identifier, &claimedAt); err != nil {
		return Claim{}, err
	}
	parsed, err := time.Parse(claimedAtLayout, claimedAt)
	if err != nil {
		return Claim{}, fmt.Errorf("parse claimed_at %q: %w", claimedAt, err)
	}
	claim.ClaimedAt = parsed
	return claim, nil
}

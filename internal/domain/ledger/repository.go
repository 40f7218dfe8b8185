package ledger

import (
	"context"
	"time"
)

// LeaseTTL is how long an in-progress record is trusted to still have a live
// holder. A retry arriving after the TTL takes the record over, since the
// original request is presumed to have crashed mid-flight.
const LeaseTTL = 2 * time.Minute

// Begin is the result of BeginOrGet.
type Begin struct {
	// New is true when this caller inserted the record (or took over a stale
	// lease) and owns the right to perform side effects.
	New bool

	// Resumed is true when New came from a lease takeover rather than a fresh
	// insert. The previous holder may have completed its work without
	// committing the outcome, so the caller must check for an existing result
	// before re-running side effects.
	Resumed bool

	Record *Record
}

// Repository defines the persistence contract for the idempotency ledger.
type Repository interface {
	// BeginOrGet atomically inserts an in-progress record for the key, or
	// returns the existing one. Insert-if-absent semantics: of two racing
	// callers exactly one observes New. A stale in-progress record (older
	// than LeaseTTL) is taken over and reported as New.
	BeginOrGet(ctx context.Context, key string) (*Begin, error)

	// Commit records the terminal outcome for an in-progress key. Committing
	// over an already-terminal record is rejected; outcomes are immutable.
	Commit(ctx context.Context, key string, outcome Outcome) error

	// Get retrieves the record for a key, or a not-found error.
	Get(ctx context.Context, key string) (*Record, error)
}

package inventory

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the persistence contract for inventory slots.
type Repository interface {
	// Create persists a new slot.
	Create(ctx context.Context, slot *Slot) error

	// FindByID retrieves a slot by its unique identifier.
	FindByID(ctx context.Context, id uuid.UUID) (*Slot, error)

	// TryReserve atomically increments the booked counters if and only if the
	// resulting counts stay within the slot's maxima. It must be a single
	// conditional update, never read-then-write. Returns a SLOT_FULL domain
	// error on insufficient capacity and INVALID_SLOT for an unknown slot.
	TryReserve(ctx context.Context, id uuid.UUID, adults, dogs int) error

	// Release decrements the booked counters, saturating at zero. It never
	// fails on a stale amount: cancellation must not be blocked by inventory.
	Release(ctx context.Context, id uuid.UUID, adults, dogs int) error
}

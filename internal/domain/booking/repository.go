package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines the persistence contract for booking aggregates.
type Repository interface {
	// FindByID retrieves a booking by its unique identifier.
	FindByID(ctx context.Context, id uuid.UUID) (*Booking, error)

	// FindByOrderNumber retrieves a booking by its human-shareable order number.
	FindByOrderNumber(ctx context.Context, number string) (*Booking, error)

	// FindBySessionID retrieves the booking created for a payment session, or
	// a not-found error. The reconciler uses this for duplicate-delivery dedup.
	FindBySessionID(ctx context.Context, sessionID string) (*Booking, error)

	// FindByIdempotencyKey retrieves the booking created under a key, or a
	// not-found error. Used to resume a crashed creation whose booking row
	// committed but whose ledger outcome was never recorded.
	FindByIdempotencyKey(ctx context.Context, key string) (*Booking, error)

	// FindByCustomerEmail retrieves bookings for a customer with pagination.
	FindByCustomerEmail(ctx context.Context, email string, page, limit int) ([]*Booking, int64, error)

	// ListAll retrieves all bookings with pagination (admin).
	ListAll(ctx context.Context, page, limit int) ([]*Booking, int64, error)

	// CountByStatus returns booking counts grouped by status (admin).
	CountByStatus(ctx context.Context) (map[string]int64, error)

	// CreateWithReservation atomically reserves the booking's party size on its
	// inventory slot and persists the booking. Either both effects commit or
	// neither does. Returns a SLOT_FULL domain error on insufficient capacity
	// and INVALID_SLOT if the slot does not exist.
	CreateWithReservation(ctx context.Context, bk *Booking) error

	// Confirm transitions a pending booking to confirmed, recording the payment
	// intent. Confirming an already-confirmed booking is a no-op.
	Confirm(ctx context.Context, id uuid.UUID, paymentIntentID string) error

	// CompleteExpired transitions confirmed bookings whose end date precedes
	// asOf to completed, returning the number of rows transitioned. The status
	// filter makes overlapping runs converge without double-processing.
	CompleteExpired(ctx context.Context, asOf time.Time) (int64, error)
}

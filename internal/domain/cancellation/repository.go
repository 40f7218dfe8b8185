package cancellation

import (
	"context"

	"github.com/google/uuid"
)

// Decision carries the admin identity and notes recorded on a decided request.
type Decision struct {
	DecidedBy  string
	AdminNotes string
}

// Repository defines the persistence contract for cancellation requests.
//
// Approve and Reject embed the whole decision transaction because the three
// writes of an approval (booking to cancelled, capacity release, request to
// approved) must commit or roll back together.
type Repository interface {
	// Create persists a new pending request.
	Create(ctx context.Context, req *Request) error

	// FindByID retrieves a request by its unique identifier.
	FindByID(ctx context.Context, id uuid.UUID) (*Request, error)

	// FindPendingByBookingID returns the open request for a booking, or a
	// not-found error. At most one pending request exists per booking.
	FindPendingByBookingID(ctx context.Context, bookingID uuid.UUID) (*Request, error)

	// ListByStatus retrieves requests in a given status with pagination.
	ListByStatus(ctx context.Context, status RequestStatus, page, limit int) ([]*Request, int64, error)

	// Approve atomically transitions the booking to cancelled, releases its
	// party size back to the slot, and marks the request approved. If the
	// booking is already cancelled (a retried approval) the release is
	// skipped, since releasing twice would corrupt the capacity invariant,
	// and only the request transition is attempted. Deciding an
	// already-decided request returns an INVALID_STATE domain error.
	Approve(ctx context.Context, requestID uuid.UUID, decision Decision) error

	// Reject marks a pending request rejected. No booking or inventory change.
	// Deciding an already-decided request returns an INVALID_STATE error.
	Reject(ctx context.Context, requestID uuid.UUID, decision Decision) error
}

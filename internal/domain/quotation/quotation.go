// Package quotation holds the lightweight quote row created when a checkout
// session is opened, before any capacity is reserved.
package quotation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/trailpaws/service-reservation/internal/domain"
)

// Quotation records what a customer was quoted at checkout. The reconciler
// links it to the booking created when the payment session completes.
type Quotation struct {
	ID            uuid.UUID
	SlotID        uuid.UUID
	ProductID     uuid.UUID
	CustomerEmail string
	Adults        int
	Dogs          int
	AmountCents   int64
	Currency      string
	SessionID     string
	BookingID     *uuid.UUID

	CreatedAt time.Time
	UpdatedAt time.Time
}

// New creates a quotation for a checkout attempt.
func New(slotID, productID uuid.UUID, customerEmail string, adults, dogs int, amountCents int64, currency string) (*Quotation, error) {
	if slotID == uuid.Nil || productID == uuid.Nil {
		return nil, domain.NewValidationError("slot and product IDs are required")
	}
	if customerEmail == "" {
		return nil, domain.NewValidationError("customer email is required")
	}
	now := time.Now().UTC()
	return &Quotation{
		ID:            uuid.New(),
		SlotID:        slotID,
		ProductID:     productID,
		CustomerEmail: customerEmail,
		Adults:        adults,
		Dogs:          dogs,
		AmountCents:   amountCents,
		Currency:      currency,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// Repository defines the persistence contract for quotations.
type Repository interface {
	// Create persists a new quotation.
	Create(ctx context.Context, q *Quotation) error

	// AttachSession records the payment session id once the session is opened.
	AttachSession(ctx context.Context, id uuid.UUID, sessionID string) error

	// LinkBooking points the quotation for a session at its booking. Linking
	// an already-linked quotation is a no-op, so duplicate webhook deliveries
	// converge.
	LinkBooking(ctx context.Context, sessionID string, bookingID uuid.UUID) error

	// FindBySessionID retrieves the quotation for a payment session.
	FindBySessionID(ctx context.Context, sessionID string) (*Quotation, error)
}

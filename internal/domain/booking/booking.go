package booking

import (
	"time"

	"github.com/google/uuid"
	"github.com/trailpaws/service-reservation/internal/domain"
)

// PartySize is the number of guests a booking reserves capacity for.
type PartySize struct {
	Adults int `json:"adults"`
	Dogs   int `json:"dogs"`
}

// Customer holds the identity fields captured at checkout.
type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// PaymentRefs ties a booking to its external payment session.
type PaymentRefs struct {
	CheckoutSessionID string `json:"checkout_session_id"`
	PaymentIntentID   string `json:"payment_intent_id,omitempty"`
}

// Booking is the aggregate root for a reservation against an inventory slot.
type Booking struct {
	id             uuid.UUID
	orderNumber    string
	productID      uuid.UUID
	slotID         uuid.UUID
	customer       Customer
	party          PartySize
	amountCents    int64
	currency       string
	payment        PaymentRefs
	idempotencyKey string
	status         Status

	startDate time.Time
	endDate   time.Time

	cancelledAt *time.Time
	cancelNote  string

	createdAt time.Time
	updatedAt time.Time
}

// NewBooking creates a new Booking aggregate. The initial status must be
// StatusPending (direct API, payment capture still outstanding) or
// StatusConfirmed (webhook-originated, payment already captured).
func NewBooking(
	productID, slotID uuid.UUID,
	customer Customer,
	party PartySize,
	amountCents int64,
	currency string,
	payment PaymentRefs,
	idempotencyKey string,
	initial Status,
	startDate, endDate time.Time,
) (*Booking, error) {
	if productID == uuid.Nil {
		return nil, domain.NewValidationError("product ID is required")
	}
	if slotID == uuid.Nil {
		return nil, domain.NewValidationError("slot ID is required")
	}
	if customer.Email == "" {
		return nil, domain.NewValidationError("customer email is required")
	}
	if party.Adults < 1 {
		return nil, domain.NewValidationError("at least one adult is required")
	}
	if party.Dogs < 0 {
		return nil, domain.NewValidationError("dog count cannot be negative")
	}
	if amountCents < 0 {
		return nil, domain.NewValidationError("amount cannot be negative")
	}
	if idempotencyKey == "" {
		return nil, domain.NewValidationError("idempotency key is required")
	}
	if initial != StatusPending && initial != StatusConfirmed {
		return nil, domain.NewValidationError("initial status must be pending or confirmed")
	}
	if endDate.Before(startDate) {
		return nil, domain.NewValidationError("end date cannot precede start date")
	}

	id := uuid.New()
	now := time.Now().UTC()
	return &Booking{
		id:             id,
		orderNumber:    OrderNumber(id),
		productID:      productID,
		slotID:         slotID,
		customer:       customer,
		party:          party,
		amountCents:    amountCents,
		currency:       currency,
		payment:        payment,
		idempotencyKey: idempotencyKey,
		status:         initial,
		startDate:      startDate,
		endDate:        endDate,
		createdAt:      now,
		updatedAt:      now,
	}, nil
}

// Reconstruct rebuilds a Booking from persistence data (no validation).
func Reconstruct(
	id uuid.UUID,
	orderNumber string,
	productID, slotID uuid.UUID,
	customer Customer,
	party PartySize,
	amountCents int64,
	currency string,
	payment PaymentRefs,
	idempotencyKey string,
	status Status,
	startDate, endDate time.Time,
	cancelledAt *time.Time,
	cancelNote string,
	createdAt, updatedAt time.Time,
) *Booking {
	return &Booking{
		id:             id,
		orderNumber:    orderNumber,
		productID:      productID,
		slotID:         slotID,
		customer:       customer,
		party:          party,
		amountCents:    amountCents,
		currency:       currency,
		payment:        payment,
		idempotencyKey: idempotencyKey,
		status:         status,
		startDate:      startDate,
		endDate:        endDate,
		cancelledAt:    cancelledAt,
		cancelNote:     cancelNote,
		createdAt:      createdAt,
		updatedAt:      updatedAt,
	}
}

// --- Getters ---

// ID returns the booking's unique identifier.
func (b *Booking) ID() uuid.UUID { return b.id }

// OrderNumber returns the human-shareable order number.
func (b *Booking) OrderNumber() string { return b.orderNumber }

// ProductID returns the bookable product reference.
func (b *Booking) ProductID() uuid.UUID { return b.productID }

// SlotID returns the inventory slot this booking reserves capacity on.
func (b *Booking) SlotID() uuid.UUID { return b.slotID }

// Customer returns the customer identity fields.
func (b *Booking) Customer() Customer { return b.customer }

// Party returns the reserved party size.
func (b *Booking) Party() PartySize { return b.party }

// AmountCents returns the money amount in the smallest currency unit.
func (b *Booking) AmountCents() int64 { return b.amountCents }

// Currency returns the ISO currency code.
func (b *Booking) Currency() string { return b.currency }

// Payment returns the external payment references.
func (b *Booking) Payment() PaymentRefs { return b.payment }

// IdempotencyKey returns the key this booking was created under.
func (b *Booking) IdempotencyKey() string { return b.idempotencyKey }

// Status returns the current booking status.
func (b *Booking) Status() Status { return b.status }

// StartDate returns the first day of the stay.
func (b *Booking) StartDate() time.Time { return b.startDate }

// EndDate returns the last day of the stay; the sweeper completes the booking
// once this has elapsed.
func (b *Booking) EndDate() time.Time { return b.endDate }

// CancelledAt returns the cancellation time, or nil.
func (b *Booking) CancelledAt() *time.Time { return b.cancelledAt }

// CancelNote returns the cancellation reason.
func (b *Booking) CancelNote() string { return b.cancelNote }

// CreatedAt returns the creation timestamp.
func (b *Booking) CreatedAt() time.Time { return b.createdAt }

// UpdatedAt returns the last-updated timestamp.
func (b *Booking) UpdatedAt() time.Time { return b.updatedAt }

// --- Behavior ---

// Confirm transitions the booking from pending to confirmed once the payment
// session completes.
func (b *Booking) Confirm(paymentIntentID string) error {
	if !b.status.CanTransitionTo(StatusConfirmed) {
		return domain.NewInvalidStateError(string(b.status), string(StatusConfirmed))
	}
	b.status = StatusConfirmed
	if paymentIntentID != "" {
		b.payment.PaymentIntentID = paymentIntentID
	}
	b.updatedAt = time.Now().UTC()
	return nil
}

// Cancel transitions the booking to cancelled. Terminal states are immutable.
func (b *Booking) Cancel(reason string) error {
	if !b.status.CanTransitionTo(StatusCancelled) {
		return domain.NewInvalidStateError(string(b.status), string(StatusCancelled))
	}
	now := time.Now().UTC()
	b.status = StatusCancelled
	b.cancelNote = reason
	b.cancelledAt = &now
	b.updatedAt = now
	return nil
}

// Complete transitions the booking from confirmed to completed after the stay
// has elapsed.
func (b *Booking) Complete() error {
	if !b.status.CanTransitionTo(StatusCompleted) {
		return domain.NewInvalidStateError(string(b.status), string(StatusCompleted))
	}
	b.status = StatusCompleted
	b.updatedAt = time.Now().UTC()
	return nil
}

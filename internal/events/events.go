// Package events publishes the engine's domain events to Kafka. Publishing is
// fire-and-forget from the caller's point of view: a failed publish is logged
// by the service layer, never propagated into the primary transaction.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Topics the engine publishes on.
const (
	TopicReservationEvents  = "reservation.events"
	TopicNotificationEvents = "notification.events"
)

// Event types carried on reservation.events.
const (
	BookingConfirmed    = "booking.confirmed"
	BookingCreated      = "booking.created"
	BookingCancelled    = "booking.cancelled"
	BookingsCompleted   = "bookings.completed"
	CancellationDecided = "cancellation.decided"
)

// Event types carried on notification.events.
const (
	NotificationRequested = "notification.requested"
)

// CloudEvent is the envelope every published event travels in.
type CloudEvent struct {
	ID     string          `json:"id"`
	Source string          `json:"source"`
	Type   string          `json:"type"`
	Time   time.Time       `json:"time"`
	Data   json.RawMessage `json:"data"`
}

// NewCloudEvent wraps payload data in a CloudEvent envelope.
func NewCloudEvent(source, eventType string, data interface{}) (CloudEvent, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return CloudEvent{}, fmt.Errorf("failed to marshal event data: %w", err)
	}
	return CloudEvent{
		ID:     uuid.NewString(),
		Source: source,
		Type:   eventType,
		Time:   time.Now().UTC(),
		Data:   raw,
	}, nil
}

// Publisher is the outbound event contract the services depend on.
type Publisher interface {
	PublishEvent(ctx context.Context, topic string, event CloudEvent) error
}

// BookingEvent is the payload for booking lifecycle events.
type BookingEvent struct {
	BookingID     uuid.UUID `json:"booking_id"`
	OrderNumber   string    `json:"order_number"`
	SlotID        uuid.UUID `json:"slot_id"`
	CustomerEmail string    `json:"customer_email"`
	Adults        int       `json:"adults"`
	Dogs          int       `json:"dogs"`
	AmountCents   int64     `json:"amount_cents"`
	Currency      string    `json:"currency"`
	Status        string    `json:"status"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// CancellationDecidedEvent is the payload for admin decisions.
type CancellationDecidedEvent struct {
	RequestID  uuid.UUID `json:"request_id"`
	BookingID  uuid.UUID `json:"booking_id"`
	Action     string    `json:"action"`
	DecidedBy  string    `json:"decided_by"`
	OccurredAt time.Time `json:"occurred_at"`
}

// SweepCompletedEvent is the payload published after a sweeper pass.
type SweepCompletedEvent struct {
	AsOf        time.Time `json:"as_of"`
	Transitions int64     `json:"transitions"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// NotificationRequestedEvent asks the downstream mailer to send an email.
// Delivery is best-effort; the engine owns no email state.
type NotificationRequestedEvent struct {
	Recipient  string    `json:"recipient"`
	Template   string    `json:"template"`
	BookingID  uuid.UUID `json:"booking_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

package cancellation

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/trailpaws/service-reservation/internal/domain"
)

// RequestStatus is the state of a cancellation request. Transitions only
// leave pending; approved and rejected are terminal and immutable.
type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusApproved RequestStatus = "approved"
	StatusRejected RequestStatus = "rejected"
)

// IsValid returns true if the status is recognized.
func (s RequestStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// IsTerminal returns true for decided requests.
func (s RequestStatus) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// ParseStatus converts a string to a RequestStatus.
func ParseStatus(s string) (RequestStatus, error) {
	status := RequestStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid cancellation request status: %s", s)
	}
	return status, nil
}

// Action is an admin decision on a pending request.
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

// IsValid returns true if the action is recognized.
func (a Action) IsValid() bool {
	return a == ActionApprove || a == ActionReject
}

// Request is a customer-initiated cancellation awaiting an admin decision.
type Request struct {
	ID        uuid.UUID
	BookingID uuid.UUID
	Reason    string
	Status    RequestStatus

	RequestedBy string // customer identity (email or user id)
	RequestedAt time.Time

	DecidedBy  string
	AdminNotes string
	DecidedAt  *time.Time
}

// NewRequest creates a pending cancellation request for a booking.
func NewRequest(bookingID uuid.UUID, reason, requestedBy string) (*Request, error) {
	if bookingID == uuid.Nil {
		return nil, domain.NewValidationError("booking ID is required")
	}
	if reason == "" {
		return nil, domain.NewValidationError("cancellation reason is required")
	}
	if requestedBy == "" {
		return nil, domain.NewValidationError("requester identity is required")
	}
	return &Request{
		ID:          uuid.New(),
		BookingID:   bookingID,
		Reason:      reason,
		Status:      StatusPending,
		RequestedBy: requestedBy,
		RequestedAt: time.Now().UTC(),
	}, nil
}

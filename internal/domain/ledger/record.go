// Package ledger holds the durable idempotency records that collapse retried
// booking creations into a single effect.
package ledger

import (
	"time"

	"github.com/google/uuid"
)

// RecordStatus is the lifecycle of an idempotency record. A record is created
// in-progress, reaches exactly one terminal status, and is never overwritten
// or deleted afterwards.
type RecordStatus string

const (
	StatusInProgress RecordStatus = "in_progress"
	StatusSucceeded  RecordStatus = "succeeded"
	StatusFailed     RecordStatus = "failed"
)

// IsTerminal returns true once the record carries a cached outcome.
func (s RecordStatus) IsTerminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Record maps an idempotency key to a booking outcome.
type Record struct {
	Key          string
	Status       RecordStatus
	BookingID    *uuid.UUID
	ErrorCode    string
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Outcome is a terminal result committed against a key.
type Outcome struct {
	BookingID    *uuid.UUID
	ErrorCode    string
	ErrorMessage string
}

// Succeeded builds a success outcome pointing at the created booking.
func Succeeded(bookingID uuid.UUID) Outcome {
	return Outcome{BookingID: &bookingID}
}

// Failed builds a failure outcome carrying the domain error code so replays
// re-raise the original error.
func Failed(code, message string) Outcome {
	return Outcome{ErrorCode: code, ErrorMessage: message}
}

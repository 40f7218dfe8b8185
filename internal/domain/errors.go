package domain

import (
	"errors"
	"fmt"
)

// Error codes shared across the engine. Handlers map these to HTTP statuses,
// and the idempotency ledger persists them as cached failure outcomes.
const (
	CodeValidation   = "VALIDATION"
	CodeNotFound     = "NOT_FOUND"
	CodeConflict     = "CONFLICT"
	CodeInvalidState = "INVALID_STATE"
	CodeSlotFull     = "SLOT_FULL"
	CodeInvalidSlot  = "INVALID_SLOT"
)

// Error is a domain-level error carrying a machine-readable code.
type Error struct {
	Code    string
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewValidationError creates a validation error for malformed caller input.
func NewValidationError(message string) *Error {
	return &Error{Code: CodeValidation, Message: message}
}

// NewNotFoundError creates a not-found error for a missing entity.
func NewNotFoundError(entity, id string) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf("%s %s not found", entity, id)}
}

// NewConflictError creates a conflict error for concurrent-modification races.
func NewConflictError(message string) *Error {
	return &Error{Code: CodeConflict, Message: message}
}

// NewInvalidStateError creates an error for a disallowed state transition.
func NewInvalidStateError(from, to string) *Error {
	return &Error{Code: CodeInvalidState, Message: fmt.Sprintf("cannot transition from %s to %s", from, to)}
}

// NewSlotFullError creates the expected capacity-exhaustion outcome. It is a
// normal domain result, not an infrastructure fault.
func NewSlotFullError(slotID string) *Error {
	return &Error{Code: CodeSlotFull, Message: fmt.Sprintf("slot %s has insufficient capacity", slotID)}
}

// NewInvalidSlotError creates an error for a reservation against a slot that
// does not exist.
func NewInvalidSlotError(slotID string) *Error {
	return &Error{Code: CodeInvalidSlot, Message: fmt.Sprintf("slot %s does not exist", slotID)}
}

// FromCode rebuilds a domain error from a persisted outcome code so that a
// replayed request re-raises the original failure.
func FromCode(code, message string) *Error {
	if message == "" {
		message = "operation previously failed with " + code
	}
	return &Error{Code: code, Message: message}
}

// CodeOf extracts the domain error code, or empty string for non-domain errors.
func CodeOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// IsCode reports whether err is a domain error with the given code.
func IsCode(err error, code string) bool {
	return CodeOf(err) == code
}

package domain

import (
	"errors"
	"fmt"
)

// ErrorCode classifies domain errors so transport layers can map them to
// protocol-specific statuses without inspecting messages.
type ErrorCode string

const (
	CodeValidation        ErrorCode = "VALIDATION"
	CodeNotFound          ErrorCode = "NOT_FOUND"
	CodeConflict          ErrorCode = "CONFLICT"
	CodeForbidden         ErrorCode = "FORBIDDEN"
	CodeInvalidRoute      ErrorCode = "INVALID_ROUTE"
	CodeCapacityExceeded  ErrorCode = "CAPACITY_EXCEEDED"
	CodeInvalidTransition ErrorCode = "INVALID_TRANSITION"
	CodeAlreadyReleased   ErrorCode = "ALREADY_RELEASED"
)

// DomainError is the single error type crossing the domain boundary.
type DomainError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// CodeOf extracts the domain error code from err, or "" if err is not a DomainError.
func CodeOf(err error) ErrorCode {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// IsCode reports whether err is a DomainError with the given code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// NewValidationError creates a validation error with the given message.
func NewValidationError(message string) *DomainError {
	return &DomainError{Code: CodeValidation, Message: message}
}

// NewNotFoundError creates a not-found error for an entity and identifier.
func NewNotFoundError(entity, id string) *DomainError {
	return &DomainError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found: %s", entity, id),
	}
}

// NewConflictError creates a conflict error (concurrent modification, constraint clash).
func NewConflictError(message string) *DomainError {
	return &DomainError{Code: CodeConflict, Message: message}
}

// NewForbiddenError creates a forbidden error.
func NewForbiddenError(message string) *DomainError {
	return &DomainError{Code: CodeForbidden, Message: message}
}

// NewInvalidRouteError creates an error for a location pair that cannot be
// resolved against a route topology.
func NewInvalidRouteError(message string) *DomainError {
	return &DomainError{Code: CodeInvalidRoute, Message: message}
}

// NewCapacityExceededError creates an error for a seat request that does not fit
// on at least one segment in the requested range. The first violating segment is
// carried in Details for diagnostic messaging.
func NewCapacityExceededError(segmentIndex int, fromStop, toStop string, requested, available int) *DomainError {
	return &DomainError{
		Code: CodeCapacityExceeded,
		Message: fmt.Sprintf("segment %d (%s -> %s) has %d seats available, %d requested",
			segmentIndex, fromStop, toStop, available, requested),
		Details: map[string]interface{}{
			"segment_index": segmentIndex,
			"from_stop":     fromStop,
			"to_stop":       toStop,
			"requested":     requested,
			"available":     available,
		},
	}
}

// NewInvalidTransitionError creates a state-machine violation error.
func NewInvalidTransitionError(from, to string) *DomainError {
	return &DomainError{
		Code:    CodeInvalidTransition,
		Message: fmt.Sprintf("invalid transition from %s to %s", from, to),
	}
}

// NewAlreadyReleasedError creates the idempotency-guard error for operations on a
// reservation that has already reached its terminal state.
func NewAlreadyReleasedError(reservationID string) *DomainError {
	return &DomainError{
		Code:    CodeAlreadyReleased,
		Message: fmt.Sprintf("reservation %s is already released", reservationID),
	}
}

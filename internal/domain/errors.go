package domain

import (
	"fmt"
	"strings"
)

// Error types for consistent error handling across the service.

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrExternalService indicates a failure in an external service call.
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

// ErrValidation indicates a validation error (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrMissingFields is returned when a forward transition is attempted while
// required fields are empty. The caller may re-prompt or retry with force.
type ErrMissingFields struct {
	From          LeadStatus
	To            LeadStatus
	MissingFields []string
}

func (e *ErrMissingFields) Error() string {
	return fmt.Sprintf("missing required fields for %s -> %s: %s", e.From, e.To, strings.Join(e.MissingFields, ", "))
}

// ErrInvalidTransition indicates a move to a non-adjacent or unknown stage.
type ErrInvalidTransition struct {
	From LeadStatus
	To   LeadStatus
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("invalid transition: %s -> %s", e.From, e.To)
}

// ErrPersistence indicates the record store rejected or failed a write.
// Nothing is retried automatically; the caller re-invokes.
type ErrPersistence struct {
	Operation string
	Err       error
}

func (e *ErrPersistence) Error() string {
	return fmt.Sprintf("save failed [%s]: %v", e.Operation, e.Err)
}

func (e *ErrPersistence) Unwrap() error {
	return e.Err
}

// ErrForbidden indicates the user lacks permission for the operation.
type ErrForbidden struct {
	Action string
}

func (e *ErrForbidden) Error() string {
	return fmt.Sprintf("forbidden: %s", e.Action)
}

// ErrUnauthorized indicates an invalid or missing token.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}

// ErrPendingApproval indicates the profile has not been approved yet.
type ErrPendingApproval struct {
	ProfileID string
}

func (e *ErrPendingApproval) Error() string {
	return "החשבון ממתין לאישור מנהל"
}

// ErrAccountSuspended indicates the profile is suspended or inactive; the
// client must end the session.
type ErrAccountSuspended struct {
	ProfileID string
}

func (e *ErrAccountSuspended) Error() string {
	return "החשבון הושעה"
}

// ErrConflict indicates the operation conflicts with current state.
type ErrConflict struct {
	Message string
}

func (e *ErrConflict) Error() string {
	return e.Message
}

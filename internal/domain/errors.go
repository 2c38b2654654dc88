package domain

import "fmt"

// Error types for consistent error handling across the API.

// ErrNotFound indicates a resource was not found (e.g. a stale lead
// reference during a move or delete).
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrValidation indicates a validation error (bad input). Blocks the action
// with no side effects.
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrUnauthorized indicates invalid credentials, an expired token, or an
// inactive session.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}

// ErrConflict indicates a resource already exists (e.g. duplicate email at
// registration).
type ErrConflict struct {
	Message string
}

func (e *ErrConflict) Error() string {
	return e.Message
}

// ErrConnectionFailed indicates the external source could not be reached
// with the supplied credentials. User-facing, not retried beyond the
// standard backoff.
type ErrConnectionFailed struct {
	ProjectID string
	Err       error
}

func (e *ErrConnectionFailed) Error() string {
	return fmt.Sprintf("could not connect to project %q: %v", e.ProjectID, e.Err)
}

func (e *ErrConnectionFailed) Unwrap() error {
	return e.Err
}

// ErrConnectionMissing indicates an operation requiring an external source
// was attempted without an established connection.
type ErrConnectionMissing struct{}

func (e *ErrConnectionMissing) Error() string {
	return "no external database connected"
}

// ErrFetchFailed indicates a collection listing or read against the external
// source failed. Recoverable by retrying the action.
type ErrFetchFailed struct {
	Collection string
	Err        error
}

func (e *ErrFetchFailed) Error() string {
	if e.Collection == "" {
		return fmt.Sprintf("failed to fetch collections: %v", e.Err)
	}
	return fmt.Sprintf("failed to fetch collection %q: %v", e.Collection, e.Err)
}

func (e *ErrFetchFailed) Unwrap() error {
	return e.Err
}

// ErrDispatchFailed indicates a per-lead message send failure. Logged per
// item, never aborts the batch, no automatic retry.
type ErrDispatchFailed struct {
	LeadID  string
	Channel string
	Err     error
}

func (e *ErrDispatchFailed) Error() string {
	return fmt.Sprintf("dispatch via %s failed for lead %s: %v", e.Channel, e.LeadID, e.Err)
}

func (e *ErrDispatchFailed) Unwrap() error {
	return e.Err
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

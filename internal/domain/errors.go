package domain

import "fmt"

// Error types for consistent error handling across the portal.

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrExternalService indicates a failure in an external service call.
// The wrapped error message is what users see in the error banner.
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

// ErrTimeout indicates an operation exceeded its deadline.
type ErrTimeout struct {
	Operation string
}

func (e *ErrTimeout) Error() string {
	return fmt.Sprintf("operation timed out: %s", e.Operation)
}

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

// ErrValidation indicates bad input, caught before any backend call.
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrForbidden indicates the user lacks permission for the operation.
type ErrForbidden struct {
	Action string
}

func (e *ErrForbidden) Error() string {
	return fmt.Sprintf("forbidden: %s", e.Action)
}

// ErrUnauthorized indicates invalid credentials or token.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}

// ErrConflict indicates a uniqueness violation (e.g. a second profile row
// for the same user_id).
type ErrConflict struct {
	Message string
}

func (e *ErrConflict) Error() string {
	return e.Message
}

// ErrNotification is a failed email delivery. It is logged and reported as a
// notify outcome, never returned to callers of a primary write.
type ErrNotification struct {
	Template string
	Status   int
	Text     string
}

func (e *ErrNotification) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("notification [%s] failed: %s", e.Template, e.Text)
	}
	return fmt.Sprintf("notification [%s] failed with status %d: %s", e.Template, e.Status, e.Text)
}

// Reason classifies the provider status for logs.
func (e *ErrNotification) Reason() string {
	switch e.Status {
	case 400:
		return "invalid template parameters"
	case 401:
		return "authentication failed, check the public key"
	case 404:
		return "template or service not found"
	case 429:
		return "rate limit exceeded"
	case 0:
		return "transport error"
	default:
		return "unexpected provider response"
	}
}

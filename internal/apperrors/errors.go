package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// ValidationError is bad client input. No outbound call is made once one is raised.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func Validation(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// UpstreamAuthError means the credential exchange with the gateway failed.
type UpstreamAuthError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *UpstreamAuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gateway auth failed: %v", e.Err)
	}
	return fmt.Sprintf("gateway auth failed with status %d", e.StatusCode)
}

func (e *UpstreamAuthError) Unwrap() error { return e.Err }

// UpstreamGatewayError means a push or query call to the gateway failed,
// including timeouts and non-zero response codes.
type UpstreamGatewayError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *UpstreamGatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gateway %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("gateway %s failed with status %d", e.Op, e.StatusCode)
}

func (e *UpstreamGatewayError) Unwrap() error { return e.Err }

// MalformedCallbackError is an inbound notification missing required structure.
type MalformedCallbackError struct {
	Reason string
	Err    error
}

func (e *MalformedCallbackError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed callback: %s: %v", e.Reason, e.Err)
	}
	return "malformed callback: " + e.Reason
}

func (e *MalformedCallbackError) Unwrap() error { return e.Err }

// ConflictError is returned by a create when the checkout request id is taken.
type ConflictError struct {
	CheckoutRequestID string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("transaction %s already exists", e.CheckoutRequestID)
}

// PersistenceError wraps a failure of the transaction store.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func Persistence(op string, err error) *PersistenceError {
	return &PersistenceError{Op: op, Err: err}
}

// HTTPStatus maps an error from the taxonomy to the status code surfaced to
// API clients.
func HTTPStatus(err error) int {
	var (
		validation *ValidationError
		auth       *UpstreamAuthError
		gateway    *UpstreamGatewayError
		malformed  *MalformedCallbackError
		conflict   *ConflictError
	)
	switch {
	case errors.As(err, &validation), errors.As(err, &malformed):
		return http.StatusBadRequest
	case errors.As(err, &auth), errors.As(err, &gateway):
		return http.StatusBadGateway
	case errors.As(err, &conflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// UpstreamBody returns the gateway's own error body when err carries one.
func UpstreamBody(err error) string {
	var auth *UpstreamAuthError
	if errors.As(err, &auth) {
		return auth.Body
	}
	var gateway *UpstreamGatewayError
	if errors.As(err, &gateway) {
		return gateway.Body
	}
	return ""
}

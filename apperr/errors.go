// Package apperr holds the error taxonomy shared by the enrichment pipeline,
// the scoring engine and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("resource not found")
	ErrConflict = errors.New("resource changed concurrently")
)

// InputError rejects a request before any processing happens.
type InputError struct {
	Field   string
	Message string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid input on field '%s': %s", e.Field, e.Message)
}

// AdapterError is a failed call to an external collaborator
// (classifier, refiner, geocoder, scorer, reconciler).
type AdapterError struct {
	Adapter string
	Err     error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("%s adapter failed: %v", e.Adapter, e.Err)
}

func (e *AdapterError) Unwrap() error { return e.Err }

// ValidationError is a collaborator response that failed its schema check.
// Callers treat it exactly like an AdapterError.
type ValidationError struct {
	Adapter string
	Err     error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s response failed validation: %v", e.Adapter, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// InfrastructureError is fatal to a single report. It is distinct from
// "not a crisis".
type InfrastructureError struct {
	Stage string
	Err   error
}

func (e *InfrastructureError) Error() string {
	return fmt.Sprintf("infrastructure error at stage %s: %v", e.Stage, e.Err)
}

func (e *InfrastructureError) Unwrap() error { return e.Err }

// OwnershipError is returned when a responder touches a record it did not raise.
type OwnershipError struct {
	RecordID  string
	Requester string
}

func (e *OwnershipError) Error() string {
	return fmt.Sprintf("responder %q does not own crisis record %s", e.Requester, e.RecordID)
}

// IsAdapterFailure reports whether err is an AdapterError or a ValidationError.
func IsAdapterFailure(err error) bool {
	var ae *AdapterError
	var ve *ValidationError
	return errors.As(err, &ae) || errors.As(err, &ve)
}

// IsRetryable reports whether retrying the same call could succeed.
// Input and ownership errors never can.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var ie *InputError
	var oe *OwnershipError
	if errors.As(err, &ie) || errors.As(err, &oe) || errors.Is(err, ErrNotFound) {
		return false
	}
	return true
}

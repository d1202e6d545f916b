package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateCredential is returned when a technician credential is already registered.
	ErrDuplicateCredential = errors.New("credential already registered")
	// ErrDuplicateContact is returned when a technician contact is already registered.
	ErrDuplicateContact = errors.New("contact already registered")
	// ErrNoTechnicianAvailable is returned when the directory is empty at assignment time.
	ErrNoTechnicianAvailable = errors.New("no technician available")
	// ErrInvalidTransition is returned when an order is not in a status that allows the change.
	ErrInvalidTransition = errors.New("order status transition not allowed")
	// ErrEndpointUnbound is returned when a party has no messaging endpoint yet.
	ErrEndpointUnbound = errors.New("messaging endpoint not bound")
	// ErrStoreWrite marks failures of a persistence write.
	ErrStoreWrite = errors.New("store write failed")
)

// ValidationError describes input that does not satisfy the current step.
// It is recovered locally by re-prompting.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Code satisfies the router's error-code lookup.
func (e *ValidationError) Code() string { return "validation_failure" }

// IsValidation reports whether err is a *ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// StoreError wraps a failed persistence write with the operation name.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrStoreWrite) true for every StoreError.
func (e *StoreError) Is(target error) bool { return target == ErrStoreWrite }

// Code satisfies the router's error-code lookup.
func (e *StoreError) Code() string { return "store_write_failure" }

// WriteFailure wraps err as a StoreError unless it is nil or already a domain sentinel.
func WriteFailure(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrDuplicateCredential),
		errors.Is(err, ErrDuplicateContact),
		errors.Is(err, ErrNoTechnicianAvailable),
		errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrStoreWrite):
		return err
	}
	return &StoreError{Op: op, Err: err}
}

package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidEvent  = errors.New("invalid event")
	ErrUnknownOffset = errors.New("unknown ping offset")
)

// ValidationError reports which event field was rejected and why.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid event %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidEvent
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

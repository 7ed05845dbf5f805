package model

import (
	"errors"
	"fmt"
)

// Failure kinds, for use with errors.Is.
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidOperation = errors.New("invalid operation")
)

// Error is a domain failure with a kind and a human-readable reason.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Unwrap exposes the kind so errors.Is matches ErrNotFound or ErrInvalidOperation.
func (e *Error) Unwrap() error {
	return e.Kind
}

// NotFound reports that the named entity does not exist.
func NotFound(entity string) *Error {
	return &Error{Kind: ErrNotFound, Message: fmt.Sprintf("%s not found", entity)}
}

// InvalidOperation reports that a request breaks a registration rule.
func InvalidOperation(reason string) *Error {
	return &Error{Kind: ErrInvalidOperation, Message: reason}
}

// Reasons used by the registration engine and the stores.
const (
	ReasonCourseStarted     = "course already started"
	ReasonAlreadyRegistered = "already registered"
)

// IsDomainError reports whether err carries one of the domain failure kinds.
func IsDomainError(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidOperation)
}

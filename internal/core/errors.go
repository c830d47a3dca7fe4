package core

import (
	"errors"
)

// Validation failures: a required field is missing or malformed.
var (
	ErrNilEntity      = errors.New("entity is required")
	ErrEmptyTitle     = errors.New("title is required")
	ErrEmptyCode      = errors.New("code is required")
	ErrNegativeCopies = errors.New("copies cannot be negative")
	ErrEmptyName      = errors.New("name is required")
	ErrEmptyEmail     = errors.New("email is required")
	ErrInvalidEmail   = errors.New("invalid email")
	ErrDuplicateEmail = errors.New("a user with that email already exists")
	ErrDuplicateID    = errors.New("id is already in use")
)

// Business rule violations on well-formed requests.
var (
	ErrInactiveUser = errors.New("invalid or inactive user")
	ErrUserNotFound = errors.New("user not found")
	ErrBookNotFound = errors.New("book not found")
	ErrNoCopies     = errors.New("no copies available")
	ErrLoanNotFound = errors.New("loan not found")
)

// ValidationError reports a malformed or missing field.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Err.Error()
	}
	return e.Field + ": " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

// DomainError reports a business rule the operation would break.
type DomainError struct {
	Op  string
	Err error
}

func (e *DomainError) Error() string { return e.Err.Error() }

func (e *DomainError) Unwrap() error { return e.Err }

func invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// Invalid wraps err as a ValidationError on field.
func Invalid(field string, err error) error {
	return invalid(field, err)
}

// Violation wraps err as a DomainError raised by op.
func Violation(op string, err error) error {
	return &DomainError{Op: op, Err: err}
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsDomain(err error) bool {
	var de *DomainError
	return errors.As(err, &de)
}

// IsNotFound reports whether err is a domain error about a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrBookNotFound) || errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrLoanNotFound)
}

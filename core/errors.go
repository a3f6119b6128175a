package core

import (
	stderrors "errors"

	"github.com/pkg/errors"
)

var (
	// ErrNotFound is wrapped by every domain "not found" error.
	ErrNotFound = errors.New("not found")
	// ErrForbidden is wrapped by every domain permission error.
	ErrForbidden = errors.New("permission denied")
	// ErrConflict is wrapped by every domain "state does not allow this" error.
	ErrConflict = errors.New("conflict")
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

// NewFieldError is a shortcut for a ValidationError on a single field.
func NewFieldError(field string, err error) error {
	return &ValidationError{Err: err, Fields: []FieldError{{Field: field, Error: err.Error()}}}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return ""
	}
	return err.Err.Error()
}

func (err ValidationError) Unwrap() error { return err.Err }

// DomainError ties a user facing domain message to one of the core sentinels.
type DomainError struct {
	kind error
	msg  string
}

func newDomainError(kind error, msg string) error {
	return &DomainError{kind: kind, msg: msg}
}

func NewNotFoundError(msg string) error  { return newDomainError(ErrNotFound, msg) }
func NewForbiddenError(msg string) error { return newDomainError(ErrForbidden, msg) }
func NewConflictError(msg string) error  { return newDomainError(ErrConflict, msg) }

func (err *DomainError) Error() string        { return err.msg }
func (err *DomainError) Is(target error) bool { return target == err.kind }

func IsNotFound(err error) bool  { return stderrors.Is(err, ErrNotFound) }
func IsForbidden(err error) bool { return stderrors.Is(err, ErrForbidden) }
func IsConflict(err error) bool  { return stderrors.Is(err, ErrConflict) }

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}

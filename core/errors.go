package core

import "github.com/pkg/errors"

var (
	// ErrPermissionDenied is returned when the acting user's role does not allow the operation.
	ErrPermissionDenied = errors.New("permission denied")
	ErrNotFound         = errors.New("not found")
	// ErrInvalidState is returned when an operation is not allowed in the current lifecycle state.
	ErrInvalidState = errors.New("invalid state")
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

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return "validation failed"
	}
	return err.Err.Error()
}

func (err ValidationError) Unwrap() error { return err.Err }

func IsValidation(err error) bool {
	var vErr *ValidationError
	return errors.As(err, &vErr)
}

func IsPermissionDenied(err error) bool { return errors.Is(err, ErrPermissionDenied) }
func IsNotFound(err error) bool         { return errors.Is(err, ErrNotFound) }
func IsInvalidState(err error) bool     { return errors.Is(err, ErrInvalidState) }

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

package models

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a referenced thread, post, tag, user or
// group does not exist.
var ErrNotFound = errors.New("not found")

// ValidationError reports caller input that fails a contract, such as a
// retag with missing arguments. It surfaces to the user.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Validationf builds a ValidationError with a formatted message.
func Validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// ConsistencyError indicates a data-integrity bug, such as a thread with
// more than one question post. It is fatal and never caught.
type ConsistencyError struct {
	Msg string
}

func (e *ConsistencyError) Error() string { return "consistency: " + e.Msg }

// Consistencyf builds a ConsistencyError with a formatted message.
func Consistencyf(format string, args ...any) error {
	return &ConsistencyError{Msg: fmt.Sprintf(format, args...)}
}

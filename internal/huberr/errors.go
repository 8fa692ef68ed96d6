// Package huberr defines the error kinds shared across the service.
package huberr

import (
	"errors"
	"fmt"
)

// ErrNotFound reports a missing shared file or unknown route.
var ErrNotFound = errors.New("not found")

// ValidationError reports rejected input (bad display name, empty filename).
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Validation builds a ValidationError.
func Validation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// NetworkError reports a socket-level failure surfaced to the control
// surface, such as a bind failure at startup. Per-host discovery failures
// are never wrapped in this: they are the expected case and are absorbed.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Network wraps err as a NetworkError for the given operation.
func Network(op string, err error) error {
	return &NetworkError{Op: op, Err: err}
}

// TransferError reports a failure while moving file bytes: multipart parse
// errors and I/O errors during save or read.
type TransferError struct {
	Op  string
	Err error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("transfer %s: %v", e.Op, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

// Transfer wraps err as a TransferError for the given operation.
func Transfer(op string, err error) error {
	return &TransferError{Op: op, Err: err}
}

// IsTransfer reports whether err is (or wraps) a TransferError.
func IsTransfer(err error) bool {
	var te *TransferError
	return errors.As(err, &te)
}

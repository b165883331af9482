// Package errors provides the coded errors shared by kitbash's packages,
// its CLI and its HTTP service.
//
// Every failure a caller can act on carries a [Code]. INVALID_* codes mark
// input rejected before any state changed; the layer store, canvas and
// project stay valid after every error, export failures included.
//
//	err := errors.New(errors.ErrCodeInvalidTransform, "scale must be positive, got %v", s)
//	if errors.Is(err, errors.ErrCodeInvalidTransform) {
//	    // keep the old transform
//	}
//
// [Wrap] attaches a code to a lower-level cause, e.g. a failed ZIP write:
//
//	return errors.Wrap(errors.ErrCodeArchiveWrite, err, "write %s", name)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput       Code = "INVALID_INPUT"
	ErrCodeInvalidLayer       Code = "INVALID_LAYER"
	ErrCodeInvalidTransform   Code = "INVALID_TRANSFORM"
	ErrCodeInvalidExportScale Code = "INVALID_EXPORT_SCALE"
	ErrCodeInvalidCanvas      Code = "INVALID_CANVAS"
	ErrCodeInvalidPath        Code = "INVALID_PATH"
	ErrCodeInvalidProject     Code = "INVALID_PROJECT"

	// Resource not found errors
	ErrCodeNotFound      Code = "NOT_FOUND"
	ErrCodeLayerNotFound Code = "LAYER_NOT_FOUND"

	// Collaborator errors
	ErrCodeImportDecode Code = "IMPORT_DECODE"
	ErrCodeArchiveWrite Code = "ARCHIVE_WRITE"

	// Export errors
	ErrCodeExportAllocation Code = "EXPORT_ALLOCATION"
	ErrCodeCanceled         Code = "CANCELED"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// IsValidation reports whether err carries one of the INVALID_* codes.
// Validation failures never change state, so callers may fix the input and retry.
func IsValidation(err error) bool {
	switch GetCode(err) {
	case ErrCodeInvalidInput, ErrCodeInvalidLayer, ErrCodeInvalidTransform,
		ErrCodeInvalidExportScale, ErrCodeInvalidCanvas, ErrCodeInvalidPath,
		ErrCodeInvalidProject:
		return true
	}
	return false
}

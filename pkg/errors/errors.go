// Package errors provides structured error types for parcelgrid.
//
// Every failure the pipeline, the stores and the serving layer can report
// carries a machine-readable [Code] so that the CLI and the HTTP handlers can
// decide how to surface it without string matching.
//
// # Error Codes
//
//   - MALFORMED_DOCUMENT: the input is not a JSON array of parcel objects.
//     Fatal; nothing has been mutated when it is returned.
//   - DEGENERATE_PARCEL: a parcel has fewer than 3 usable vertices. Recovered
//     locally by excluding the parcel from row processing.
//   - INVALID_CONFIG / INVALID_INPUT: rejected options or request payloads.
//   - FILE_NOT_FOUND / STORE_ERROR: document store failures.
//   - NOTIFY_FAILED: the notification sink could not deliver a record.
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidConfig, "row tolerance must be positive, got %g", tol)
//	if errors.Is(err, errors.ErrCodeInvalidConfig) {
//	    // Handle validation error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeStore, origErr, "save %s", uri)
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
	ErrCodeMalformedDocument Code = "MALFORMED_DOCUMENT"
	ErrCodeDegenerateParcel  Code = "DEGENERATE_PARCEL"
	ErrCodeInvalidConfig     Code = "INVALID_CONFIG"
	ErrCodeInvalidInput      Code = "INVALID_INPUT"

	// Storage errors
	ErrCodeFileNotFound Code = "FILE_NOT_FOUND"
	ErrCodeStore        Code = "STORE_ERROR"

	// Delivery errors
	ErrCodeNotifyFailed Code = "NOTIFY_FAILED"

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

// HTTPStatus maps an error code to the status the serving layer replies with.
func HTTPStatus(err error) int {
	switch GetCode(err) {
	case ErrCodeMalformedDocument, ErrCodeInvalidInput, ErrCodeInvalidConfig:
		return 400
	case ErrCodeFileNotFound:
		return 404
	case ErrCodeUnsupported:
		return 501
	default:
		return 500
	}
}

// Package errors provides structured error types for the datashader pipeline.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across CLI, API, and library callers
//   - Machine-readable error codes for programmatic handling
//   - User-friendly error messages
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Error codes follow a hierarchical naming convention:
//   - INVALID_*: Configuration validation failures, raised at setup
//   - UNKNOWN_*: Named resources (columns, colormaps) that do not exist
//   - INCOMPATIBLE_*: Mixing grids or images that cannot be combined
//   - INTERNAL_*: Unexpected internal errors
//
// Configuration mistakes surface immediately, before any large-data pass
// runs. Data-quality issues (NaN values, out-of-range coordinates) are
// never reported through this package; the aggregation loop absorbs them
// silently.
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidCanvas, "width must be >= 1, got %d", w)
//	if errors.Is(err, errors.ErrCodeInvalidCanvas) {
//	    // Handle configuration error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeInternal, origErr, "encoding %s", path)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Configuration validation errors
	ErrCodeInvalidCanvas    Code = "INVALID_CANVAS"
	ErrCodeInvalidRange     Code = "INVALID_RANGE"
	ErrCodeInvalidReduction Code = "INVALID_REDUCTION"
	ErrCodeInvalidColormap  Code = "INVALID_COLORMAP"
	ErrCodeInvalidHow       Code = "INVALID_HOW"
	ErrCodeInvalidMask      Code = "INVALID_MASK"
	ErrCodeInvalidSource    Code = "INVALID_SOURCE"
	ErrCodeInvalidConfig    Code = "INVALID_CONFIG"

	// Named resources that do not exist
	ErrCodeUnknownColumn   Code = "UNKNOWN_COLUMN"
	ErrCodeUnknownCategory Code = "UNKNOWN_CATEGORY"
	ErrCodeUnknownColormap Code = "UNKNOWN_COLORMAP"
	ErrCodeUnknownFeed     Code = "UNKNOWN_FEED"

	// Combining mismatched artifacts
	ErrCodeIncompatibleGrids  Code = "INCOMPATIBLE_GRIDS"
	ErrCodeIncompatibleImages Code = "INCOMPATIBLE_IMAGES"

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

// Package errors provides structured error types for the Strata system.
// All errors carry a category, code, message, and client-visibility flag
// for consistent handling across components.
package errors

import (
	"errors"
	"fmt"
)

// Category classifies errors by system component.
type Category string

const (
	CategoryExtract  Category = "EXTRACT"
	CategoryStorage  Category = "STORAGE"
	CategoryRegistry Category = "REGISTRY"
	CategoryQuery    Category = "QUERY"
	CategoryInternal Category = "INTERNAL"
)

// Error codes for each category.
const (
	// Extraction codes
	CodeSourceRead  = "SOURCE_READ"
	CodeTypeMapping = "TYPE_MAPPING"
	CodeWriteFailed = "WRITE_FAILED"

	// Storage codes
	CodeObjectNotFound = "OBJECT_NOT_FOUND"
	CodeReadFailed     = "READ_FAILED"
	CodeInvalidRange   = "INVALID_RANGE"

	// Registry codes
	CodeColumnMismatch = "COLUMN_MISMATCH"
	CodeEmptyRoot      = "EMPTY_ROOT"
	CodeUnknownTable   = "UNKNOWN_TABLE"

	// Query codes
	CodeParse             = "PARSE_ERROR"
	CodeUnsupportedSyntax = "UNSUPPORTED_SYNTAX"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// Error is the structured error type used throughout the system.
type Error struct {
	Category Category
	Code     string
	Message  string
	Cause    error
}

// Error returns a formatted error string.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new Error.
func New(category Category, code, message string) *Error {
	return &Error{Category: category, Code: code, Message: message}
}

// Newf creates a new Error with a formatted message.
func Newf(category Category, code, format string, args ...any) *Error {
	return &Error{Category: category, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(category Category, code, message string, cause error) *Error {
	return &Error{Category: category, Code: code, Message: message, Cause: cause}
}

// Is reports whether the error chain holds a structured error with the
// given category and code.
func Is(err error, category Category, code string) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Category == category && se.Code == code
	}
	return false
}

// GetCategory extracts the category from an error chain.
// Returns empty string if the chain holds no structured error.
func GetCategory(err error) Category {
	var se *Error
	if errors.As(err, &se) {
		return se.Category
	}
	return ""
}

// ClientVisible reports whether an error should be echoed to the caller
// verbatim. Query and registry errors are caller-caused; everything else
// is surfaced as an opaque server failure with detail kept in logs.
func ClientVisible(err error) bool {
	switch GetCategory(err) {
	case CategoryQuery, CategoryRegistry:
		return true
	}
	return false
}

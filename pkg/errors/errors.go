// Package errors provides structured error types for noirforge.
//
// Every failure the resolution and build layers report to a caller carries a
// machine-readable [Code], so the CLI (and any embedding program) can tell a
// missing manifest from a network failure without string matching.
//
// # Error Codes
//
// Codes are grouped by the component that raises them:
//   - MANIFEST_*: package manifest loading
//   - DEPENDENCY_*, INVALID_DEPENDENCY_KIND, PATH_NOT_FOUND: dependency resolution
//   - FETCH_FAILED, ARCHIVE_CORRUPT: remote archive resolution
//   - NOT_A_CONTRACT_PROJECT, COMPILE_DIAGNOSTICS: compilation
//
// # Usage
//
//	err := errors.New(errors.ErrCodeDependencyUnresolved, "dependency %s not resolved", name)
//	if errors.Is(err, errors.ErrCodeDependencyUnresolved) {
//	    // Handle unresolved dependency
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeFetchFailed, origErr, "failed to fetch %s", url)
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
	ErrCodeInvalidInput Code = "INVALID_INPUT"
	ErrCodeInvalidPath  Code = "INVALID_PATH"

	// Manifest errors
	ErrCodeManifestNotFound   Code = "MANIFEST_NOT_FOUND"
	ErrCodeManifestParseError Code = "MANIFEST_PARSE_ERROR"

	// Resolution errors
	ErrCodeDependencyUnresolved  Code = "DEPENDENCY_UNRESOLVED"
	ErrCodeInvalidDependencyKind Code = "INVALID_DEPENDENCY_KIND"
	ErrCodePathNotFound          Code = "PATH_NOT_FOUND"

	// Remote archive errors
	ErrCodeFetchFailed    Code = "FETCH_FAILED"
	ErrCodeArchiveCorrupt Code = "ARCHIVE_CORRUPT"

	// Build errors
	ErrCodeNotAContractProject Code = "NOT_A_CONTRACT_PROJECT"
	ErrCodeCompileDiagnostics  Code = "COMPILE_DIAGNOSTICS"

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

// Is reports whether any *Error in err's chain has the given code.
// Unlike [GetCode], a wrapping error with a different code does not hide an
// inner match: a FETCH_FAILED wrapped as DEPENDENCY_UNRESOLVED satisfies both.
func Is(err error, code Code) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Code == code {
			return true
		}
		err = e.Cause
	}
	return false
}

// GetCode extracts the outermost error code from an error, if available.
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

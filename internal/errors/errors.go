package errors

import (
	stderrors "errors"
	"fmt"
)

// Error is the structured error type for docsift.
// It provides rich context for error handling, logging, and user presentation.
type Error struct {
	// Code is the unique error code (e.g., "ERR_203_FILE_CORRUPT").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Validation, Provider, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with Error.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *Error) WithDetail(key, value string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a new Error with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *Error {
	return &Error{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates an Error from an existing error.
// The error's message becomes the Error message. Returns nil for nil input.
func Wrap(code string, err error) *Error {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ValidationError creates a fatal input validation error.
func ValidationError(code, message string) *Error {
	return New(code, message, nil)
}

// ProviderError creates an embedding/LLM provider error with an explicit
// retryable flag. Transient failures (timeout, rate limit, 5xx) are retryable;
// auth and quota failures are not.
func ProviderError(message string, retryable bool, cause error) *Error {
	code := ErrCodeProviderUnavailable
	if !retryable {
		code = ErrCodeProviderAuth
	}
	e := New(code, message, cause)
	e.Retryable = retryable
	return e
}

// IsRetryable reports whether err (or any error in its chain) is a
// retryable *Error. Unknown error types are treated as non-retryable.
func IsRetryable(err error) bool {
	var de *Error
	if stderrors.As(err, &de) {
		return de.Retryable
	}
	return false
}

// CodeOf returns the structured code of err, or ErrCodeInternal when err is
// not a *Error.
func CodeOf(err error) string {
	var de *Error
	if stderrors.As(err, &de) {
		return de.Code
	}
	return ErrCodeInternal
}

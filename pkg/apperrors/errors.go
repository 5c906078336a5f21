// Package apperrors defines the error taxonomy shared by the service and
// HTTP layers. Every request terminates in success or exactly one of these
// kinds, and the kind decides the response status code.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an application error.
type Kind int

const (
	// KindConfiguration marks a missing or invalid server configuration value.
	KindConfiguration Kind = iota
	// KindValidation marks a malformed identifier or request payload.
	KindValidation
	// KindSchemaValidation marks records that do not match a declared schema.
	KindSchemaValidation
	// KindDatabase wraps any failure from the external warehouse.
	KindDatabase
	// KindUnhandled is the catch-all for everything else.
	KindUnhandled
)

// String returns the stable name used in log rows and error reports.
func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "ConfigurationError"
	case KindValidation:
		return "ValidationError"
	case KindSchemaValidation:
		return "SchemaValidationError"
	case KindDatabase:
		return "DatabaseError"
	default:
		return "UnhandledException"
	}
}

// StatusCode maps the kind to its HTTP response status.
func (k Kind) StatusCode() int {
	switch k {
	case KindValidation, KindSchemaValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified application error with optional structured details
// that are echoed back to API consumers.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// StatusCode returns the HTTP status for this error.
func (e *Error) StatusCode() int { return e.Kind.StatusCode() }

// Configuration reports a missing or invalid configuration value.
func Configuration(message string) *Error {
	return &Error{Kind: KindConfiguration, Message: message}
}

// Validation reports a malformed identifier or payload.
func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// Validationf reports a malformed identifier or payload with formatting.
func Validationf(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// SchemaValidation reports records that violate a declared schema. Details
// carry the expected-schema listing for the response body.
func SchemaValidation(message string, details map[string]any) *Error {
	return &Error{Kind: KindSchemaValidation, Message: message, Details: details}
}

// Database wraps a warehouse failure with added operation context.
func Database(message string, err error) *Error {
	return &Error{Kind: KindDatabase, Message: message, Err: err}
}

// Databasef wraps a warehouse failure with a formatted message.
func Databasef(err error, format string, args ...any) *Error {
	return &Error{Kind: KindDatabase, Message: fmt.Sprintf(format, args...), Err: err}
}

// From classifies err. Application errors pass through unchanged; anything
// else becomes an unhandled error reporting only the message.
func From(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return &Error{Kind: KindUnhandled, Message: err.Error(), Err: err}
}

// IsKind reports whether err is an application error of the given kind.
func IsKind(err error, kind Kind) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Kind == kind
}

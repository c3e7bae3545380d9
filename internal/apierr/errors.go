// Package apierr centralizes the error-kind taxonomy used across the
// verification core so every package returns a status code the HTTP and
// WebSocket boundaries can map consistently instead of inventing their own.
package apierr

import (
	"errors"
	"net/http"
)

type Kind string

const (
	AuthInvalid            Kind = "AUTH_INVALID"
	AuthExpired            Kind = "AUTH_EXPIRED"
	RateLimited            Kind = "RATE_LIMITED"
	QuotaExhausted         Kind = "QUOTA_EXHAUSTED"
	NotFound               Kind = "NOT_FOUND"
	Forbidden              Kind = "FORBIDDEN"
	InvalidInput           Kind = "INVALID_INPUT"
	InsufficientData       Kind = "INSUFFICIENT_DATA"
	ClassifierUnavailable  Kind = "CLASSIFIER_UNAVAILABLE"
	StorageUnavailable     Kind = "STORAGE_UNAVAILABLE"
	StoreUnavailable       Kind = "STORE_UNAVAILABLE"
	Internal               Kind = "INTERNAL"
)

// Error wraps a Kind, a user-facing message, and the underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an *Error carrying cause as context.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// StatusCode implements the HTTP mapping table from the error handling design.
func (e *Error) StatusCode() int {
	switch e.Kind {
	case AuthInvalid, AuthExpired:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case InvalidInput:
		return http.StatusBadRequest
	case RateLimited, QuotaExhausted:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// KindOf extracts the Kind of err if it is (or wraps) an *Error, else Internal.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return Internal
}

// StatusCodeOf maps any error to an HTTP status, defaulting to 500.
func StatusCodeOf(err error) int {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.StatusCode()
	}
	return http.StatusInternalServerError
}

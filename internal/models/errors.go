package models

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies failures so the HTTP layer can map them to statuses.
type ErrorKind string

const (
	KindConfiguration ErrorKind = "configuration"
	KindAuth          ErrorKind = "auth"
	KindProvider      ErrorKind = "provider"
	KindTransport     ErrorKind = "transport"
	KindValidation    ErrorKind = "validation"
	KindPersistence   ErrorKind = "persistence"
	KindNotFound      ErrorKind = "not_found"
	KindForbidden     ErrorKind = "forbidden"
)

// Error is the engine's error type. Status is only meaningful for
// provider errors, where it carries the upstream HTTP status.
type Error struct {
	Kind    ErrorKind
	Message string
	Status  int
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the error kind to the status sent to API callers.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindTransport:
		return http.StatusBadGateway
	case KindProvider:
		if e.Status >= 400 && e.Status < 600 {
			return e.Status
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func NewConfigurationError(format string, args ...interface{}) *Error {
	return &Error{Kind: KindConfiguration, Message: fmt.Sprintf(format, args...)}
}

func NewValidationError(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func NewNotFoundError(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func NewForbiddenError(format string, args ...interface{}) *Error {
	return &Error{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

func NewAuthError(message string) *Error {
	return &Error{Kind: KindAuth, Message: message, Status: http.StatusUnauthorized}
}

func NewProviderError(status int, message string) *Error {
	return &Error{Kind: KindProvider, Message: message, Status: status}
}

func NewTransportError(message string, err error) *Error {
	return &Error{Kind: KindTransport, Message: message, Err: err}
}

func NewPersistenceError(message string, err error) *Error {
	return &Error{Kind: KindPersistence, Message: message, Err: err}
}

// KindOf returns the kind of the first *Error in the chain, or "" if none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

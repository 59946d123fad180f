// Package errors defines coded domain errors shared across services.
//
// Services return these instead of raw errors so transports can map them to
// protocol-level responses and callers can branch on the code without string
// matching. Infrastructure facts (not found, conflict) originate as sentinels
// in pkg/platform/sentinel and are translated here at the service boundary.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a class of domain failure.
type Code string

const (
	CodeBadRequest    Code = "bad_request"
	CodeNotFound      Code = "not_found"
	CodeConflict      Code = "conflict"
	CodeInternal      Code = "internal"
	CodeTimeout       Code = "timeout"
	CodeInvalidValue  Code = "invalid_value"
	CodeBadFormat     Code = "badly_formatted_value"
	CodeLocked        Code = "locked"
	CodeDeleted       Code = "deleted"
	CodeConfiguration Code = "configuration"
	CodeValidation    Code = "validation"
)

// DomainError carries a machine-readable code alongside the message.
type DomainError struct {
	Code    Code
	Message string
	cause   error
}

func (e DomainError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e DomainError) Unwrap() error { return e.cause }

// New builds a DomainError with the given code and message.
func New(code Code, message string) error {
	return DomainError{Code: code, Message: message}
}

// Newf builds a DomainError with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return DomainError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) error {
	return DomainError{Code: code, Message: message, cause: err}
}

// Wrapf attaches a code and a formatted message to an underlying error.
func Wrapf(err error, code Code, format string, args ...any) error {
	return DomainError{Code: code, Message: fmt.Sprintf(format, args...), cause: err}
}

// HasCode reports whether err (or anything it wraps) is a DomainError with
// the given code.
func HasCode(err error, code Code) bool {
	var de DomainError
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf extracts the code from err, defaulting to CodeInternal.
func CodeOf(err error) Code {
	var de DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a domain error code to an HTTP status.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest, CodeInvalidValue, CodeBadFormat:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeLocked, CodeDeleted:
		return http.StatusConflict
	case CodeValidation:
		return http.StatusUnprocessableEntity
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Package apperr provides the error taxonomy shared by the identity,
// profile and consultation layers.
package apperr

import (
	"errors"
	"net/http"
)

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an error that is not a domain error.
	CodeUnknown Code = "UNKNOWN"

	// Input errors
	CodeMissingField Code = "MISSING_FIELD"
	CodeValidation   Code = "VALIDATION"

	// Identity errors
	CodeDuplicateUser      Code = "DUPLICATE_USER"
	CodeInvalidCredentials Code = "INVALID_CREDENTIALS"
	CodeRecoveryFailed     Code = "RECOVERY_FAILED"
	CodeUnauthenticated    Code = "UNAUTHENTICATED"

	// Upstream AI errors
	CodeAnalysisService     Code = "ANALYSIS_SERVICE"
	CodeConsultationService Code = "CONSULTATION_SERVICE"

	// Transport errors
	CodeSessionBusy Code = "SESSION_BUSY"
	CodeRateLimited Code = "RATE_LIMITED"
	CodeNotFound    Code = "NOT_FOUND"

	// Startup errors
	CodeConfiguration Code = "CONFIGURATION"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeMissingField, CodeValidation:
		return http.StatusBadRequest
	case CodeDuplicateUser, CodeSessionBusy:
		return http.StatusConflict
	case CodeInvalidCredentials, CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeRecoveryFailed, CodeNotFound:
		return http.StatusNotFound
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeAnalysisService, CodeConsultationService:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Error is a domain error carrying a Code and a user-facing message.
// Err, when set, is the underlying cause and is not shown to users.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New returns an Error with the given code and message.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Wrap returns an Error with the given code and message wrapping cause.
func Wrap(code Code, msg string, cause error) *Error {
	return &Error{Code: code, Message: msg, Err: cause}
}

// GetCode extracts the error code from any error.
// Returns CodeUnknown if the error is not a domain error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// IsCode checks if the error has the specified code.
func IsCode(err error, code Code) bool {
	return GetCode(err) == code
}

// Message returns the user-facing message for err. Non-domain errors get a
// generic message so internal details do not leak.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "an unexpected error occurred"
}

// MissingField reports that a required input was empty.
func MissingField(msg string) *Error { return New(CodeMissingField, msg) }

// Validation reports that an input was present but unacceptable.
func Validation(msg string) *Error { return New(CodeValidation, msg) }

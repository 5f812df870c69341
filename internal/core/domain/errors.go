// Package domain defines the core domain models for salesdesk.
package domain

import (
	"errors"
	"fmt"
	"strings"
)

// DomainError represents a client-side domain error with a structured error code.
// Codes follow the SD-<AREA>-<NNNN> format.
type DomainError struct {
	Code    string // Error code (e.g., "SD-RSRC-4040")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is() support for error comparison.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

var (
	// ErrResourceNotFound is returned by single-entity operations on a
	// resource name that has no endpoint mapping.
	ErrResourceNotFound = NewDomainError("SD-RSRC-4040", "resource not found")

	// ErrInvalidResource indicates a malformed resource request (empty id, bad payload).
	ErrInvalidResource = NewDomainError("SD-RSRC-4000", "invalid resource request")
)

var (
	// ErrLoginRejected indicates the backend answered the login call with success=false.
	ErrLoginRejected = NewDomainError("SD-AUTH-4010", "login rejected")

	// ErrNotLoggedIn indicates an operation requires a session and none is stored.
	ErrNotLoggedIn = NewDomainError("SD-AUTH-4011", "not logged in")
)

// ErrorKind classifies a failed API call.
type ErrorKind string

const (
	KindNetwork     ErrorKind = "network"
	KindTimeout     ErrorKind = "timeout"
	KindHTTPStatus  ErrorKind = "http_status"
	KindDecode      ErrorKind = "decode"
	KindAuthExpired ErrorKind = "auth_expired"
)

// NormalizedError is the single error shape surfaced by the request engine.
//
// HTTPStatus is non-zero iff Kind == KindHTTPStatus.
type NormalizedError struct {
	Kind       ErrorKind
	HTTPStatus int
	Message    string
	RawBody    any
	Cause      error
}

// Error implements the error interface.
func (e *NormalizedError) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying transport or decode error.
func (e *NormalizedError) Unwrap() error {
	return e.Cause
}

// Is matches another NormalizedError of the same kind.
func (e *NormalizedError) Is(target error) bool {
	t, ok := target.(*NormalizedError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// IsRouteNotFound reports whether the backend signalled that the endpoint
// is not implemented yet (HTTP 404 with a "Route not found" message).
func (e *NormalizedError) IsRouteNotFound() bool {
	return e.Kind == KindHTTPStatus &&
		e.HTTPStatus == 404 &&
		strings.Contains(strings.ToLower(e.Message), "route not found")
}

// Sentinels for errors.Is matching by kind.
var (
	ErrNetwork     = &NormalizedError{Kind: KindNetwork}
	ErrTimeout     = &NormalizedError{Kind: KindTimeout}
	ErrHTTPStatus  = &NormalizedError{Kind: KindHTTPStatus}
	ErrDecode      = &NormalizedError{Kind: KindDecode}
	ErrAuthExpired = &NormalizedError{Kind: KindAuthExpired}
)

// NewNetworkError builds a Network error.
func NewNetworkError(cause error) *NormalizedError {
	msg := "network error"
	if cause != nil {
		msg = cause.Error()
	}
	return &NormalizedError{Kind: KindNetwork, Message: msg, Cause: cause}
}

// NewTimeoutError builds a Timeout error.
func NewTimeoutError(cause error) *NormalizedError {
	return &NormalizedError{Kind: KindTimeout, Message: "request timed out", Cause: cause}
}

// NewHTTPStatusError builds an HttpStatus error.
func NewHTTPStatusError(status int, message string, rawBody any) *NormalizedError {
	return &NormalizedError{
		Kind:       KindHTTPStatus,
		HTTPStatus: status,
		Message:    message,
		RawBody:    rawBody,
	}
}

// NewDecodeError builds a Decode error.
func NewDecodeError(cause error, rawBody any) *NormalizedError {
	msg := "invalid response body"
	if cause != nil {
		msg = "invalid response body: " + cause.Error()
	}
	return &NormalizedError{Kind: KindDecode, Message: msg, RawBody: rawBody, Cause: cause}
}

// NewAuthExpiredError builds an AuthExpired error.
func NewAuthExpiredError(message string, rawBody any) *NormalizedError {
	if message == "" {
		message = "session expired"
	}
	return &NormalizedError{Kind: KindAuthExpired, Message: message, RawBody: rawBody}
}

// AsNormalized extracts a NormalizedError from an error chain.
func AsNormalized(err error) (*NormalizedError, bool) {
	var ne *NormalizedError
	if errors.As(err, &ne) {
		return ne, true
	}
	return nil, false
}

// KindOf returns the kind of a NormalizedError in err's chain, or "".
func KindOf(err error) ErrorKind {
	if ne, ok := AsNormalized(err); ok {
		return ne.Kind
	}
	return ""
}

// IsKind reports whether err carries a NormalizedError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// IsRouteNotFound reports whether err is a backend "Route not found" 404.
func IsRouteNotFound(err error) bool {
	ne, ok := AsNormalized(err)
	return ok && ne.IsRouteNotFound()
}

package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	ErrorTypeNavigation    ErrorType = "navigation"
	ErrorTypeExtraction    ErrorType = "extraction"
	ErrorTypeAccessDenied  ErrorType = "access_denied"
	ErrorTypeStorage       ErrorType = "storage"
	ErrorTypeExport        ErrorType = "export"
	ErrorTypeCircuitBroken ErrorType = "circuit_broken"
	ErrorTypeUnknown       ErrorType = "unknown"
)

// ErrAccessDenied is returned when the archive serves its block page
var ErrAccessDenied = &Error{Type: ErrorTypeAccessDenied, Message: "access_denied"}

// Error is a typed scraper error. Page is -1 when the error is not tied to a listing page.
type Error struct {
	Type    ErrorType
	Message string
	Page    int
	Err     error
}

func (e *Error) Error() string {
	if e.Type == ErrorTypeAccessDenied {
		return e.Message
	}
	if e.Page >= 0 {
		return fmt.Sprintf("%s error (page %d): %s", e.Type, e.Page, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on type so errors.Is(err, ErrAccessDenied) works for any access denied error
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Type == e.Type
}

// New creates a typed error not tied to a page
func New(errorType ErrorType, message string, cause error) *Error {
	return &Error{Type: errorType, Message: message, Page: -1, Err: cause}
}

// NewPageError creates a typed error for a listing page
func NewPageError(errorType ErrorType, page int, cause error) *Error {
	msg := string(errorType)
	if cause != nil {
		msg = cause.Error()
	}
	return &Error{Type: errorType, Message: msg, Page: page, Err: cause}
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNavigation, ErrorTypeExtraction, ErrorTypeStorage, ErrorTypeExport, ErrorTypeAccessDenied:
		return true
	default:
		return false
	}
}

// TypeOf returns the ErrorType carried by err, or ErrorTypeUnknown
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// Reason condenses an error into the short reason string recorded on a failed page
func Reason(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrAccessDenied) {
		return "access_denied"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}

	msg := err.Error()
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	const maxReason = 200
	if len(msg) > maxReason {
		cut := maxReason
		for cut > 0 && !utf8.RuneStart(msg[cut]) {
			cut--
		}
		msg = msg[:cut]
	}
	return msg
}

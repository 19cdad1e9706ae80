package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches errors carrying the same code, so clones of a predefined error
// still satisfy errors.Is against the original.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Internal wraps an unexpected failure as a 500 with a caller-safe message.
func Internal(err error, message string) *Error {
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, message)
}

// Predefined errors for common scenarios.
var (
	ErrNotFound     = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden    = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrValidation   = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal     = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")

	ErrEventNotFound         = New("NOT_FOUND", http.StatusNotFound, "Event not found")
	ErrEventPassed           = New("EVENT_PASSED", http.StatusBadRequest, "Cannot register for past events. This event has already occurred.")
	ErrAlreadyRegistered     = New("ALREADY_REGISTERED", http.StatusBadRequest, "You have already registered for this event.")
	ErrAttendanceNotRequired = New("ATTENDANCE_NOT_REQUIRED", http.StatusBadRequest, "This event does not require attendance")
	ErrNotRegistered         = New("NOT_REGISTERED", http.StatusBadRequest, "You are not registered for this event")
	ErrAlreadyMarked         = New("ALREADY_MARKED", http.StatusBadRequest, "Attendance already marked")
	ErrWindowClosed          = New("WINDOW_CLOSED", http.StatusBadRequest, "Attendance window closed")
	ErrInvalidQRCode         = New("INVALID_QR_CODE", http.StatusBadRequest, "Invalid or expired QR code")

	// ErrCacheMiss never reaches clients; the cache layer uses it to signal absence.
	ErrCacheMiss = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

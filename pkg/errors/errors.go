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

// Is matches errors by code so cloned and wrapped copies compare equal to the predefined values.
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

// WrapAs wraps err using the code and status of base.
func WrapAs(err error, base *Error, message string) *Error {
	if message == "" {
		message = base.Message
	}
	return Wrap(err, base.Code, base.Status, message)
}

// Predefined errors for common scenarios.
var (
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrPreconditionFailed = New("PRECONDITION_FAILED", http.StatusPreconditionFailed, "precondition failed")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrTooManyRequests    = New("TOO_MANY_REQUESTS", http.StatusTooManyRequests, "too many requests, try again shortly")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// Attendance redemption failures. Each maps to one user-facing message.
var (
	ErrInvalidToken             = New("INVALID_TOKEN", http.StatusNotFound, "invalid attendance code")
	ErrTooEarly                 = New("TOO_EARLY", http.StatusUnprocessableEntity, "code not valid yet")
	ErrExpired                  = New("EXPIRED", http.StatusGone, "code expired")
	ErrNoStudentLinked          = New("NO_STUDENT_LINKED", http.StatusNotFound, "no student linked to this account")
	ErrStudentSelectionRequired = New("STUDENT_SELECTION_REQUIRED", http.StatusUnprocessableEntity, "select which student is attending")
	ErrNotEnrolled              = New("NOT_ENROLLED", http.StatusForbidden, "student is not enrolled in this class")
	ErrAlreadyMarked            = New("ALREADY_MARKED", http.StatusConflict, "attendance already marked today")
	ErrPersistence              = New("PERSISTENCE_FAILURE", http.StatusInternalServerError, "failed to save, please try again")
)

// Payment provider failures.
var (
	ErrChargeCreationFailed = New("CHARGE_CREATION_FAILED", http.StatusBadGateway, "failed to create charge")
	ErrStatusLookupFailed   = New("STATUS_LOOKUP_FAILED", http.StatusBadGateway, "failed to fetch payment status")
	ErrMarkPaidFailed       = New("MARK_PAID_FAILED", http.StatusBadGateway, "failed to confirm payment")
	ErrMissingAPIKey        = New("MISSING_API_KEY", http.StatusInternalServerError, "payment gateway api key is not configured")
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

// CodeOf returns the code carried by err, or INTERNAL_ERROR for untyped errors.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	return FromError(err).Code
}

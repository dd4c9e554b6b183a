package errors

import (
	"errors"
	"fmt"
	"maps"
	"net/http"
)

var (
	ErrNotFound   = NewError("NOT_FOUND", "resource not found", http.StatusNotFound)
	ErrValidation = NewError("VALIDATION_ERROR", "validation failed", http.StatusBadRequest)
	ErrInternal   = NewError("INTERNAL_ERROR", "internal server error", http.StatusInternalServerError)
)

// Error is an application error with a stable code and HTTP status. Validation
// and not-found errors are fatal to message retries; others are retried unless
// marked with AsFatal.
type Error struct {
	Code    string
	Message string
	Status  int
	Details map[string]interface{}
	Cause   error
	fatal   *bool
}

func NewError(code, message string, status int) *Error {
	return &Error{Code: code, Message: message, Status: status}
}

func (e *Error) Error() string {
	msg := e.Message
	if detail, ok := e.Details["message"].(string); ok && detail != "" {
		msg = detail
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) IsFatal() bool {
	if e.fatal != nil {
		return *e.fatal
	}
	var fatalErr interface{ IsFatal() bool }
	if e.Cause != nil && errors.As(e.Cause, &fatalErr) {
		return fatalErr.IsFatal()
	}
	return e.Code == ErrValidation.Code || e.Code == ErrNotFound.Code
}

func (e *Error) WithCause(cause error) *Error {
	err := *e
	err.Cause = cause
	return &err
}

// WithDetail returns a copy with key set; the receiver's details are not modified.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	err := *e
	err.Details = maps.Clone(e.Details)
	if err.Details == nil {
		err.Details = make(map[string]interface{}, 1)
	}
	err.Details[key] = value
	return &err
}

func (e *Error) AsFatal() *Error {
	err := *e
	fatal := true
	err.fatal = &fatal
	return &err
}

func Wrap(err error, appErr *Error) *Error {
	if err == nil {
		return nil
	}
	return appErr.WithCause(err)
}

// Validationf returns a validation error whose message replaces the generic one.
func Validationf(format string, args ...interface{}) *Error {
	return ErrValidation.WithDetail("message", fmt.Sprintf(format, args...))
}

func NotFoundf(format string, args ...interface{}) *Error {
	return ErrNotFound.WithDetail("message", fmt.Sprintf(format, args...))
}

func hasCode(err error, code string) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Code == code
}

func IsValidation(err error) bool {
	return hasCode(err, ErrValidation.Code)
}

// IsPanic reports whether err was produced by RecoverPanic.
func IsPanic(err error) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		recovered, _ := appErr.Details["panic"].(bool)
		return recovered
	}
	return false
}

func ToHTTPStatus(err error) int {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	return http.StatusInternalServerError
}

// ToErrorResponse is the JSON error body of the admin API. Stack traces from
// recovered panics are not exposed.
func ToErrorResponse(err error) map[string]interface{} {
	var appErr *Error
	if !errors.As(err, &appErr) {
		appErr = ErrInternal
	}

	response := map[string]interface{}{
		"error":      appErr.Message,
		"error_code": appErr.Code,
	}
	if msg, ok := appErr.Details["message"].(string); ok && msg != "" {
		response["error"] = msg
	}
	if appErr.Cause != nil && appErr.Status < http.StatusInternalServerError {
		response["details"] = appErr.Cause.Error()
	}
	return response
}

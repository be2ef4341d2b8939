package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindValidation Kind = "validation"
	KindForbidden  Kind = "forbidden"
	KindNotFound   Kind = "not_found"
	KindEvaluation Kind = "evaluation"
	KindInternal   Kind = "internal"
)

// AppError represents an application error with HTTP status code
type AppError struct {
	Kind    Kind   `json:"kind"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	cause   error
}

func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.cause
}

func newError(kind Kind, code int, format string, args ...any) *AppError {
	return &AppError{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Validation is a malformed or incomplete report definition. Never retried.
func Validation(format string, args ...any) *AppError {
	return newError(KindValidation, http.StatusBadRequest, format, args...)
}

func Forbidden(format string, args ...any) *AppError {
	return newError(KindForbidden, http.StatusForbidden, format, args...)
}

func NotFound(format string, args ...any) *AppError {
	return newError(KindNotFound, http.StatusNotFound, format, args...)
}

// Evaluation is a store or query failure. It may be transient.
func Evaluation(format string, args ...any) *AppError {
	return newError(KindEvaluation, http.StatusInternalServerError, format, args...)
}

// Internal signals a broken invariant.
func Internal(format string, args ...any) *AppError {
	return newError(KindInternal, http.StatusInternalServerError, format, args...)
}

// Wrap turns a collaborator failure into an evaluation error, keeping app errors untouched.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return err
	}
	return &AppError{Kind: KindEvaluation, Code: http.StatusInternalServerError, Message: message, cause: err}
}

// WithDetails adds details to an error
func WithDetails(err *AppError, details string) *AppError {
	return &AppError{
		Kind:    err.Kind,
		Code:    err.Code,
		Message: err.Message,
		Details: details,
		cause:   err.cause,
	}
}

func kindOf(err error) (Kind, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind, true
	}
	return "", false
}

func IsValidation(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindValidation
}

func IsForbidden(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindForbidden
}

func IsNotFound(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindNotFound
}

func IsEvaluation(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindEvaluation
}

// StatusCode returns the HTTP status code from an error
func StatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return http.StatusInternalServerError
}

// KindOf returns the kind of err. Errors raised outside the application are internal.
func KindOf(err error) Kind {
	if k, ok := kindOf(err); ok {
		return k
	}
	return KindInternal
}

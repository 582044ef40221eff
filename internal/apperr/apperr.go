// Package apperr defines the error kinds surfaced by reclaim operations.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel kinds. Match with errors.Is.
var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrServiceUnavailable = errors.New("external service unavailable")
	ErrRateLimited        = errors.New("rate limited")
)

// Error carries the failing operation alongside its kind
type Error struct {
	Kind error  // one of the sentinels above
	Op   string // operation that failed, e.g. "claims.assess"
	Msg  string
	Err  error // optional cause
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.Error()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NotFound builds an ErrNotFound error
func NotFound(op, format string, args ...any) error {
	return &Error{Kind: ErrNotFound, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Invalid builds an ErrInvalidInput error
func Invalid(op, format string, args ...any) error {
	return &Error{Kind: ErrInvalidInput, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Unavailable wraps a collaborator failure as ErrServiceUnavailable
func Unavailable(op string, err error) error {
	return &Error{Kind: ErrServiceUnavailable, Op: op, Err: err}
}

// RateLimited builds an ErrRateLimited error
func RateLimited(op, format string, args ...any) error {
	return &Error{Kind: ErrRateLimited, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// IsNotFound reports whether err is an ErrNotFound
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// HTTPStatus maps an error to the status code an HTTP handler should return
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

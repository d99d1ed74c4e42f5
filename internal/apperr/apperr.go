// Package apperr maps domain errors to structured HTTP errors.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jeremiesigrist/visu-pdf-pages/internal/index"
	"github.com/jeremiesigrist/visu-pdf-pages/pkg/engine"
	"github.com/jeremiesigrist/visu-pdf-pages/pkg/navigator"
)

// Type categorizes an Error.
type Type string

const (
	TypeValidation Type = "validation"
	TypeProcessing Type = "processing"
	TypeNotFound   Type = "not_found"
	TypeConflict   Type = "conflict"
	TypeCanceled   Type = "canceled"
	TypeInternal   Type = "internal"
)

// Error is the JSON error body returned by the server.
type Error struct {
	Type       Type   `json:"type"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
	StatusCode int    `json:"-"`
	Cause      error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Validation reports bad input.
func Validation(message string, cause error) *Error {
	return newError(TypeValidation, http.StatusBadRequest, message, cause)
}

// Processing reports input that was well formed but could not be used.
func Processing(message string, cause error) *Error {
	return newError(TypeProcessing, http.StatusUnprocessableEntity, message, cause)
}

// NotFound reports a missing resource.
func NotFound(message string, cause error) *Error {
	return newError(TypeNotFound, http.StatusNotFound, message, cause)
}

// Conflict reports a request that clashes with work in progress.
func Conflict(message string, cause error) *Error {
	return newError(TypeConflict, http.StatusConflict, message, cause)
}

// Internal reports an unexpected failure.
func Internal(message string, cause error) *Error {
	return newError(TypeInternal, http.StatusInternalServerError, message, cause)
}

func newError(t Type, status int, message string, cause error) *Error {
	e := &Error{Type: t, Message: message, StatusCode: status, Cause: cause}
	if cause != nil {
		e.Details = cause.Error()
	}
	return e
}

// From converts err to an *Error, classifying the known domain errors.
func From(err error) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	var (
		le *engine.LoadError
		re *engine.RenderError
	)
	switch {
	case errors.Is(err, engine.ErrCanceled):
		// 499 is the de facto "client closed request" status
		return newError(TypeCanceled, 499, "request superseded", err)
	case errors.As(err, &le):
		return Processing("document could not be loaded", err)
	case errors.As(err, &re):
		return Processing("page could not be rendered", err)
	case errors.Is(err, engine.ErrEmptyQuery), errors.Is(err, navigator.ErrInvalidWidth):
		return Validation("invalid request", err)
	case errors.Is(err, index.ErrInvalidIndex):
		return Validation("invalid index", err)
	case errors.Is(err, index.ErrWrongMode):
		return Validation("not supported by this index", err)
	case errors.Is(err, index.ErrNotFound):
		return NotFound("entry not found", err)
	case errors.Is(err, navigator.ErrNoDocument), errors.Is(err, index.ErrNoIndex):
		return Conflict("no active session", err)
	case errors.Is(err, navigator.ErrSearchInProgress):
		return Conflict("search already running", err)
	}
	return Internal("internal error", err)
}

// StatusCode returns the HTTP status for err.
func StatusCode(err error) int { return From(err).StatusCode }

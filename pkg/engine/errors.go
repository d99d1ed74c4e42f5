package engine

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrCanceled reports that an operation was superseded. It is never a
	// user-facing failure.
	ErrCanceled = errors.New("engine: operation canceled")
	// ErrReleased is returned by accessors on a released document.
	ErrReleased = errors.New("engine: document released")
	// ErrEmptyQuery rejects a search without query text.
	ErrEmptyQuery = errors.New("engine: empty search query")
	// ErrPageRange is wrapped by a RenderError for a page outside the
	// document.
	ErrPageRange = errors.New("engine: page out of range")
)

// LoadError reports bytes that could not be opened as a PDF.
type LoadError struct {
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load pdf: %v", e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// RenderError reports a page that failed to rasterize or to yield text.
type RenderError struct {
	Page int
	Err  error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render page %d: %v", e.Page, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// IsCanceled reports whether err is a cancellation, from the engine or
// straight from a context.
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func canceled(cause error) error {
	return fmt.Errorf("%w: %w", ErrCanceled, cause)
}

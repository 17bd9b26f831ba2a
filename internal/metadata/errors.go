package metadata

import (
	"fmt"

	"github.com/aiphotofinder/photofinder/internal/errors"
)

var (
	// ErrUnavailable is reported when no metadata tool could be started.
	ErrUnavailable = errors.NewStd("exiftool is not available")
	// ErrClosed is reported for writes after Close.
	ErrClosed = errors.NewStd("metadata writer closed")
)

// Error is a failed metadata write for one file.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("write metadata to %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorCategory implements errors.CategorizedError.
func (e *Error) ErrorCategory() errors.ErrorCategory {
	return errors.CategoryCommandExecution
}

package inference

import (
	"fmt"
	"net/http"

	"github.com/aiphotofinder/photofinder/internal/errors"
)

// ErrMissingResponse is returned when a 200 answer has no response field.
var ErrMissingResponse = errors.NewStd("response field missing")

// Error describes a failed generate call. StatusCode is 0 when no HTTP
// response was received.
type Error struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.StatusCode != 0 && e.StatusCode != http.StatusOK:
		if e.Body != "" {
			return fmt.Sprintf("inference endpoint returned status %d: %s", e.StatusCode, e.Body)
		}
		return fmt.Sprintf("inference endpoint returned status %d", e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("inference request failed: %v", e.Err)
	default:
		return "inference request failed"
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorCategory implements errors.CategorizedError.
func (e *Error) ErrorCategory() errors.ErrorCategory {
	switch {
	case e.StatusCode == 0:
		return errors.CategoryNetwork
	case e.StatusCode == http.StatusOK:
		return errors.CategoryValidation
	default:
		return errors.CategoryHTTP
	}
}

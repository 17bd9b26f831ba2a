package datastore

import (
	"fmt"

	"github.com/aiphotofinder/photofinder/internal/errors"
)

// StoreError is the error returned for failed store operations.
type StoreError = errors.EnhancedError

// dbError creates a properly categorized database error with context
func dbError(err error, operation, priority string, context ...any) error {
	builder := errors.New(err).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Context("operation", operation)

	if priority != "" {
		builder = builder.Priority(priority)
	}

	for i := 0; i < len(context)-1; i += 2 {
		if key, ok := context[i].(string); ok {
			builder = builder.Context(key, context[i+1])
		}
	}

	return builder.Build()
}

// validationError creates a validation error
func validationError(message, field string, value any) error {
	return errors.Newf("%s", message).
		Component("datastore").
		Category(errors.CategoryValidation).
		Context("field", field).
		Context("value", fmt.Sprintf("%v", value)).
		Build()
}

// notFoundError creates a not found error matching ErrRecordNotFound
func notFoundError(resource, identifier string) error {
	return errors.New(fmt.Errorf("%w: %s %q", ErrRecordNotFound, resource, identifier)).
		Component("datastore").
		Category(errors.CategoryNotFound).
		Context("resource", resource).
		Context("identifier", identifier).
		Build()
}

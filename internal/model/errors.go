package model

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/multierr"
)

// NotFoundError is returned by stores when no article has the given id.
type NotFoundError struct {
	ID int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("article %d not found", e.ID)
}

// IsNotFound reports whether err carries a *NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError

	return errors.As(err, &nf)
}

// ValidationError collects every problem found in a request payload.
type ValidationError struct {
	err error
}

// NewValidationError combines errs into one ValidationError. Nil entries
// are dropped; it returns nil when nothing is left.
func NewValidationError(errs ...error) error {
	combined := multierr.Combine(errs...)
	if combined == nil {
		return nil
	}

	return &ValidationError{err: combined}
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Messages(), "; ")
}

// Messages returns one message per accumulated error, in the order they
// were found.
func (e *ValidationError) Messages() []string {
	errs := multierr.Errors(e.err)
	msgs := make([]string, 0, len(errs))

	for _, err := range errs {
		msgs = append(msgs, err.Error())
	}

	return msgs
}

func (e *ValidationError) Unwrap() error {
	return e.err
}

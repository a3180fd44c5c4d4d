package dataset

import (
	"errors"
)

var ErrMalformedInput = errors.New("malformed dataset")

// MalformedError marks a dataset that cannot feed a pipeline run.
type MalformedError struct {
	reason error
}

func (e MalformedError) Error() string {
	return "malformed dataset: " + e.reason.Error()
}

func (e MalformedError) Unwrap() []error {
	return []error{ErrMalformedInput, e.reason}
}

// Malformed wraps reason as a MalformedError.
func Malformed(reason error) error {
	return MalformedError{reason: reason}
}

func IsMalformed(err error) bool {
	return errors.Is(err, ErrMalformedInput)
}

package domain

import (
	"errors"
	"fmt"
)

// Record level outcomes. Deleted is an expected condition and is only
// tallied; Malformed means the record failed required-field validation.
var (
	ErrDeleted   = errors.New("listing is deleted or withdrawn")
	ErrMalformed = errors.New("listing record is malformed")
)

// Run level conditions.
var (
	ErrRunInProgress       = errors.New("another run already holds the output lock")
	ErrConsecutiveFailures = errors.New("consecutive failed pages limit exceeded")
)

// TransientError marks a fetch failure that is worth retrying: network
// timeouts, remote rate limiting, 5xx responses.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient: %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// FatalError marks a fetch failure that retrying cannot help: rejected query
// parameters, authentication failures, response shapes we cannot read.
type FatalError struct {
	Op  string
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal: %s: %v", e.Op, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// IsTransient reports whether err is retryable.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsFatal reports whether err is a non-retryable source failure.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

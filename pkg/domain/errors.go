package domain

import (
	"errors"
)

var (
	// ErrAggregateNotFound is returned when an aggregate doesn't exist.
	ErrAggregateNotFound = errors.New("aggregate not found")

	// ErrCommandNotFound is returned when a command handler is not registered.
	ErrCommandNotFound = errors.New("command handler not found")

	// ErrInvalidCommand is returned when a command is invalid.
	ErrInvalidCommand = errors.New("invalid command")

	// ErrUnknownEvent is returned when an aggregate is asked to apply an
	// event variant it does not declare. This indicates stream corruption or
	// a foreign writer and is fatal for the affected operation.
	ErrUnknownEvent = errors.New("unknown event type")
)

// DomainError is a business-rule rejection. No events are produced, the
// aggregate state is unchanged, and it is surfaced to the caller verbatim,
// never retried.
type DomainError struct {
	Reason string
}

func (e *DomainError) Error() string {
	return e.Reason
}

// NewDomainError creates a business-rule rejection with the given reason.
func NewDomainError(reason string) error {
	return &DomainError{Reason: reason}
}

// IsDomainError reports whether err is a business-rule rejection.
func IsDomainError(err error) bool {
	var de *DomainError
	return errors.As(err, &de)
}

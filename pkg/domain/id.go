package domain

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// TimeFunc is a function that returns the current time.
// This can be overridden for testing.
var TimeFunc = time.Now

// Now returns the current time using the configured TimeFunc.
func Now() time.Time {
	return TimeFunc()
}

// NewID generates a unique, lexically sortable identifier.
func NewID() string {
	return ulid.Make().String()
}

// Package store defines the persistence contracts of the engine: the
// append-only event store, the projection checkpoint store, and the
// aggregate repository that orchestrates replay, command handling, and
// version-checked appends.
package store

import (
	"context"
	"errors"

	"github.com/coffers/coffers/pkg/domain"
)

var (
	// ErrConcurrencyConflict is returned by AppendEvents when the stream's
	// current last sequence number does not match the expected version.
	// Another writer appended between the caller's read and write; the
	// append did nothing and is safe to retry from a fresh replay.
	ErrConcurrencyConflict = errors.New("concurrency conflict: stream version mismatch")

	// ErrStreamNotFound is returned when reading from the start of a stream
	// that has never been appended to.
	ErrStreamNotFound = errors.New("stream not found")

	// ErrStoreUnavailable indicates a transport or connectivity failure,
	// distinct from a legitimate concurrency race. The engine does not retry
	// it; that is left to an external backoff policy.
	ErrStoreUnavailable = errors.New("event store unavailable")
)

// EventStore defines the interface for persisting and retrieving events.
// It is purely mechanical: no business rules live behind it.
type EventStore interface {
	// AppendEvents appends events to an aggregate's stream atomically, if
	// and only if the stream's current last sequence number matches
	// expectedVersion (0 means "stream does not yet exist"). On a mismatch
	// it fails with ErrConcurrencyConflict and appends nothing. On success
	// it returns the stream's new last sequence number.
	AppendEvents(ctx context.Context, aggregateID string, expectedVersion int64, events []*domain.Event) (int64, error)

	// LoadEvents loads events for an aggregate with sequence numbers greater
	// than afterVersion, in ascending order. Loading from the start
	// (afterVersion == 0) of a stream that was never appended to fails with
	// ErrStreamNotFound.
	LoadEvents(ctx context.Context, aggregateID string, afterVersion int64) ([]*domain.Event, error)

	// LoadAllEvents loads events across all aggregates in append order,
	// for projection rebuilds. fromPosition is a global offset; limit bounds
	// the batch size.
	LoadAllEvents(ctx context.Context, fromPosition int64, limit int) ([]*domain.Event, error)

	// StreamVersion returns the current last sequence number of an
	// aggregate's stream, or 0 if the stream doesn't exist.
	StreamVersion(ctx context.Context, aggregateID string) (int64, error)

	// Close closes the event store and releases resources.
	Close() error
}

package domain

import (
	"fmt"
)

// Encoder serializes event payloads when they are recorded. Implementations
// live outside this package; see pkg/codec for the JSON implementation.
type Encoder interface {
	Encode(v any) ([]byte, error)
}

// Aggregate defines the interface that all aggregates must implement.
type Aggregate interface {
	// ID returns the unique identifier of the aggregate.
	ID() string

	// Type returns the type name of the aggregate. It namespaces the
	// aggregate's streams from other aggregate kinds sharing the same store.
	Type() string

	// Version returns the current version of the aggregate.
	Version() int64

	// ApplyEvent applies a decoded event payload to the aggregate's state.
	// This is called when replaying events from the event store. It must be
	// pure and deterministic: replaying the same sequence always yields the
	// same state. An unmatched payload type is a fatal consistency error.
	ApplyEvent(payload any) error

	// UncommittedEvents returns events that have been recorded but not yet persisted.
	UncommittedEvents() []*Event

	// ClearUncommittedEvents clears the uncommitted events after they've been persisted.
	ClearUncommittedEvents()
}

// AggregateRoot provides base functionality for all aggregates.
// Use this as an embedded type in your aggregate implementations.
type AggregateRoot struct {
	id                string
	aggregateType     string
	version           int64
	uncommittedEvents []*Event
	enc               Encoder
}

// NewAggregateRoot creates a new aggregate root with the given ID and type.
// The encoder serializes payloads of newly recorded events.
func NewAggregateRoot(id, aggregateType string, enc Encoder) AggregateRoot {
	return AggregateRoot{
		id:                id,
		aggregateType:     aggregateType,
		version:           0,
		uncommittedEvents: make([]*Event, 0),
		enc:               enc,
	}
}

// ID returns the aggregate's unique identifier.
func (a *AggregateRoot) ID() string {
	return a.id
}

// Type returns the aggregate's type name.
func (a *AggregateRoot) Type() string {
	return a.aggregateType
}

// Version returns the aggregate's current version.
func (a *AggregateRoot) Version() int64 {
	return a.version
}

// UncommittedEvents returns events that haven't been persisted yet.
func (a *AggregateRoot) UncommittedEvents() []*Event {
	return a.uncommittedEvents
}

// ClearUncommittedEvents clears the uncommitted events list.
func (a *AggregateRoot) ClearUncommittedEvents() {
	a.uncommittedEvents = make([]*Event, 0)
}

// Record records a new event produced by a command. The payload is encoded,
// wrapped in an Event at the next version, and queued as uncommitted. The
// final sequence number is authoritative only once the store accepts the
// append.
func (a *AggregateRoot) Record(payload any, eventType string, metadata EventMetadata) error {
	data, err := a.enc.Encode(payload)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	evt := &Event{
		ID:            NewID(),
		AggregateID:   a.id,
		AggregateType: a.aggregateType,
		EventType:     eventType,
		Version:       a.version + 1,
		Timestamp:     Now(),
		Data:          data,
		Metadata:      metadata,
	}

	a.uncommittedEvents = append(a.uncommittedEvents, evt)
	a.version++

	return nil
}

// LoadFromHistory advances the aggregate's version to the last sequence
// number of the replayed history. Payload application is the concrete
// aggregate's job via ApplyEvent.
func (a *AggregateRoot) LoadFromHistory(events []*Event) error {
	for _, evt := range events {
		if evt.Version <= a.version {
			continue
		}
		a.version = evt.Version
	}
	return nil
}

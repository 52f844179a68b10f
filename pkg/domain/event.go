package domain

import (
	"time"
)

// Event represents a domain event that has occurred in the system.
// Events are immutable facts about state changes: once appended to a
// stream they are never altered or removed.
type Event struct {
	// ID is the unique identifier for this event
	ID string

	// AggregateID is the identifier of the aggregate this event belongs to
	AggregateID string

	// AggregateType is the type name of the aggregate (e.g., "account")
	AggregateType string

	// EventType is the fully qualified type name of the event
	// (e.g., "account.CustomerDepositedMoney")
	EventType string

	// Version is the sequence number of the aggregate after applying this
	// event. Sequence numbers are assigned by the store, start at 1, and are
	// strictly increasing per aggregate with no gaps.
	Version int64

	// Timestamp is when the event was created
	Timestamp time.Time

	// Data is the serialized payload of the event
	Data []byte

	// Metadata contains additional contextual information
	Metadata EventMetadata
}

// EventMetadata contains contextual information about an event.
type EventMetadata struct {
	// CausationID is the ID of the command that caused this event
	CausationID string

	// CorrelationID is used to trace related events across aggregates
	CorrelationID string

	// PrincipalID is the identifier of the principal (user, service, system) who triggered this event
	PrincipalID string

	// Custom allows for application-specific metadata
	Custom map[string]string
}

// EventEnvelope wraps an event with its deserialized payload.
type EventEnvelope struct {
	Event
	Payload any
}

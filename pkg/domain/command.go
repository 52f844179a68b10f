package domain

import (
	"time"
)

// Command represents an intention to change the system state. Commands carry
// only caller-supplied data; derived state (such as a balance) is never
// passed in, it is computed from the replayed aggregate.
type Command interface {
	// AggregateID returns the ID of the aggregate this command targets.
	AggregateID() string

	// CommandType returns the fully qualified type name of the command.
	CommandType() string
}

// CommandMetadata contains contextual information about a command.
type CommandMetadata struct {
	// CommandID is the unique identifier for this command
	CommandID string

	// CorrelationID is used to trace related commands and events
	CorrelationID string

	// PrincipalID is the identifier of the principal executing this command
	PrincipalID string

	// Timestamp is when the command was created
	Timestamp time.Time

	// Custom allows for application-specific metadata
	Custom map[string]string
}

// CommandEnvelope wraps a command with its metadata.
type CommandEnvelope struct {
	Command  Command
	Metadata CommandMetadata
}

// EventMetadata derives the metadata recorded on events produced by this
// command: the command becomes the causation of its events.
func (e *CommandEnvelope) EventMetadata() EventMetadata {
	return EventMetadata{
		CausationID:   e.Metadata.CommandID,
		CorrelationID: e.Metadata.CorrelationID,
		PrincipalID:   e.Metadata.PrincipalID,
	}
}

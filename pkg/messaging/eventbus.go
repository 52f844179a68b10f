// Package messaging defines the event bus contract used to push committed
// events to projections. Delivery is at-least-once and order-preserving per
// aggregate stream; consumers must tolerate redelivery.
package messaging

import (
	"github.com/coffers/coffers/pkg/domain"
)

// EventBus publishes committed events and delivers them to subscribers.
type EventBus interface {
	// Publish publishes events to all subscribers. Events must already be
	// durably appended; the bus never participates in the write path's
	// consistency.
	Publish(events []*domain.Event) error

	// Subscribe subscribes to events matching the filter.
	Subscribe(filter EventFilter, handler EventHandler) (Subscription, error)

	// Close closes the event bus and releases resources.
	Close() error
}

// EventFilter defines criteria for filtering delivered events.
type EventFilter struct {
	// AggregateTypes filters by aggregate type (empty = all types)
	AggregateTypes []string

	// EventTypes filters by event type (empty = all types)
	EventTypes []string

	// Durable names the subscription's server-side consumer. A durable
	// subscriber that detaches and resubscribes under the same name resumes
	// at its first unacknowledged event instead of starting over. Empty
	// means a fresh consumer per subscription.
	Durable string
}

// EventHandler processes one delivered event. Returning an error nacks the
// event for redelivery.
type EventHandler func(event *domain.Event) error

// Subscription represents an active event subscription.
type Subscription interface {
	// Unsubscribe stops receiving events and cleans up resources.
	Unsubscribe() error
}

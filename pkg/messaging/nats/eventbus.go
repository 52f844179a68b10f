// Package nats implements the messaging contracts on NATS JetStream.
package nats

import (
	"fmt"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/nats-io/nats.go"

	"github.com/coffers/coffers/pkg/domain"
	"github.com/coffers/coffers/pkg/messaging"
)

var json = jsoniter.ConfigFastest

// EventBus is a NATS JetStream implementation of messaging.EventBus with
// durable, at-least-once delivery. Events are published per aggregate and
// event type under "events.<aggregate_type>.<event_type>".
type EventBus struct {
	nc         *nats.Conn
	js         nats.JetStreamContext
	streamName string
	mu         sync.RWMutex
	subs       map[string]*nats.Subscription
}

// Config holds configuration for the NATS event bus.
type Config struct {
	// URL is the NATS server URL
	URL string

	// StreamName is the JetStream stream name for events
	StreamName string

	// StreamSubjects are the subjects the stream captures (default: "events.>")
	StreamSubjects []string

	// MaxAge is how long to retain events in the stream
	MaxAge time.Duration

	// MaxBytes is the maximum bytes the stream can store
	MaxBytes int64
}

// DefaultConfig returns sensible defaults for the NATS event bus.
func DefaultConfig() Config {
	return Config{
		URL:            nats.DefaultURL,
		StreamName:     "COFFERS_EVENTS",
		StreamSubjects: []string{"events.>"},
		MaxAge:         7 * 24 * time.Hour,
		MaxBytes:       1024 * 1024 * 1024, // 1 GB
	}
}

// NewEventBus connects to NATS and ensures the JetStream stream exists.
func NewEventBus(config Config) (*EventBus, error) {
	nc, err := nats.Connect(config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	bus := &EventBus{
		nc:         nc,
		js:         js,
		streamName: config.StreamName,
		subs:       make(map[string]*nats.Subscription),
	}

	if err := bus.ensureStream(config); err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to ensure stream: %w", err)
	}

	return bus, nil
}

func (b *EventBus) ensureStream(config Config) error {
	streamConfig := &nats.StreamConfig{
		Name:      config.StreamName,
		Subjects:  config.StreamSubjects,
		Retention: nats.InterestPolicy,
		MaxAge:    config.MaxAge,
		MaxBytes:  config.MaxBytes,
		Storage:   nats.FileStorage,
		Replicas:  1,
	}

	if _, err := b.js.StreamInfo(config.StreamName); err != nil {
		if _, err := b.js.AddStream(streamConfig); err != nil {
			return fmt.Errorf("failed to create stream: %w", err)
		}
		return nil
	}

	if _, err := b.js.UpdateStream(streamConfig); err != nil {
		return fmt.Errorf("failed to update stream: %w", err)
	}
	return nil
}

// Publish publishes events to JetStream. The event ID doubles as the
// message ID, so JetStream deduplicates republishes within its window.
func (b *EventBus) Publish(events []*domain.Event) error {
	if len(events) == 0 {
		return nil
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, event := range events {
		data, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("failed to serialize event %s: %w", event.ID, err)
		}

		subject := fmt.Sprintf("events.%s.%s", event.AggregateType, event.EventType)
		if _, err := b.js.Publish(subject, data, nats.MsgId(event.ID)); err != nil {
			return fmt.Errorf("failed to publish event %s: %w", event.ID, err)
		}
	}

	return nil
}

// Subscribe subscribes to events matching the filter. A filter with a
// Durable name attaches to (or creates) a named server-side consumer, so the
// subscriber resumes at its first unacknowledged event after a detach or a
// process restart. Without one, each subscription gets a fresh consumer.
func (b *EventBus) Subscribe(filter messaging.EventFilter, handler messaging.EventHandler) (messaging.Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subject := buildSubject(filter)
	deliver := func(msg *nats.Msg) {
		var event domain.Event
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			msg.Nak()
			return
		}
		if err := handler(&event); err != nil {
			msg.Nak()
			return
		}
		msg.Ack()
	}

	var (
		sub          *nats.Subscription
		consumerName string
		err          error
	)
	if filter.Durable != "" {
		// The consumer is created with AddConsumer and attached with Bind.
		// Bound consumers are not owned by the subscription, so Unsubscribe
		// detaches without deleting the consumer or its delivery cursor.
		consumerName = filter.Durable
		if err := b.ensureConsumer(consumerName, subject); err != nil {
			return nil, err
		}
		sub, err = b.js.QueueSubscribe(
			subject,
			consumerName,
			deliver,
			nats.Bind(b.streamName, consumerName),
			nats.ManualAck(),
		)
	} else {
		consumerName = fmt.Sprintf("consumer_%s", domain.NewID())
		sub, err = b.js.QueueSubscribe(
			subject,
			consumerName,
			deliver,
			nats.Durable(consumerName),
			nats.ManualAck(),
			nats.AckExplicit(),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	b.subs[consumerName] = sub

	return &subscription{bus: b, sub: sub, consumerName: consumerName}, nil
}

// ensureConsumer creates the named durable consumer if it does not exist.
func (b *EventBus) ensureConsumer(name, subject string) error {
	if _, err := b.js.ConsumerInfo(b.streamName, name); err == nil {
		return nil
	}

	_, err := b.js.AddConsumer(b.streamName, &nats.ConsumerConfig{
		Durable:        name,
		DeliverSubject: nats.NewInbox(),
		DeliverGroup:   name,
		FilterSubject:  subject,
		AckPolicy:      nats.AckExplicitPolicy,
		DeliverPolicy:  nats.DeliverAllPolicy,
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer %s: %w", name, err)
	}
	return nil
}

func buildSubject(filter messaging.EventFilter) string {
	switch {
	case len(filter.AggregateTypes) == 1 && len(filter.EventTypes) == 1:
		return fmt.Sprintf("events.%s.%s", filter.AggregateTypes[0], filter.EventTypes[0])
	case len(filter.AggregateTypes) == 1:
		return fmt.Sprintf("events.%s.>", filter.AggregateTypes[0])
	default:
		// Complex filters subscribe to everything; handlers skip what they
		// don't care about.
		return "events.>"
	}
}

// Close closes all subscriptions and the NATS connection.
func (b *EventBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs {
		sub.Unsubscribe()
	}
	b.nc.Close()
	return nil
}

type subscription struct {
	bus          *EventBus
	sub          *nats.Subscription
	consumerName string
}

func (s *subscription) Unsubscribe() error {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()

	delete(s.bus.subs, s.consumerName)
	return s.sub.Unsubscribe()
}

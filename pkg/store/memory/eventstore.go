// Package memory provides an in-memory EventStore. It implements the same
// append/read contract as the durable stores and is intended for tests and
// for wiring the engine without external infrastructure.
package memory

import (
	"context"
	"sync"

	"github.com/coffers/coffers/pkg/domain"
	"github.com/coffers/coffers/pkg/store"
)

// EventStore is an in-memory implementation of store.EventStore.
// Safe for concurrent use; the mutex makes the expected-version check and
// the append atomic relative to other writers.
type EventStore struct {
	mu      sync.RWMutex
	streams map[string][]*domain.Event
	log     []*domain.Event // global append order, for projection rebuilds
	closed  bool
}

// NewEventStore creates an empty in-memory event store.
func NewEventStore() *EventStore {
	return &EventStore{
		streams: make(map[string][]*domain.Event),
	}
}

// AppendEvents appends events to an aggregate's stream atomically.
func (s *EventStore) AppendEvents(ctx context.Context, aggregateID string, expectedVersion int64, events []*domain.Event) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, store.ErrStoreUnavailable
	}

	stream := s.streams[aggregateID]
	currentVersion := int64(len(stream))
	if currentVersion != expectedVersion {
		return 0, store.ErrConcurrencyConflict
	}

	for i, evt := range events {
		stored := *evt
		// The store, not the caller, is authoritative for sequence numbers.
		stored.Version = currentVersion + int64(i) + 1
		s.streams[aggregateID] = append(s.streams[aggregateID], &stored)
		s.log = append(s.log, &stored)
	}

	return currentVersion + int64(len(events)), nil
}

// LoadEvents loads events for an aggregate after the given version.
func (s *EventStore) LoadEvents(ctx context.Context, aggregateID string, afterVersion int64) ([]*domain.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, store.ErrStoreUnavailable
	}

	stream, exists := s.streams[aggregateID]
	if !exists {
		if afterVersion == 0 {
			return nil, store.ErrStreamNotFound
		}
		return nil, nil
	}

	events := make([]*domain.Event, 0, len(stream))
	for _, evt := range stream {
		if evt.Version > afterVersion {
			copied := *evt
			events = append(events, &copied)
		}
	}

	return events, nil
}

// LoadAllEvents loads events across all aggregates in append order.
func (s *EventStore) LoadAllEvents(ctx context.Context, fromPosition int64, limit int) ([]*domain.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, store.ErrStoreUnavailable
	}

	if fromPosition >= int64(len(s.log)) {
		return nil, nil
	}

	end := int64(len(s.log))
	if limit > 0 && fromPosition+int64(limit) < end {
		end = fromPosition + int64(limit)
	}

	events := make([]*domain.Event, 0, end-fromPosition)
	for _, evt := range s.log[fromPosition:end] {
		copied := *evt
		events = append(events, &copied)
	}

	return events, nil
}

// StreamVersion returns the current last sequence number of a stream.
func (s *EventStore) StreamVersion(ctx context.Context, aggregateID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, store.ErrStoreUnavailable
	}

	return int64(len(s.streams[aggregateID])), nil
}

// Close marks the store unavailable. Subsequent calls fail with
// store.ErrStoreUnavailable, which makes this store useful for exercising
// transport-failure paths in tests.
func (s *EventStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

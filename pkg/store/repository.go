package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coffers/coffers/pkg/codec"
	"github.com/coffers/coffers/pkg/domain"
)

// BackoffPolicy returns how long to wait before retry attempt n (0-based).
type BackoffPolicy func(attempt int) time.Duration

// DefaultBackoff doubles a 10ms base per attempt: 10ms, 20ms, 40ms, ...
func DefaultBackoff(attempt int) time.Duration {
	return time.Duration(10*(1<<uint(attempt))) * time.Millisecond
}

// NoBackoff retries immediately. Useful in tests.
func NoBackoff(int) time.Duration { return 0 }

// DefaultMaxRetries bounds the optimistic-concurrency retry loop.
const DefaultMaxRetries = 3

// CommandHandler evaluates a command against a freshly replayed aggregate.
// It must be side-effect-free apart from recording events on the aggregate:
// a business-rule rejection is returned as a *domain.DomainError and records
// nothing.
type CommandHandler[T domain.Aggregate] func(ctx context.Context, aggregate T, cmd *domain.CommandEnvelope) error

// Repository orchestrates the read-modify-write cycle for one aggregate
// kind: replay history into current state, evaluate the command, append the
// produced events under optimistic concurrency, and retry the whole cycle on
// a conflict. This loop is the single place where the read-modify-write race
// is resolved, giving effectively serial semantics per aggregate ID without
// a global lock.
type Repository[T domain.Aggregate] struct {
	eventStore EventStore
	codec      codec.Codec
	factory    func(id string) T
	handler    CommandHandler[T]
	maxRetries int
	backoff    BackoffPolicy
}

// RepositoryOption configures a Repository.
type RepositoryOption func(*repositoryConfig)

type repositoryConfig struct {
	maxRetries int
	backoff    BackoffPolicy
}

// WithMaxRetries bounds the number of retries after an append conflict.
func WithMaxRetries(n int) RepositoryOption {
	return func(c *repositoryConfig) {
		c.maxRetries = n
	}
}

// WithBackoff sets the delay policy between conflict retries.
func WithBackoff(policy BackoffPolicy) RepositoryOption {
	return func(c *repositoryConfig) {
		c.backoff = policy
	}
}

// NewRepository creates a repository for one aggregate kind.
// factory creates a zero-state aggregate instance for an ID; handler
// evaluates commands against the replayed instance.
func NewRepository[T domain.Aggregate](
	eventStore EventStore,
	c codec.Codec,
	factory func(id string) T,
	handler CommandHandler[T],
	opts ...RepositoryOption,
) *Repository[T] {
	config := repositoryConfig{
		maxRetries: DefaultMaxRetries,
		backoff:    DefaultBackoff,
	}
	for _, opt := range opts {
		opt(&config)
	}

	return &Repository[T]{
		eventStore: eventStore,
		codec:      c,
		factory:    factory,
		handler:    handler,
		maxRetries: config.maxRetries,
		backoff:    config.backoff,
	}
}

// Load loads an aggregate by ID, replaying its full history from the default
// state. It fails with domain.ErrAggregateNotFound if the stream doesn't
// exist, and with a *codec.DecodeError if a historical event cannot be
// decoded (corrupt stream; never proceed with partial state).
func (r *Repository[T]) Load(ctx context.Context, id string) (T, error) {
	aggregate, _, err := r.replay(ctx, id)
	var zero T
	if err != nil {
		return zero, err
	}
	if aggregate.Version() == 0 {
		return zero, domain.ErrAggregateNotFound
	}
	return aggregate, nil
}

// Exists checks if an aggregate exists in the event store.
func (r *Repository[T]) Exists(ctx context.Context, id string) (bool, error) {
	version, err := r.eventStore.StreamVersion(ctx, id)
	if err != nil {
		return false, fmt.Errorf("failed to check aggregate existence: %w", err)
	}
	return version > 0, nil
}

// Execute runs one command against the aggregate: replay, handle, append.
// On success it returns the newly appended events as envelopes carrying
// their store-assigned sequence numbers, ready for projection dispatch.
//
// Errors are exactly one of:
//   - *domain.DomainError: business rejection, nothing appended, not retried
//   - ErrConcurrencyConflict: retried up to the configured bound, then surfaced
//   - ErrStoreUnavailable: transport failure, left to the caller's policy
//   - *codec.DecodeError: corrupt history, fatal for this aggregate
func (r *Repository[T]) Execute(ctx context.Context, id string, cmd *domain.CommandEnvelope) ([]*domain.EventEnvelope, error) {
	for attempt := 0; ; attempt++ {
		envelopes, err := r.executeOnce(ctx, id, cmd)
		if err == nil {
			return envelopes, nil
		}

		if !errors.Is(err, ErrConcurrencyConflict) || attempt == r.maxRetries {
			return nil, err
		}

		if err := sleep(ctx, r.backoff(attempt)); err != nil {
			return nil, err
		}
	}
}

func (r *Repository[T]) executeOnce(ctx context.Context, id string, cmd *domain.CommandEnvelope) ([]*domain.EventEnvelope, error) {
	aggregate, currentVersion, err := r.replay(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := r.handler(ctx, aggregate, cmd); err != nil {
		return nil, err
	}

	uncommitted := aggregate.UncommittedEvents()
	if len(uncommitted) == 0 {
		// Deliberate no-op command.
		return nil, nil
	}

	if _, err := r.eventStore.AppendEvents(ctx, id, currentVersion, uncommitted); err != nil {
		return nil, err
	}

	envelopes := make([]*domain.EventEnvelope, 0, len(uncommitted))
	for _, evt := range uncommitted {
		payload, err := r.codec.Decode(evt.EventType, evt.Data)
		if err != nil {
			return nil, err
		}
		envelopes = append(envelopes, &domain.EventEnvelope{Event: *evt, Payload: payload})
	}

	aggregate.ClearUncommittedEvents()

	return envelopes, nil
}

// replay folds the aggregate's full history from the default state, tracking
// the last sequence number seen. A missing stream is not an error here: it
// yields the zero-state aggregate at version 0, which lets commands that
// open the aggregate proceed with expected version 0.
func (r *Repository[T]) replay(ctx context.Context, id string) (T, int64, error) {
	var zero T

	aggregate := r.factory(id)

	events, err := r.eventStore.LoadEvents(ctx, id, 0)
	if err != nil {
		if errors.Is(err, ErrStreamNotFound) {
			return aggregate, 0, nil
		}
		return zero, 0, fmt.Errorf("failed to load events: %w", err)
	}

	for _, evt := range events {
		payload, err := r.codec.Decode(evt.EventType, evt.Data)
		if err != nil {
			return zero, 0, fmt.Errorf("replaying %s at version %d: %w", id, evt.Version, err)
		}
		if err := aggregate.ApplyEvent(payload); err != nil {
			return zero, 0, fmt.Errorf("failed to apply event at version %d: %w", evt.Version, err)
		}
	}

	if agg, ok := any(aggregate).(interface{ LoadFromHistory([]*domain.Event) error }); ok {
		if err := agg.LoadFromHistory(events); err != nil {
			return zero, 0, fmt.Errorf("failed to load history: %w", err)
		}
	}

	return aggregate, aggregate.Version(), nil
}

// sleep waits for the backoff duration, honoring cancellation.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

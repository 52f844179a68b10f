package sqlite_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coffers/coffers/pkg/domain"
	"github.com/coffers/coffers/pkg/store"
	"github.com/coffers/coffers/pkg/store/sqlite"
)

func newTestStore(t *testing.T) *sqlite.EventStore {
	t.Helper()

	s, err := sqlite.NewEventStore(sqlite.WithMemoryDatabase())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newEvent(aggregateID, eventType string) *domain.Event {
	return &domain.Event{
		ID:            domain.NewID(),
		AggregateID:   aggregateID,
		AggregateType: "account",
		EventType:     eventType,
		Timestamp:     domain.Now(),
		Data:          []byte(`{"amount":"200"}`),
		Metadata: domain.EventMetadata{
			CausationID:   "cmd-1",
			CorrelationID: "corr-1",
			PrincipalID:   "tester",
		},
	}
}

func TestEventStore_AppendAndLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	evt := newEvent("acc-1", "account.CustomerDepositedMoney")
	version, err := s.AppendEvents(ctx, "acc-1", 0, []*domain.Event{evt})
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	events, err := s.LoadEvents(ctx, "acc-1", 0)
	require.NoError(t, err)
	require.Len(t, events, 1)

	loaded := events[0]
	assert.Equal(t, evt.ID, loaded.ID)
	assert.Equal(t, "account", loaded.AggregateType)
	assert.Equal(t, "account.CustomerDepositedMoney", loaded.EventType)
	assert.Equal(t, int64(1), loaded.Version)
	assert.Equal(t, evt.Data, loaded.Data)
	assert.Equal(t, "cmd-1", loaded.Metadata.CausationID)
	assert.Equal(t, "corr-1", loaded.Metadata.CorrelationID)
	assert.Equal(t, "tester", loaded.Metadata.PrincipalID)
}

func TestEventStore_ExpectedVersionConflict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.AppendEvents(ctx, "acc-1", 0, []*domain.Event{newEvent("acc-1", "a")})
	require.NoError(t, err)

	_, err = s.AppendEvents(ctx, "acc-1", 0, []*domain.Event{
		newEvent("acc-1", "b"),
		newEvent("acc-1", "c"),
	})
	assert.ErrorIs(t, err, store.ErrConcurrencyConflict)

	// All-or-nothing: the conflicting batch left no trace.
	version, err := s.StreamVersion(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)
}

func TestEventStore_MissingStream(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.LoadEvents(ctx, "nope", 0)
	assert.ErrorIs(t, err, store.ErrStreamNotFound)

	version, err := s.StreamVersion(ctx, "nope")
	require.NoError(t, err)
	assert.Equal(t, int64(0), version)
}

func TestEventStore_StreamsAreIsolated(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.AppendEvents(ctx, "acc-1", 0, []*domain.Event{newEvent("acc-1", "a"), newEvent("acc-1", "b")})
	require.NoError(t, err)
	_, err = s.AppendEvents(ctx, "acc-2", 0, []*domain.Event{newEvent("acc-2", "c")})
	require.NoError(t, err)

	events, err := s.LoadEvents(ctx, "acc-2", 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, int64(1), events[0].Version)
}

func TestEventStore_LoadAllEventsByGlobalPosition(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.AppendEvents(ctx, "acc-1", 0, []*domain.Event{newEvent("acc-1", "a")})
	require.NoError(t, err)
	_, err = s.AppendEvents(ctx, "acc-2", 0, []*domain.Event{newEvent("acc-2", "b")})
	require.NoError(t, err)
	_, err = s.AppendEvents(ctx, "acc-1", 1, []*domain.Event{newEvent("acc-1", "c")})
	require.NoError(t, err)

	all, err := s.LoadAllEvents(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "acc-1", all[0].AggregateID)
	assert.Equal(t, "acc-2", all[1].AggregateID)
	assert.Equal(t, "acc-1", all[2].AggregateID)

	rest, err := s.LoadAllEvents(ctx, 2, 10)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "c", rest[0].EventType)
}

func TestEventStore_DuplicateEventIDRefused(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	evt := newEvent("acc-1", "a")
	_, err := s.AppendEvents(ctx, "acc-1", 0, []*domain.Event{evt})
	require.NoError(t, err)

	dup := newEvent("acc-1", "b")
	dup.ID = evt.ID
	_, err = s.AppendEvents(ctx, "acc-1", 1, []*domain.Event{dup})
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrStoreUnavailable)
}

package projection_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coffers/coffers/pkg/domain"
	"github.com/coffers/coffers/pkg/projection"
)

// recordingProjection captures every envelope it folds and can be told to
// fail from a given version on.
type recordingProjection struct {
	name     string
	folded   []int64
	failFrom int64
}

func (p *recordingProjection) Name() string { return p.name }

func (p *recordingProjection) Handle(ctx context.Context, envelope *domain.EventEnvelope) error {
	if p.failFrom > 0 && envelope.Version >= p.failFrom {
		return errors.New("sink unavailable")
	}
	p.folded = append(p.folded, envelope.Version)
	return nil
}

func (p *recordingProjection) Reset(ctx context.Context) error {
	p.folded = nil
	return nil
}

func envelopes(aggregateID string, versions ...int64) []*domain.EventEnvelope {
	out := make([]*domain.EventEnvelope, 0, len(versions))
	for _, v := range versions {
		out = append(out, &domain.EventEnvelope{
			Event: domain.Event{
				ID:          domain.NewID(),
				AggregateID: aggregateID,
				Version:     v,
			},
		})
	}
	return out
}

func TestDispatcher_DeliversInOrder(t *testing.T) {
	p := &recordingProjection{name: "p1"}
	d := projection.NewDispatcher()
	d.Register(p)

	d.Dispatch(context.Background(), "acc-1", envelopes("acc-1", 1, 2, 3))

	assert.Equal(t, []int64{1, 2, 3}, p.folded)
	assert.Equal(t, int64(3), d.LastFolded("p1", "acc-1"))
}

func TestDispatcher_RedeliverySkipsFoldedEnvelopes(t *testing.T) {
	p := &recordingProjection{name: "p1"}
	d := projection.NewDispatcher()
	d.Register(p)

	batch := envelopes("acc-1", 1, 2)
	d.Dispatch(context.Background(), "acc-1", batch)
	d.Dispatch(context.Background(), "acc-1", batch) // full redelivery

	assert.Equal(t, []int64{1, 2}, p.folded)
}

// A failing projection must stop advancing for the aggregate so the failed
// envelope is retried on redelivery, without affecting other projections.
func TestDispatcher_FailureHaltsOneProjectionOnly(t *testing.T) {
	failing := &recordingProjection{name: "failing", failFrom: 2}
	healthy := &recordingProjection{name: "healthy"}
	d := projection.NewDispatcher()
	d.Register(failing)
	d.Register(healthy)

	batch := envelopes("acc-1", 1, 2, 3)
	d.Dispatch(context.Background(), "acc-1", batch)

	assert.Equal(t, []int64{1}, failing.folded)
	assert.Equal(t, []int64{1, 2, 3}, healthy.folded)
	assert.Equal(t, int64(1), d.LastFolded("failing", "acc-1"))

	// The sink recovers; redelivery resumes exactly where folding stopped.
	failing.failFrom = 0
	d.Dispatch(context.Background(), "acc-1", batch)

	assert.Equal(t, []int64{1, 2, 3}, failing.folded)
	assert.Equal(t, []int64{1, 2, 3}, healthy.folded)
}

func TestDispatcher_AggregatesTrackedIndependently(t *testing.T) {
	p := &recordingProjection{name: "p1"}
	d := projection.NewDispatcher()
	d.Register(p)

	d.Dispatch(context.Background(), "acc-1", envelopes("acc-1", 1, 2))
	d.Dispatch(context.Background(), "acc-2", envelopes("acc-2", 1))

	assert.Equal(t, int64(2), d.LastFolded("p1", "acc-1"))
	assert.Equal(t, int64(1), d.LastFolded("p1", "acc-2"))
}

func TestDispatcher_ResetClearsFoldTracking(t *testing.T) {
	p := &recordingProjection{name: "p1"}
	d := projection.NewDispatcher()
	d.Register(p)

	batch := envelopes("acc-1", 1, 2)
	d.Dispatch(context.Background(), "acc-1", batch)
	require.NoError(t, d.Reset(context.Background()))

	assert.Empty(t, p.folded)
	assert.Equal(t, int64(0), d.LastFolded("p1", "acc-1"))

	d.Dispatch(context.Background(), "acc-1", batch)
	assert.Equal(t, []int64{1, 2}, p.folded)
}

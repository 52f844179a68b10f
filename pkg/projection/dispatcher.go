package projection

import (
	"context"
	"log/slog"
	"sync"

	"github.com/coffers/coffers/pkg/domain"
)

// Dispatcher fans freshly appended envelopes out to registered projections.
// It is invoked after a successful append; a projection failure is reported
// through the logger but never blocks or rolls back the committed write.
//
// Redelivery is made idempotent here: the dispatcher tracks the highest
// folded sequence number per (projection, aggregate) and skips envelopes at
// or below it.
type Dispatcher struct {
	logger *slog.Logger

	mu          sync.Mutex
	projections []Projection
	folded      map[string]map[string]int64 // projection name -> aggregate ID -> last folded sequence
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithLogger sets the logger used to report projection failures.
func WithLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// NewDispatcher creates a dispatcher with no registered projections.
func NewDispatcher(opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		logger: slog.Default(),
		folded: make(map[string]map[string]int64),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Register registers a projection.
func (d *Dispatcher) Register(p Projection) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.projections = append(d.projections, p)
	d.folded[p.Name()] = make(map[string]int64)
}

// Dispatch folds the envelopes into every registered projection, in order.
// Envelopes a projection has already folded are skipped. A failing
// projection stops advancing for this aggregate (so a later redelivery
// retries from the failed envelope) but other projections continue.
func (d *Dispatcher) Dispatch(ctx context.Context, aggregateID string, envelopes []*domain.EventEnvelope) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, p := range d.projections {
		last := d.folded[p.Name()][aggregateID]

		for _, envelope := range envelopes {
			if envelope.Version <= last {
				continue
			}

			if err := p.Handle(ctx, envelope); err != nil {
				d.logger.ErrorContext(ctx, "projection failed to fold event",
					slog.String("projection", p.Name()),
					slog.String("aggregate_id", aggregateID),
					slog.Int64("version", envelope.Version),
					slog.String("error", err.Error()),
				)
				break
			}
			last = envelope.Version
		}

		d.folded[p.Name()][aggregateID] = last
	}
}

// LastFolded returns the highest sequence number a projection has folded
// for an aggregate.
func (d *Dispatcher) LastFolded(projectionName, aggregateID string) int64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.folded[projectionName][aggregateID]
}

// Reset clears every projection and the fold-tracking state, so the read
// models can be re-derived by replaying the full history through Dispatch.
func (d *Dispatcher) Reset(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, p := range d.projections {
		if err := p.Reset(ctx); err != nil {
			return err
		}
		d.folded[p.Name()] = make(map[string]int64)
	}
	return nil
}

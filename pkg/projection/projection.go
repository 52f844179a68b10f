// Package projection folds committed events into read models. Read models
// are derived, independently owned, and eventually consistent: they may lag
// the write side and must be re-derivable from the full event history.
package projection

import (
	"context"

	"github.com/coffers/coffers/pkg/domain"
)

// Projection builds one read model from the event stream.
type Projection interface {
	// Name returns the unique name of this projection.
	Name() string

	// Handle folds one event into the read model. Handlers receive events
	// for a single aggregate in ascending sequence order but must tolerate
	// redelivery of envelopes they have already folded.
	Handle(ctx context.Context, envelope *domain.EventEnvelope) error

	// Reset clears the read model so it can be rebuilt from scratch.
	Reset(ctx context.Context) error
}

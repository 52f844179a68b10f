package account

import (
	"context"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/coffers/coffers/pkg/domain"
)

// View is the read model one account folds into: the current balance and
// the running list of written check numbers.
type View struct {
	AccountID     string
	OwnerName     string
	Balance       decimal.Decimal
	WrittenChecks []string
}

// Query is an in-memory projection of account views. It is idempotent with
// respect to redelivery: each account tracks the last folded sequence
// number and envelopes at or below it are skipped.
type Query struct {
	mu         sync.RWMutex
	views      map[string]*View
	lastFolded map[string]int64
}

// NewQuery creates an empty account query projection.
func NewQuery() *Query {
	return &Query{
		views:      make(map[string]*View),
		lastFolded: make(map[string]int64),
	}
}

// Name implements projection.Projection.
func (q *Query) Name() string { return "account_query" }

// Handle folds one envelope into the account's view.
func (q *Query) Handle(ctx context.Context, envelope *domain.EventEnvelope) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	id := envelope.AggregateID
	if envelope.Version <= q.lastFolded[id] {
		return nil
	}

	view, ok := q.views[id]
	if !ok {
		view = &View{AccountID: id}
		q.views[id] = view
	}

	switch evt := envelope.Payload.(type) {
	case *AccountOpened:
		view.OwnerName = evt.OwnerName
	case *CustomerDepositedMoney:
		view.Balance = evt.Balance
	case *CustomerWithdrewCash:
		view.Balance = evt.Balance
	case *CustomerWroteCheck:
		view.Balance = evt.Balance
		view.WrittenChecks = append(view.WrittenChecks, evt.CheckNumber)
	}

	q.lastFolded[id] = envelope.Version
	return nil
}

// Reset clears all folded views.
func (q *Query) Reset(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.views = make(map[string]*View)
	q.lastFolded = make(map[string]int64)
	return nil
}

// View returns a copy of the folded view for an account.
func (q *Query) View(accountID string) (*View, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	view, ok := q.views[accountID]
	if !ok {
		return nil, false
	}

	out := *view
	out.WrittenChecks = append([]string(nil), view.WrittenChecks...)
	return &out, true
}

// LastFolded returns the last folded sequence number for an account.
func (q *Query) LastFolded(accountID string) int64 {
	q.mu.RLock()
	defer q.mu.RUnlock()

	return q.lastFolded[accountID]
}

// LoggingQuery is a projection sink that writes each account event to the
// log. Useful as a live audit trail and in demos.
type LoggingQuery struct {
	logger *slog.Logger
}

// NewLoggingQuery creates a logging projection on the given logger.
func NewLoggingQuery(logger *slog.Logger) *LoggingQuery {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingQuery{logger: logger}
}

// Name implements projection.Projection.
func (q *LoggingQuery) Name() string { return "account_logger" }

// Handle logs the event. Logging is naturally idempotent: a redelivered
// envelope produces a duplicate line, nothing more.
func (q *LoggingQuery) Handle(ctx context.Context, envelope *domain.EventEnvelope) error {
	q.logger.InfoContext(ctx, "account event",
		slog.String("aggregate_id", envelope.AggregateID),
		slog.Int64("version", envelope.Version),
		slog.String("event_type", envelope.EventType),
	)
	return nil
}

// Reset is a no-op; there is no state to clear.
func (q *LoggingQuery) Reset(ctx context.Context) error { return nil }

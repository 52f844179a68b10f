package account_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coffers/coffers/account"
	"github.com/coffers/coffers/pkg/domain"
)

func depositEnvelope(id string, version int64, amount, balance float64) *domain.EventEnvelope {
	return &domain.EventEnvelope{
		Event: domain.Event{
			ID:            domain.NewID(),
			AggregateID:   id,
			AggregateType: account.AggregateType,
			EventType:     account.EventCustomerDepositedMoney,
			Version:       version,
		},
		Payload: &account.CustomerDepositedMoney{
			Amount:  decimal.NewFromFloat(amount),
			Balance: decimal.NewFromFloat(balance),
		},
	}
}

func TestQuery_FoldsEventsInOrder(t *testing.T) {
	query := account.NewQuery()
	ctx := context.Background()

	require.NoError(t, query.Handle(ctx, &domain.EventEnvelope{
		Event: domain.Event{
			AggregateID:   "acc-1",
			AggregateType: account.AggregateType,
			EventType:     account.EventAccountOpened,
			Version:       1,
		},
		Payload: &account.AccountOpened{AccountID: "acc-1", OwnerName: "Ada"},
	}))
	require.NoError(t, query.Handle(ctx, depositEnvelope("acc-1", 2, 200.0, 200.0)))

	view, ok := query.View("acc-1")
	require.True(t, ok)
	assert.Equal(t, "Ada", view.OwnerName)
	assert.True(t, view.Balance.Equal(decimal.NewFromFloat(200.0)))
	assert.Equal(t, int64(2), query.LastFolded("acc-1"))
}

// Redelivering the same envelope must leave the folded state unchanged.
func TestQuery_RedeliveryIsIdempotent(t *testing.T) {
	query := account.NewQuery()
	ctx := context.Background()

	envelope := depositEnvelope("acc-1", 1, 200.0, 200.0)
	require.NoError(t, query.Handle(ctx, envelope))
	require.NoError(t, query.Handle(ctx, envelope))
	require.NoError(t, query.Handle(ctx, envelope))

	view, ok := query.View("acc-1")
	require.True(t, ok)
	assert.True(t, view.Balance.Equal(decimal.NewFromFloat(200.0)))
	assert.Equal(t, int64(1), query.LastFolded("acc-1"))
}

// Check numbers must not duplicate on redelivery either; the list is the
// part of the view where a double fold would be visible.
func TestQuery_CheckListSurvivesRedelivery(t *testing.T) {
	query := account.NewQuery()
	ctx := context.Background()

	envelope := &domain.EventEnvelope{
		Event: domain.Event{
			AggregateID:   "acc-1",
			AggregateType: account.AggregateType,
			EventType:     account.EventCustomerWroteCheck,
			Version:       1,
		},
		Payload: &account.CustomerWroteCheck{
			CheckNumber: "1170",
			Amount:      decimal.NewFromFloat(100.0),
			Balance:     decimal.NewFromFloat(100.0),
		},
	}

	require.NoError(t, query.Handle(ctx, envelope))
	require.NoError(t, query.Handle(ctx, envelope))

	view, ok := query.View("acc-1")
	require.True(t, ok)
	assert.Equal(t, []string{"1170"}, view.WrittenChecks)
}

func TestQuery_Reset(t *testing.T) {
	query := account.NewQuery()
	ctx := context.Background()

	require.NoError(t, query.Handle(ctx, depositEnvelope("acc-1", 1, 50.0, 50.0)))
	require.NoError(t, query.Reset(ctx))

	_, ok := query.View("acc-1")
	assert.False(t, ok)
	assert.Equal(t, int64(0), query.LastFolded("acc-1"))
}

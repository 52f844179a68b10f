package account_test

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coffers/coffers/account"
	"github.com/coffers/coffers/pkg/codec"
	"github.com/coffers/coffers/pkg/cqrs"
	"github.com/coffers/coffers/pkg/domain"
	"github.com/coffers/coffers/pkg/projection"
	"github.com/coffers/coffers/pkg/store"
	"github.com/coffers/coffers/pkg/store/memory"
)

func newTestService(opts ...account.ServiceOption) (*account.Service, *memory.EventStore) {
	eventStore := memory.NewEventStore()
	service := account.NewService(eventStore, codec.NewDefaultJSON(), opts...)
	return service, eventStore
}

func send(t *testing.T, service *account.Service, cmd domain.Command) []*domain.EventEnvelope {
	t.Helper()

	envelopes, err := service.Execute(context.Background(), cqrs.NewEnvelope(cmd))
	require.NoError(t, err)
	return envelopes
}

func TestService_DepositAndWithdraw(t *testing.T) {
	service, _ := newTestService()
	ctx := context.Background()

	send(t, service, &account.OpenAccount{AccountID: "acc-1", OwnerName: "Ada"})
	send(t, service, &account.DepositMoney{AccountID: "acc-1", Amount: decimal.NewFromFloat(200.0)})
	send(t, service, &account.DepositMoney{AccountID: "acc-1", Amount: decimal.NewFromFloat(200.0)})
	envelopes := send(t, service, &account.WithdrawMoney{AccountID: "acc-1", Amount: decimal.NewFromFloat(100.0)})

	require.Len(t, envelopes, 1)
	evt := envelopes[0].Payload.(*account.CustomerWithdrewCash)
	assert.True(t, evt.Balance.Equal(decimal.NewFromFloat(300.0)))
	assert.Equal(t, int64(4), envelopes[0].Version)

	a, err := service.Load(ctx, "acc-1")
	require.NoError(t, err)
	assert.True(t, a.Balance.Equal(decimal.NewFromFloat(300.0)))
	assert.Equal(t, int64(4), a.Version())
}

func TestService_RejectionAppendsNothing(t *testing.T) {
	service, eventStore := newTestService()
	ctx := context.Background()

	send(t, service, &account.DepositMoney{AccountID: "acc-1", Amount: decimal.NewFromFloat(100.0)})

	_, err := service.Execute(ctx, cqrs.NewEnvelope(&account.WithdrawMoney{
		AccountID: "acc-1",
		Amount:    decimal.NewFromFloat(500.0),
	}))

	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err))
	assert.EqualError(t, err, "funds not available")

	version, err := eventStore.StreamVersion(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)
}

func TestService_LoadMissingAccount(t *testing.T) {
	service, _ := newTestService()

	_, err := service.Load(context.Background(), "no-such-account")

	assert.ErrorIs(t, err, domain.ErrAggregateNotFound)
}

func TestService_StoreUnavailableSurfaces(t *testing.T) {
	service, eventStore := newTestService()
	require.NoError(t, eventStore.Close())

	_, err := service.Execute(context.Background(), cqrs.NewEnvelope(&account.DepositMoney{
		AccountID: "acc-1",
		Amount:    decimal.NewFromFloat(10.0),
	}))

	assert.ErrorIs(t, err, store.ErrStoreUnavailable)
}

// Two writers race on the same stream: both replay the same version, the
// store accepts exactly one append per expected version, and the loser
// retries from a fresh replay. Both commands must land, sequentially.
func TestService_ConcurrentDeposits(t *testing.T) {
	service, eventStore := newTestService(
		account.WithRepositoryOptions(store.WithBackoff(store.NoBackoff), store.WithMaxRetries(10)),
	)
	ctx := context.Background()

	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := service.Execute(ctx, cqrs.NewEnvelope(&account.DepositMoney{
				AccountID: "acc-1",
				Amount:    decimal.NewFromFloat(10.0),
			}))
			errs <- err
		}()
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	version, err := eventStore.StreamVersion(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, int64(writers), version)

	a, err := service.Load(ctx, "acc-1")
	require.NoError(t, err)
	assert.True(t, a.Balance.Equal(decimal.NewFromFloat(10.0*writers)),
		"final balance must reflect every deposit exactly once, got %s", a.Balance)
}

func TestService_DispatchesToProjections(t *testing.T) {
	query := account.NewQuery()
	dispatcher := projection.NewDispatcher()
	dispatcher.Register(query)

	service, _ := newTestService(account.WithDispatcher(dispatcher))

	send(t, service, &account.OpenAccount{AccountID: "acc-1", OwnerName: "Ada"})
	send(t, service, &account.DepositMoney{AccountID: "acc-1", Amount: decimal.NewFromFloat(200.0)})
	send(t, service, &account.WriteCheck{AccountID: "acc-1", CheckNumber: "1170", Amount: decimal.NewFromFloat(100.0)})

	view, ok := query.View("acc-1")
	require.True(t, ok)
	assert.Equal(t, "Ada", view.OwnerName)
	assert.True(t, view.Balance.Equal(decimal.NewFromFloat(100.0)))
	assert.Equal(t, []string{"1170"}, view.WrittenChecks)
}

// A projection failure is reported, never propagated: the write has already
// committed and Execute must still succeed.
func TestService_ProjectionFailureDoesNotBlockWrites(t *testing.T) {
	dispatcher := projection.NewDispatcher()
	dispatcher.Register(&failingProjection{})

	service, eventStore := newTestService(account.WithDispatcher(dispatcher))
	ctx := context.Background()

	envelopes := send(t, service, &account.DepositMoney{
		AccountID: "acc-1",
		Amount:    decimal.NewFromFloat(50.0),
	})
	require.Len(t, envelopes, 1)

	version, err := eventStore.StreamVersion(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)
}

type failingProjection struct{}

func (p *failingProjection) Name() string { return "failing" }

func (p *failingProjection) Handle(ctx context.Context, envelope *domain.EventEnvelope) error {
	return assert.AnError
}

func (p *failingProjection) Reset(ctx context.Context) error { return nil }

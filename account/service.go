package account

import (
	"context"
	"fmt"

	"github.com/coffers/coffers/pkg/codec"
	"github.com/coffers/coffers/pkg/cqrs"
	"github.com/coffers/coffers/pkg/domain"
	"github.com/coffers/coffers/pkg/projection"
	"github.com/coffers/coffers/pkg/store"
)

// Service is the write-side entry point for accounts. It owns the
// repository's replay-handle-append cycle and, after a successful append,
// hands the new envelopes to the projection dispatcher. Dispatch happens
// after commit: a projection failure never rolls back the write.
type Service struct {
	repository *store.Repository[*Account]
	dispatcher *projection.Dispatcher
}

// ServiceOption configures a Service.
type ServiceOption func(*serviceConfig)

type serviceConfig struct {
	dispatcher *projection.Dispatcher
	repoOpts   []store.RepositoryOption
}

// WithDispatcher attaches a projection dispatcher that receives the
// envelopes of every successful execution.
func WithDispatcher(d *projection.Dispatcher) ServiceOption {
	return func(c *serviceConfig) {
		c.dispatcher = d
	}
}

// WithRepositoryOptions forwards options to the underlying repository,
// such as the conflict retry bound and backoff policy.
func WithRepositoryOptions(opts ...store.RepositoryOption) ServiceOption {
	return func(c *serviceConfig) {
		c.repoOpts = append(c.repoOpts, opts...)
	}
}

// NewService creates the account service on an event store and codec.
func NewService(eventStore store.EventStore, c codec.Codec, opts ...ServiceOption) *Service {
	config := serviceConfig{}
	for _, opt := range opts {
		opt(&config)
	}

	repository := store.NewRepository(
		eventStore,
		c,
		func(id string) *Account { return New(id, c) },
		handleCommand,
		config.repoOpts...,
	)

	return &Service{
		repository: repository,
		dispatcher: config.dispatcher,
	}
}

// handleCommand routes a command envelope to the aggregate method that
// evaluates it. The account's variants are closed: an unknown command type
// here is a wiring bug, not a business rejection.
func handleCommand(ctx context.Context, a *Account, cmd *domain.CommandEnvelope) error {
	metadata := cmd.EventMetadata()

	switch c := cmd.Command.(type) {
	case *OpenAccount:
		return a.Open(c, metadata)
	case *DepositMoney:
		return a.Deposit(c, metadata)
	case *WithdrawMoney:
		return a.Withdraw(c, metadata)
	case *WriteCheck:
		return a.WriteCheck(c, metadata)
	default:
		return fmt.Errorf("%w: %T", domain.ErrInvalidCommand, cmd.Command)
	}
}

// Execute runs one command through replay, handling, and version-checked
// append, then dispatches the committed envelopes to projections.
func (s *Service) Execute(ctx context.Context, cmd *domain.CommandEnvelope) ([]*domain.EventEnvelope, error) {
	envelopes, err := s.repository.Execute(ctx, cmd.Command.AggregateID(), cmd)
	if err != nil {
		return nil, err
	}

	if s.dispatcher != nil && len(envelopes) > 0 {
		s.dispatcher.Dispatch(ctx, cmd.Command.AggregateID(), envelopes)
	}

	return envelopes, nil
}

// Load replays an account's full history into its current state.
func (s *Service) Load(ctx context.Context, accountID string) (*Account, error) {
	return s.repository.Load(ctx, accountID)
}

// Exists reports whether an account stream exists.
func (s *Service) Exists(ctx context.Context, accountID string) (bool, error) {
	return s.repository.Exists(ctx, accountID)
}

// RegisterHandlers registers the account's command types on a command bus,
// each routed through Execute.
func (s *Service) RegisterHandlers(bus cqrs.CommandBus) {
	handler := cqrs.CommandHandlerFunc(func(ctx context.Context, cmd *domain.CommandEnvelope) ([]*domain.Event, error) {
		envelopes, err := s.Execute(ctx, cmd)
		if err != nil {
			return nil, err
		}

		events := make([]*domain.Event, 0, len(envelopes))
		for _, envelope := range envelopes {
			evt := envelope.Event
			events = append(events, &evt)
		}
		return events, nil
	})

	bus.Register(CommandOpenAccount, handler)
	bus.Register(CommandDepositMoney, handler)
	bus.Register(CommandWithdrawMoney, handler)
	bus.Register(CommandWriteCheck, handler)
}

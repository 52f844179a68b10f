// Command coffers-demo wires the full engine together: a SQLite event
// store, a JetStream event bus on an embedded NATS server, the account
// aggregate behind a middleware-wrapped command bus, and both in-memory and
// SQLite projections. It then runs a short scripted session against one
// account.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/shopspring/decimal"

	"github.com/coffers/coffers/account"
	"github.com/coffers/coffers/account/projections"
	"github.com/coffers/coffers/pkg/codec"
	"github.com/coffers/coffers/pkg/cqrs"
	"github.com/coffers/coffers/pkg/domain"
	natsbus "github.com/coffers/coffers/pkg/messaging/nats"
	"github.com/coffers/coffers/pkg/middleware"
	"github.com/coffers/coffers/pkg/projection"
	"github.com/coffers/coffers/pkg/runner"
	"github.com/coffers/coffers/pkg/store/sqlite"
)

type config struct {
	DSN             string        `env:"COFFERS_DSN" envDefault:"coffers.db"`
	LogLevel        slog.Level    `env:"COFFERS_LOG_LEVEL" envDefault:"INFO"`
	EmbeddedNATS    bool          `env:"COFFERS_EMBEDDED_NATS" envDefault:"true"`
	NATSURL         string        `env:"COFFERS_NATS_URL" envDefault:"nats://127.0.0.1:4222"`
	ShutdownTimeout time.Duration `env:"COFFERS_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

func main() {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to parse configuration: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("demo failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg config, logger *slog.Logger) error {
	eventStore, err := sqlite.NewEventStore(sqlite.WithDSN(cfg.DSN))
	if err != nil {
		return fmt.Errorf("open event store: %w", err)
	}
	defer eventStore.Close()

	checkpointStore, err := sqlite.NewCheckpointStore(eventStore.DB())
	if err != nil {
		return fmt.Errorf("open checkpoint store: %w", err)
	}

	natsURL := cfg.NATSURL
	if cfg.EmbeddedNATS {
		embedded, err := natsbus.StartEmbeddedServer()
		if err != nil {
			return fmt.Errorf("start embedded NATS: %w", err)
		}
		defer embedded.Shutdown()
		natsURL = embedded.URL()
	}

	busConfig := natsbus.DefaultConfig()
	busConfig.URL = natsURL
	eventBus, err := natsbus.NewEventBus(busConfig)
	if err != nil {
		return fmt.Errorf("connect event bus: %w", err)
	}
	defer eventBus.Close()

	c := codec.NewDefaultJSON()

	// Write-path projections: dispatched synchronously after each append.
	query := account.NewQuery()
	dispatcher := projection.NewDispatcher(projection.WithLogger(logger))
	dispatcher.Register(query)
	dispatcher.Register(account.NewLoggingQuery(logger))

	service := account.NewService(eventStore, c, account.WithDispatcher(dispatcher))

	commandBus := cqrs.NewCommandBusWithEventBus(eventBus)
	commandBus.Use(middleware.Recovery(logger))
	commandBus.Use(middleware.Logging(logger))
	commandBus.Use(middleware.Tracing(""))
	commandBus.Use(middleware.MetadataValidation())
	commandBus.Use(middleware.Validation())
	service.RegisterHandlers(commandBus)

	// Bus-fed projection: the durable account view, resumed from its
	// checkpoint and folded as events arrive over JetStream.
	accountView, err := projections.NewAccountView(eventStore.DB())
	if err != nil {
		return fmt.Errorf("create account view: %w", err)
	}
	manager := projection.NewManager(checkpointStore, eventStore, eventBus, c,
		projection.WithManagerLogger(logger))
	manager.Register(accountView)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	services := []runner.Service{
		runner.ServiceFunc{
			ServiceName: "projections",
			OnStart: func(ctx context.Context) error {
				return manager.Start(ctx, accountView.Name())
			},
			OnStop: func(ctx context.Context) error {
				manager.StopAll()
				return nil
			},
		},
		runner.ServiceFunc{
			ServiceName: "demo-script",
			OnStart: func(startCtx context.Context) error {
				go func() {
					defer cancel()
					if err := script(ctx, commandBus, query, accountView, logger); err != nil {
						logger.Error("script failed", slog.String("error", err.Error()))
					}
				}()
				return nil
			},
		},
	}

	r := runner.New(services,
		runner.WithLogger(logger),
		runner.WithShutdownTimeout(cfg.ShutdownTimeout),
	)
	return r.Run(ctx)
}

// script drives one account through a deposit, a withdrawal, a written
// check, and a rejected overdraft, then reads both projections back.
func script(ctx context.Context, bus cqrs.CommandBus, query *account.Query, view *projections.AccountView, logger *slog.Logger) error {
	accountID := domain.NewID()

	commands := []domain.Command{
		&account.OpenAccount{AccountID: accountID, OwnerName: "Ada Lovelace"},
		&account.DepositMoney{AccountID: accountID, Amount: decimal.NewFromInt(200)},
		&account.DepositMoney{AccountID: accountID, Amount: decimal.NewFromInt(200)},
		&account.WithdrawMoney{AccountID: accountID, Amount: decimal.NewFromInt(100)},
		&account.WriteCheck{AccountID: accountID, CheckNumber: "1170", Amount: decimal.NewFromInt(100)},
	}

	for _, cmd := range commands {
		if err := bus.Send(ctx, cqrs.NewEnvelope(cmd, cqrs.WithPrincipal("demo"))); err != nil {
			return fmt.Errorf("send %s: %w", cmd.CommandType(), err)
		}
	}

	// Overdraft: rejected by the aggregate, nothing appended.
	err := bus.Send(ctx, cqrs.NewEnvelope(
		&account.WithdrawMoney{AccountID: accountID, Amount: decimal.NewFromInt(1000)},
		cqrs.WithPrincipal("demo"),
	))
	if !domain.IsDomainError(err) {
		return fmt.Errorf("expected a domain rejection for the overdraft, got: %v", err)
	}
	logger.Info("overdraft rejected", slog.String("reason", err.Error()))

	if v, ok := query.View(accountID); ok {
		logger.Info("in-memory view",
			slog.String("account_id", v.AccountID),
			slog.String("owner", v.OwnerName),
			slog.String("balance", v.Balance.String()),
			slog.Any("checks", v.WrittenChecks),
		)
	}

	// The durable view lags the write side; give the bus a moment.
	time.Sleep(time.Second)

	row, err := view.Get(ctx, accountID)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("read account view: %w", err)
	}
	logger.Info("durable view",
		slog.String("account_id", row.AccountID),
		slog.String("owner", row.OwnerName),
		slog.String("balance", row.Balance),
		slog.Int64("last_version", row.LastVersion),
		slog.Any("checks", row.Checks),
	)

	return nil
}

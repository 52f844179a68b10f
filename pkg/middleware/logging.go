// Package middleware provides cross-cutting command middleware: structured
// logging, panic recovery, struct-tag validation, and distributed tracing.
package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/coffers/coffers/pkg/cqrs"
	"github.com/coffers/coffers/pkg/domain"
)

// Logging logs command execution with timing information using slog.
func Logging(logger *slog.Logger) cqrs.CommandMiddleware {
	if logger == nil {
		logger = slog.Default()
	}

	return func(next cqrs.CommandHandler) cqrs.CommandHandler {
		return cqrs.CommandHandlerFunc(func(ctx context.Context, cmd *domain.CommandEnvelope) ([]*domain.Event, error) {
			start := time.Now()

			commandType := cmd.Command.CommandType()
			commandID := cmd.Metadata.CommandID

			logger.InfoContext(ctx, "executing command",
				slog.String("command_type", commandType),
				slog.String("command_id", commandID),
				slog.String("aggregate_id", cmd.Command.AggregateID()),
				slog.String("correlation_id", cmd.Metadata.CorrelationID),
			)

			events, err := next.Handle(ctx, cmd)

			duration := time.Since(start)

			if err != nil {
				logger.ErrorContext(ctx, "command execution failed",
					slog.String("command_type", commandType),
					slog.String("command_id", commandID),
					slog.Int64("duration_ms", duration.Milliseconds()),
					slog.String("error", err.Error()),
				)
				return nil, err
			}

			logger.InfoContext(ctx, "command executed",
				slog.String("command_type", commandType),
				slog.String("command_id", commandID),
				slog.Int("events_count", len(events)),
				slog.Int64("duration_ms", duration.Milliseconds()),
			)

			return events, nil
		})
	}
}

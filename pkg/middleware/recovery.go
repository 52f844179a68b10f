package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/coffers/coffers/pkg/cqrs"
	"github.com/coffers/coffers/pkg/domain"
)

// Recovery recovers from panics in command handlers and converts them into
// errors, so one misbehaving handler cannot take the process down.
func Recovery(logger *slog.Logger) cqrs.CommandMiddleware {
	if logger == nil {
		logger = slog.Default()
	}

	return func(next cqrs.CommandHandler) cqrs.CommandHandler {
		return cqrs.CommandHandlerFunc(func(ctx context.Context, cmd *domain.CommandEnvelope) (events []*domain.Event, err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.ErrorContext(ctx, "command handler panicked",
						slog.String("command_id", cmd.Metadata.CommandID),
						slog.String("command_type", cmd.Command.CommandType()),
						slog.Any("panic", r),
						slog.String("stack_trace", string(debug.Stack())),
					)

					err = fmt.Errorf("command handler panicked: %v", r)
					events = nil
				}
			}()

			return next.Handle(ctx, cmd)
		})
	}
}

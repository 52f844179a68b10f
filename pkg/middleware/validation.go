package middleware

import (
	"context"
	"fmt"

	"github.com/asaskevich/govalidator"

	"github.com/coffers/coffers/pkg/cqrs"
	"github.com/coffers/coffers/pkg/domain"
)

// Validation validates command structs against their `valid` tags before
// they reach a handler. Commands without tags pass through untouched.
func Validation() cqrs.CommandMiddleware {
	return func(next cqrs.CommandHandler) cqrs.CommandHandler {
		return cqrs.CommandHandlerFunc(func(ctx context.Context, cmd *domain.CommandEnvelope) ([]*domain.Event, error) {
			if ok, err := govalidator.ValidateStruct(cmd.Command); !ok {
				return nil, fmt.Errorf("%w: %v", domain.ErrInvalidCommand, err)
			}

			return next.Handle(ctx, cmd)
		})
	}
}

// MetadataValidation checks that envelope metadata carries the fields the
// rest of the pipeline relies on.
func MetadataValidation() cqrs.CommandMiddleware {
	return func(next cqrs.CommandHandler) cqrs.CommandHandler {
		return cqrs.CommandHandlerFunc(func(ctx context.Context, cmd *domain.CommandEnvelope) ([]*domain.Event, error) {
			if cmd.Metadata.CommandID == "" {
				return nil, fmt.Errorf("%w: command_id is required", domain.ErrInvalidCommand)
			}
			if cmd.Command.AggregateID() == "" {
				return nil, fmt.Errorf("%w: aggregate_id is required", domain.ErrInvalidCommand)
			}

			return next.Handle(ctx, cmd)
		})
	}
}

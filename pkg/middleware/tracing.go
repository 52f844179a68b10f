package middleware

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/coffers/coffers/pkg/cqrs"
	"github.com/coffers/coffers/pkg/domain"
)

// Tracing adds an OpenTelemetry span around command execution, using the
// global tracer provider.
func Tracing(tracerName string) cqrs.CommandMiddleware {
	if tracerName == "" {
		tracerName = "github.com/coffers/coffers"
	}
	return TracingWithTracer(otel.Tracer(tracerName))
}

// TracingWithTracer creates tracing middleware with a specific tracer.
func TracingWithTracer(tracer trace.Tracer) cqrs.CommandMiddleware {
	return func(next cqrs.CommandHandler) cqrs.CommandHandler {
		return cqrs.CommandHandlerFunc(func(ctx context.Context, cmd *domain.CommandEnvelope) ([]*domain.Event, error) {
			commandType := cmd.Command.CommandType()

			spanCtx, span := tracer.Start(ctx, fmt.Sprintf("command.%s", commandType),
				trace.WithSpanKind(trace.SpanKindInternal),
				trace.WithAttributes(
					attribute.String("command.id", cmd.Metadata.CommandID),
					attribute.String("command.type", commandType),
					attribute.String("command.aggregate_id", cmd.Command.AggregateID()),
					attribute.String("command.correlation_id", cmd.Metadata.CorrelationID),
				),
			)
			defer span.End()

			events, err := next.Handle(spanCtx, cmd)

			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return nil, err
			}

			span.SetAttributes(attribute.Int("events.count", len(events)))
			if len(events) > 0 {
				eventTypes := make([]string, len(events))
				for i, evt := range events {
					eventTypes[i] = evt.EventType
				}
				span.SetAttributes(attribute.StringSlice("events.types", eventTypes))
			}

			span.SetStatus(codes.Ok, "command executed")
			return events, nil
		})
	}
}

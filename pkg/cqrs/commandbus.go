// Package cqrs provides the in-process command bus: commands are routed to
// registered handlers through a middleware chain, and the events a handler
// produces are optionally published to an event bus.
package cqrs

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/coffers/coffers/pkg/domain"
	"github.com/coffers/coffers/pkg/messaging"
)

// CommandHandler processes a command and returns the events it produced.
type CommandHandler interface {
	Handle(ctx context.Context, cmd *domain.CommandEnvelope) ([]*domain.Event, error)
}

// CommandHandlerFunc is a function adapter for CommandHandler.
type CommandHandlerFunc func(ctx context.Context, cmd *domain.CommandEnvelope) ([]*domain.Event, error)

// Handle implements CommandHandler.
func (f CommandHandlerFunc) Handle(ctx context.Context, cmd *domain.CommandEnvelope) ([]*domain.Event, error) {
	return f(ctx, cmd)
}

// CommandMiddleware wraps command handlers with cross-cutting concerns.
type CommandMiddleware func(CommandHandler) CommandHandler

// CommandBus routes commands to their handlers.
type CommandBus interface {
	// Send sends a command to its handler.
	Send(ctx context.Context, cmd *domain.CommandEnvelope) error

	// Register registers a handler for a command type.
	Register(commandType string, handler CommandHandler)

	// Use adds middleware to the command processing pipeline.
	Use(middleware CommandMiddleware)
}

// DefaultCommandBus is a simple in-memory implementation of CommandBus.
type DefaultCommandBus struct {
	handlers   map[string]CommandHandler
	middleware []CommandMiddleware
	eventBus   messaging.EventBus // optional: publishes events after command execution
	mu         sync.RWMutex
}

// NewCommandBus creates a new command bus instance.
func NewCommandBus() *DefaultCommandBus {
	return &DefaultCommandBus{
		handlers: make(map[string]CommandHandler),
	}
}

// NewCommandBusWithEventBus creates a command bus that publishes the events
// a handler produced once the handler has returned successfully.
func NewCommandBusWithEventBus(eventBus messaging.EventBus) *DefaultCommandBus {
	return &DefaultCommandBus{
		handlers: make(map[string]CommandHandler),
		eventBus: eventBus,
	}
}

// Register registers a handler for a specific command type.
func (b *DefaultCommandBus) Register(commandType string, handler CommandHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.handlers[commandType]; exists {
		panic(fmt.Sprintf("handler already registered for command type: %s", commandType))
	}

	b.handlers[commandType] = handler
}

// Use adds middleware to the command processing pipeline.
// Middleware is executed in the order it was added (first added = outermost).
func (b *DefaultCommandBus) Use(middleware CommandMiddleware) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.middleware = append(b.middleware, middleware)
}

// Send sends a command to its registered handler.
func (b *DefaultCommandBus) Send(ctx context.Context, cmd *domain.CommandEnvelope) error {
	if cmd == nil || cmd.Command == nil {
		return domain.ErrInvalidCommand
	}

	commandType := cmd.Command.CommandType()
	if commandType == "" {
		return fmt.Errorf("%w: empty command type", domain.ErrInvalidCommand)
	}

	b.mu.RLock()
	handler, exists := b.handlers[commandType]
	middleware := b.middleware
	b.mu.RUnlock()

	if !exists {
		return fmt.Errorf("%w: %s", domain.ErrCommandNotFound, commandType)
	}

	// Build middleware chain (reverse order so first added is outermost).
	finalHandler := handler
	for i := len(middleware) - 1; i >= 0; i-- {
		finalHandler = middleware[i](finalHandler)
	}

	events, err := finalHandler.Handle(ctx, cmd)
	if err != nil {
		return err
	}

	if b.eventBus != nil && len(events) > 0 {
		if err := b.eventBus.Publish(events); err != nil {
			return fmt.Errorf("failed to publish events: %w", err)
		}
	}

	return nil
}

// RegisteredHandlers returns the list of registered command types.
func (b *DefaultCommandBus) RegisteredHandlers() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	types := make([]string, 0, len(b.handlers))
	for t := range b.handlers {
		types = append(types, t)
	}
	return types
}

// NewEnvelope wraps a command with freshly minted metadata. The command ID
// and correlation ID default to new UUIDs; pass opts to override.
func NewEnvelope(cmd domain.Command, opts ...EnvelopeOption) *domain.CommandEnvelope {
	envelope := &domain.CommandEnvelope{
		Command: cmd,
		Metadata: domain.CommandMetadata{
			CommandID:     uuid.NewString(),
			CorrelationID: uuid.NewString(),
			Timestamp:     domain.Now(),
		},
	}
	for _, opt := range opts {
		opt(envelope)
	}
	return envelope
}

// EnvelopeOption customizes command envelope metadata.
type EnvelopeOption func(*domain.CommandEnvelope)

// WithCorrelationID sets the correlation ID, linking this command to an
// existing trace.
func WithCorrelationID(id string) EnvelopeOption {
	return func(e *domain.CommandEnvelope) {
		e.Metadata.CorrelationID = id
	}
}

// WithPrincipal records who issued the command.
func WithPrincipal(principalID string) EnvelopeOption {
	return func(e *domain.CommandEnvelope) {
		e.Metadata.PrincipalID = principalID
	}
}

// WithCustom attaches an application-specific metadata entry.
func WithCustom(key, value string) EnvelopeOption {
	return func(e *domain.CommandEnvelope) {
		if e.Metadata.Custom == nil {
			e.Metadata.Custom = make(map[string]string)
		}
		e.Metadata.Custom[key] = value
	}
}

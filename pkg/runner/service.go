// Package runner manages the lifecycle of long-running services: ordered
// startup, signal handling, and graceful reverse-order shutdown.
package runner

import "context"

// Service represents a service that can be started and stopped. Services
// are managed by the Runner and should implement graceful startup and
// shutdown semantics.
type Service interface {
	// Name returns a unique identifier for this service, used in logs and
	// error messages.
	Name() string

	// Start initializes and starts the service. Should return once the
	// service is ready. Must respect context cancellation.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the service. Should complete within the
	// context timeout.
	Stop(ctx context.Context) error
}

// HealthChecker is an optional interface services can implement to report
// their health.
type HealthChecker interface {
	Service

	// HealthCheck returns an error if the service is unhealthy.
	HealthCheck(ctx context.Context) error
}

// ServiceFunc adapts a pair of start/stop functions into a Service.
type ServiceFunc struct {
	ServiceName string
	OnStart     func(ctx context.Context) error
	OnStop      func(ctx context.Context) error
}

func (s ServiceFunc) Name() string { return s.ServiceName }

func (s ServiceFunc) Start(ctx context.Context) error {
	if s.OnStart == nil {
		return nil
	}
	return s.OnStart(ctx)
}

func (s ServiceFunc) Stop(ctx context.Context) error {
	if s.OnStop == nil {
		return nil
	}
	return s.OnStop(ctx)
}

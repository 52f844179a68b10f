package projection

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/coffers/coffers/pkg/codec"
	"github.com/coffers/coffers/pkg/domain"
	"github.com/coffers/coffers/pkg/messaging"
	"github.com/coffers/coffers/pkg/store"
)

// Manager coordinates long-running projections. It is a hybrid: live events
// arrive over the event bus, while rebuilds batch-replay the full history
// from the event store. Checkpoints record how far each projection has
// processed the global sequence, so a restarted projection resumes instead
// of refolding everything.
type Manager struct {
	projections     map[string]Projection
	checkpointStore store.CheckpointStore
	eventStore      store.EventStore
	eventBus        messaging.EventBus
	codec           codec.Codec
	logger          *slog.Logger

	mu      sync.Mutex
	running map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithManagerLogger sets the logger used for delivery failures.
func WithManagerLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a projection manager. The codec decodes stored event
// payloads before they reach the projections.
func NewManager(checkpointStore store.CheckpointStore, eventStore store.EventStore, eventBus messaging.EventBus, c codec.Codec, opts ...ManagerOption) *Manager {
	m := &Manager{
		projections:     make(map[string]Projection),
		checkpointStore: checkpointStore,
		eventStore:      eventStore,
		eventBus:        eventBus,
		codec:           c,
		logger:          slog.Default(),
		running:         make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register registers a projection with the manager.
func (m *Manager) Register(p Projection) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.projections[p.Name()] = p
}

// Start subscribes a projection to the live event bus under a durable
// consumer named after the projection, so a restarted projection resumes at
// its first unacknowledged event. Each delivered event is decoded and
// folded; the checkpoint advances only after a successful fold, so a crash
// between fold and acknowledgement results in redelivery, which the
// checkpoint's last event ID absorbs.
func (m *Manager) Start(ctx context.Context, projectionName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, exists := m.projections[projectionName]
	if !exists {
		return fmt.Errorf("projection %s not found", projectionName)
	}

	if _, running := m.running[projectionName]; running {
		return fmt.Errorf("projection %s already running", projectionName)
	}

	checkpoint, err := m.checkpointStore.Load(projectionName)
	if err != nil {
		// No checkpoint yet, start from the beginning.
		checkpoint = &store.ProjectionCheckpoint{
			ProjectionName: projectionName,
		}
	}

	projCtx, cancel := context.WithCancel(ctx)
	m.running[projectionName] = cancel

	subscription, err := m.eventBus.Subscribe(messaging.EventFilter{Durable: projectionName}, func(event *domain.Event) error {
		if checkpoint.LastEventID != "" && event.ID == checkpoint.LastEventID {
			// Redelivery of the last folded event: the previous run saved
			// the checkpoint but never acknowledged. Ack without refolding.
			return nil
		}

		envelope, err := m.decode(event)
		if err != nil {
			m.logger.ErrorContext(projCtx, "projection could not decode event",
				slog.String("projection", projectionName),
				slog.String("event_id", event.ID),
				slog.String("event_type", event.EventType),
				slog.String("error", err.Error()),
			)
			return err
		}

		if err := p.Handle(projCtx, envelope); err != nil {
			return fmt.Errorf("projection %s failed to handle event: %w", projectionName, err)
		}

		checkpoint.Position++
		checkpoint.LastEventID = event.ID
		checkpoint.UpdatedAt = domain.Now()

		if err := m.checkpointStore.Save(checkpoint); err != nil {
			return fmt.Errorf("failed to save checkpoint: %w", err)
		}
		return nil
	})
	if err != nil {
		cancel()
		delete(m.running, projectionName)
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		<-projCtx.Done()
		subscription.Unsubscribe()
	}()

	return nil
}

// Stop stops a running projection.
func (m *Manager) Stop(projectionName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cancel, running := m.running[projectionName]
	if !running {
		return fmt.Errorf("projection %s not running", projectionName)
	}

	cancel()
	delete(m.running, projectionName)
	return nil
}

// Rebuild resets a projection and refolds the entire event history from the
// store in batches. Used for the initial build, recovery from corruption,
// or a read-model schema change.
func (m *Manager) Rebuild(ctx context.Context, projectionName string) error {
	m.mu.Lock()
	p, exists := m.projections[projectionName]
	if !exists {
		m.mu.Unlock()
		return fmt.Errorf("projection %s not found", projectionName)
	}
	if cancel, running := m.running[projectionName]; running {
		cancel()
		delete(m.running, projectionName)
	}
	m.mu.Unlock()

	if err := p.Reset(ctx); err != nil {
		return fmt.Errorf("failed to reset projection: %w", err)
	}
	if err := m.checkpointStore.Delete(projectionName); err != nil {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}

	position := int64(0)
	batchSize := 1000

	for {
		events, err := m.eventStore.LoadAllEvents(ctx, position, batchSize)
		if err != nil {
			return fmt.Errorf("failed to load events: %w", err)
		}
		if len(events) == 0 {
			break
		}

		for _, event := range events {
			envelope, err := m.decode(event)
			if err != nil {
				return fmt.Errorf("failed to decode event %s during rebuild: %w", event.ID, err)
			}
			if err := p.Handle(ctx, envelope); err != nil {
				return fmt.Errorf("failed to handle event during rebuild: %w", err)
			}
			position++
		}

		if err := m.checkpointStore.Save(&store.ProjectionCheckpoint{
			ProjectionName: projectionName,
			Position:       position,
			LastEventID:    events[len(events)-1].ID,
			UpdatedAt:      domain.Now(),
		}); err != nil {
			return fmt.Errorf("failed to save checkpoint: %w", err)
		}

		if len(events) < batchSize {
			break
		}
	}

	return nil
}

// StopAll stops all running projections and waits for them to unwind.
func (m *Manager) StopAll() {
	m.mu.Lock()
	for name, cancel := range m.running {
		cancel()
		delete(m.running, name)
	}
	m.mu.Unlock()

	m.wg.Wait()
}

// Checkpoint returns the current checkpoint for a projection.
func (m *Manager) Checkpoint(projectionName string) (*store.ProjectionCheckpoint, error) {
	return m.checkpointStore.Load(projectionName)
}

func (m *Manager) decode(event *domain.Event) (*domain.EventEnvelope, error) {
	payload, err := m.codec.Decode(event.EventType, event.Data)
	if err != nil {
		return nil, err
	}
	return &domain.EventEnvelope{Event: *event, Payload: payload}, nil
}

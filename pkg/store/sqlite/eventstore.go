// Package sqlite provides durable SQLite-backed implementations of the
// store contracts: the append-only event store and the projection
// checkpoint store. It uses the pure Go driver, so no CGo is required.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/coffers/coffers/pkg/domain"
	"github.com/coffers/coffers/pkg/store"
	"github.com/coffers/coffers/pkg/store/sqlite/migrate"
)

var json = jsoniter.ConfigFastest

//go:embed migrations/*.sql
var migrationsFS embed.FS

// EventStore is a SQLite-based implementation of store.EventStore.
// The expected-version check and the insert run in one transaction under a
// process-wide write lock, so no two appends with the same expected version
// can both succeed.
type EventStore struct {
	db *sql.DB
	mu sync.RWMutex
}

type eventStoreConfig struct {
	dsn          string
	maxOpenConns int
	maxIdleConns int
	walMode      bool
	autoMigrate  bool
}

func defaultEventStoreConfig() eventStoreConfig {
	return eventStoreConfig{
		dsn:          "coffers.db",
		maxOpenConns: 25,
		maxIdleConns: 5,
		walMode:      true,
		autoMigrate:  true,
	}
}

// EventStoreOption is a function that configures an EventStore.
type EventStoreOption func(*eventStoreConfig)

// WithDSN sets the data source name (file path or ":memory:" for in-memory).
func WithDSN(dsn string) EventStoreOption {
	return func(c *eventStoreConfig) {
		c.dsn = dsn
	}
}

// WithMemoryDatabase uses an in-memory database. Handy for tests.
func WithMemoryDatabase() EventStoreOption {
	return func(c *eventStoreConfig) {
		c.dsn = ":memory:"
	}
}

// WithMaxOpenConns sets the maximum number of open connections.
func WithMaxOpenConns(n int) EventStoreOption {
	return func(c *eventStoreConfig) {
		c.maxOpenConns = n
	}
}

// WithMaxIdleConns sets the maximum number of idle connections in the pool.
func WithMaxIdleConns(n int) EventStoreOption {
	return func(c *eventStoreConfig) {
		c.maxIdleConns = n
	}
}

// WithWALMode enables write-ahead logging for better concurrency.
// Recommended for file databases; not applicable to :memory:.
func WithWALMode(enabled bool) EventStoreOption {
	return func(c *eventStoreConfig) {
		c.walMode = enabled
	}
}

// WithAutoMigrate controls whether pending migrations run on startup.
func WithAutoMigrate(enabled bool) EventStoreOption {
	return func(c *eventStoreConfig) {
		c.autoMigrate = enabled
	}
}

// NewEventStore opens (and by default migrates) a SQLite event store.
//
//	es, err := sqlite.NewEventStore(sqlite.WithDSN("/var/lib/coffers/events.db"))
//	es, err := sqlite.NewEventStore(sqlite.WithMemoryDatabase())
func NewEventStore(opts ...EventStoreOption) (*EventStore, error) {
	config := defaultEventStoreConfig()
	for _, opt := range opts {
		opt(&config)
	}

	db, err := sql.Open("sqlite", config.dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A :memory: database exists per connection; the pool must not grow
	// beyond one or each connection sees its own empty database.
	if config.dsn == ":memory:" {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		db.SetMaxOpenConns(config.maxOpenConns)
		db.SetMaxIdleConns(config.maxIdleConns)
	}
	db.SetConnMaxLifetime(time.Hour)

	s := &EventStore{db: db}

	if config.walMode && config.dsn != ":memory:" {
		if _, err := db.Exec(`
			PRAGMA journal_mode = WAL;
			PRAGMA synchronous = NORMAL;
			PRAGMA foreign_keys = ON;
		`); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set WAL mode: %w", err)
		}
	}

	if config.autoMigrate {
		if err := runMigrations(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	return s, nil
}

func runMigrations(db *sql.DB) error {
	m := migrate.New(db, "schema_migrations")
	if err := m.LoadFromFS(migrationsFS, "migrations"); err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}
	return m.Up()
}

// DB returns the underlying database handle, for co-locating read models
// and checkpoints in the same file.
func (s *EventStore) DB() *sql.DB {
	return s.db
}

// AppendEvents appends events to an aggregate's stream atomically.
func (s *EventStore) AppendEvents(ctx context.Context, aggregateID string, expectedVersion int64, events []*domain.Event) (int64, error) {
	if len(events) == 0 {
		return expectedVersion, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, unavailable("failed to begin transaction", err)
	}
	defer tx.Rollback()

	var currentVersion int64
	err = tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(version), 0) FROM events WHERE aggregate_id = ?",
		aggregateID,
	).Scan(&currentVersion)
	if err != nil {
		return 0, unavailable("failed to check current version", err)
	}

	if currentVersion != expectedVersion {
		return 0, store.ErrConcurrencyConflict
	}

	for i, evt := range events {
		metadataJSON, err := json.Marshal(evt.Metadata)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal metadata: %w", err)
		}

		// Sequence numbers are assigned here; the caller's are advisory.
		version := currentVersion + int64(i) + 1
		evt.Version = version

		_, err = tx.ExecContext(ctx, `
			INSERT INTO events (event_id, aggregate_id, aggregate_type, event_type, version, timestamp, data, metadata)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			evt.ID, evt.AggregateID, evt.AggregateType, evt.EventType,
			version, evt.Timestamp.Unix(), evt.Data, string(metadataJSON),
		)
		if err != nil {
			return 0, unavailable("failed to insert event", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, unavailable("failed to commit transaction", err)
	}

	return currentVersion + int64(len(events)), nil
}

// LoadEvents loads events for an aggregate after the given version.
func (s *EventStore) LoadEvents(ctx context.Context, aggregateID string, afterVersion int64) ([]*domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT event_id, aggregate_id, aggregate_type, event_type, version, timestamp, data, metadata
		FROM events
		WHERE aggregate_id = ? AND version > ?
		ORDER BY version ASC`,
		aggregateID, afterVersion,
	)
	if err != nil {
		return nil, unavailable("failed to query events", err)
	}
	defer rows.Close()

	events, err := scanEvents(rows)
	if err != nil {
		return nil, err
	}

	if len(events) == 0 && afterVersion == 0 {
		var exists int
		err := s.db.QueryRowContext(ctx,
			"SELECT COUNT(1) FROM events WHERE aggregate_id = ?", aggregateID,
		).Scan(&exists)
		if err != nil {
			return nil, unavailable("failed to check stream existence", err)
		}
		if exists == 0 {
			return nil, store.ErrStreamNotFound
		}
	}

	return events, nil
}

// LoadAllEvents loads events across all aggregates in append order.
func (s *EventStore) LoadAllEvents(ctx context.Context, fromPosition int64, limit int) ([]*domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 1000
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT event_id, aggregate_id, aggregate_type, event_type, version, timestamp, data, metadata
		FROM events
		WHERE position > ?
		ORDER BY position ASC
		LIMIT ?`,
		fromPosition, limit,
	)
	if err != nil {
		return nil, unavailable("failed to query events", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// StreamVersion returns the current last sequence number of a stream.
func (s *EventStore) StreamVersion(ctx context.Context, aggregateID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var version int64
	err := s.db.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(version), 0) FROM events WHERE aggregate_id = ?",
		aggregateID,
	).Scan(&version)
	if err != nil {
		return 0, unavailable("failed to query stream version", err)
	}

	return version, nil
}

// Close closes the event store and releases resources.
func (s *EventStore) Close() error {
	return s.db.Close()
}

func scanEvents(rows *sql.Rows) ([]*domain.Event, error) {
	var events []*domain.Event
	for rows.Next() {
		var (
			evt          domain.Event
			ts           int64
			metadataJSON string
		)
		if err := rows.Scan(
			&evt.ID, &evt.AggregateID, &evt.AggregateType, &evt.EventType,
			&evt.Version, &ts, &evt.Data, &metadataJSON,
		); err != nil {
			return nil, unavailable("failed to scan event", err)
		}
		evt.Timestamp = time.Unix(ts, 0)
		if err := json.Unmarshal([]byte(metadataJSON), &evt.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event metadata: %w", err)
		}
		events = append(events, &evt)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("failed to iterate events", err)
	}
	return events, nil
}

// unavailable wraps driver-level failures so callers can distinguish them
// from concurrency conflicts with errors.Is(err, store.ErrStoreUnavailable).
func unavailable(msg string, err error) error {
	return fmt.Errorf("%s: %w: %w", msg, store.ErrStoreUnavailable, err)
}

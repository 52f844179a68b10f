package sqlite

import (
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/coffers/coffers/pkg/store"
	"github.com/coffers/coffers/pkg/store/sqlite/migrate"
)

//go:embed checkpoint_migrations/*.sql
var checkpointMigrationsFS embed.FS

// CheckpointStore is a SQLite-based implementation of store.CheckpointStore.
// It can share the event store's database (pass eventStore.DB()) or use a
// separate one so read models scale independently of the write side.
type CheckpointStore struct {
	db *sql.DB
}

type checkpointStoreConfig struct {
	autoMigrate bool
}

// CheckpointStoreOption is a function that configures a CheckpointStore.
type CheckpointStoreOption func(*checkpointStoreConfig)

// WithCheckpointAutoMigrate controls whether pending migrations run on startup.
func WithCheckpointAutoMigrate(enabled bool) CheckpointStoreOption {
	return func(c *checkpointStoreConfig) {
		c.autoMigrate = enabled
	}
}

// NewCheckpointStore creates a checkpoint store over the given database.
func NewCheckpointStore(db *sql.DB, opts ...CheckpointStoreOption) (*CheckpointStore, error) {
	config := checkpointStoreConfig{autoMigrate: true}
	for _, opt := range opts {
		opt(&config)
	}

	s := &CheckpointStore{db: db}

	if config.autoMigrate {
		m := migrate.New(db, "checkpoint_schema_migrations")
		if err := m.LoadFromFS(checkpointMigrationsFS, "checkpoint_migrations"); err != nil {
			return nil, fmt.Errorf("failed to load checkpoint migrations: %w", err)
		}
		if err := m.Up(); err != nil {
			return nil, fmt.Errorf("failed to run checkpoint migrations: %w", err)
		}
	}

	return s, nil
}

// Save saves a checkpoint, replacing any previous one for the projection.
func (s *CheckpointStore) Save(checkpoint *store.ProjectionCheckpoint) error {
	_, err := s.db.Exec(`
		INSERT INTO projection_checkpoints (projection_name, position, last_event_id, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (projection_name) DO UPDATE SET
			position = excluded.position,
			last_event_id = excluded.last_event_id,
			updated_at = excluded.updated_at`,
		checkpoint.ProjectionName, checkpoint.Position, checkpoint.LastEventID, checkpoint.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// Load loads a checkpoint for a projection.
func (s *CheckpointStore) Load(projectionName string) (*store.ProjectionCheckpoint, error) {
	var (
		checkpoint store.ProjectionCheckpoint
		updatedAt  int64
	)
	err := s.db.QueryRow(`
		SELECT projection_name, position, last_event_id, updated_at
		FROM projection_checkpoints
		WHERE projection_name = ?`,
		projectionName,
	).Scan(&checkpoint.ProjectionName, &checkpoint.Position, &checkpoint.LastEventID, &updatedAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("checkpoint not found for projection %s", projectionName)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	checkpoint.UpdatedAt = time.Unix(updatedAt, 0)
	return &checkpoint, nil
}

// Delete deletes a checkpoint (for rebuilding).
func (s *CheckpointStore) Delete(projectionName string) error {
	if _, err := s.db.Exec(
		"DELETE FROM projection_checkpoints WHERE projection_name = ?", projectionName,
	); err != nil {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}

package sqlite_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coffers/coffers/pkg/domain"
	"github.com/coffers/coffers/pkg/store"
	"github.com/coffers/coffers/pkg/store/sqlite"
)

func newCheckpointStore(t *testing.T) *sqlite.CheckpointStore {
	t.Helper()

	es := newTestStore(t)
	cs, err := sqlite.NewCheckpointStore(es.DB())
	require.NoError(t, err)
	return cs
}

func TestCheckpointStore_SaveAndLoad(t *testing.T) {
	cs := newCheckpointStore(t)

	saved := &store.ProjectionCheckpoint{
		ProjectionName: "account_view",
		Position:       42,
		LastEventID:    "evt-42",
		UpdatedAt:      domain.Now(),
	}
	require.NoError(t, cs.Save(saved))

	loaded, err := cs.Load("account_view")
	require.NoError(t, err)
	assert.Equal(t, "account_view", loaded.ProjectionName)
	assert.Equal(t, int64(42), loaded.Position)
	assert.Equal(t, "evt-42", loaded.LastEventID)
}

func TestCheckpointStore_SaveReplacesPrevious(t *testing.T) {
	cs := newCheckpointStore(t)

	require.NoError(t, cs.Save(&store.ProjectionCheckpoint{
		ProjectionName: "account_view", Position: 1, LastEventID: "evt-1", UpdatedAt: domain.Now(),
	}))
	require.NoError(t, cs.Save(&store.ProjectionCheckpoint{
		ProjectionName: "account_view", Position: 2, LastEventID: "evt-2", UpdatedAt: domain.Now(),
	}))

	loaded, err := cs.Load("account_view")
	require.NoError(t, err)
	assert.Equal(t, int64(2), loaded.Position)
	assert.Equal(t, "evt-2", loaded.LastEventID)
}

func TestCheckpointStore_LoadMissing(t *testing.T) {
	cs := newCheckpointStore(t)

	_, err := cs.Load("never_saved")
	assert.Error(t, err)
}

func TestCheckpointStore_Delete(t *testing.T) {
	cs := newCheckpointStore(t)

	require.NoError(t, cs.Save(&store.ProjectionCheckpoint{
		ProjectionName: "account_view", Position: 7, UpdatedAt: domain.Now(),
	}))
	require.NoError(t, cs.Delete("account_view"))

	_, err := cs.Load("account_view")
	assert.Error(t, err)

	// Deleting an absent checkpoint is not an error.
	assert.NoError(t, cs.Delete("account_view"))
}

package migrate_test

import (
	"database/sql"
	"embed"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/coffers/coffers/pkg/store/sqlite/migrate"
)

//go:embed testdata/*.sql
var testMigrations embed.FS

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigrator_AppliesInOrder(t *testing.T) {
	db := openTestDB(t)

	m := migrate.New(db, "schema_migrations")
	require.NoError(t, m.LoadFromFS(testMigrations, "testdata"))
	require.NoError(t, m.Up())

	// Both migrations applied: the column from 000002 exists.
	_, err := db.Exec(`INSERT INTO widgets (id, name, color) VALUES (1, 'gear', 'red')`)
	assert.NoError(t, err)

	var version int
	require.NoError(t, db.QueryRow(`SELECT MAX(version) FROM schema_migrations`).Scan(&version))
	assert.Equal(t, 2, version)
}

func TestMigrator_UpIsIdempotent(t *testing.T) {
	db := openTestDB(t)

	m := migrate.New(db, "schema_migrations")
	require.NoError(t, m.LoadFromFS(testMigrations, "testdata"))
	require.NoError(t, m.Up())
	// A second run sees no pending migrations and must not fail.
	require.NoError(t, m.Up())

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&count))
	assert.Equal(t, 2, count)
}

func TestMigrator_SeparateTrackingTables(t *testing.T) {
	db := openTestDB(t)

	first := migrate.New(db, "first_migrations")
	require.NoError(t, first.LoadFromFS(testMigrations, "testdata"))
	require.NoError(t, first.Up())

	// A second migrator with its own table starts from zero; its CREATE
	// TABLE collides with the applied schema, proving stores must not share
	// tracking tables unless they share migrations.
	second := migrate.New(db, "second_migrations")
	require.NoError(t, second.LoadFromFS(testMigrations, "testdata"))
	assert.Error(t, second.Up())
}

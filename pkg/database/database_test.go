package database

import (
	"context"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func TestOpenAndMigrate_SQLite(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, Config{Driver: DriverSQLite, DSN: ":memory:"}, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	assert.Equal(t, sqlbuilder.SQLite, db.Flavor())
	require.NoError(t, db.PingContext(ctx))

	ms := NewMigrationService(testLogger(), &MigrationConfig{MigrationFolderPath: "../../db/pg"})
	require.NoError(t, ms.Migrate(db))
	// second run is a no-op
	require.NoError(t, ms.Migrate(db))

	latest, err := ms.LatestVersion()
	require.NoError(t, err)
	assert.Equal(t, 1, latest)

	var tables []string
	require.NoError(t, db.SelectContext(ctx, &tables, "SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'schema_%' ORDER BY name"))
	assert.Equal(t, []string{"contact_groups", "contacts", "deduplication_groups", "deduplications"}, tables)
}

func TestMigrate_MissingFolder(t *testing.T) {
	db, err := Open(context.Background(), Config{Driver: DriverSQLite, DSN: ":memory:"}, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ms := NewMigrationService(testLogger(), &MigrationConfig{MigrationFolderPath: "does/not/exist"})
	assert.Error(t, ms.Migrate(db))
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "mysql"}, testLogger())
	assert.Error(t, err)
}

func TestFlavorFor(t *testing.T) {
	assert.Equal(t, sqlbuilder.PostgreSQL, FlavorFor(DriverPostgres))
	assert.Equal(t, sqlbuilder.SQLite, FlavorFor(DriverSQLite))
}

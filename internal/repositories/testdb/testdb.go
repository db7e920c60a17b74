// Package testdb opens a migrated in-memory database for repository tests.
package testdb

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/database"
)

// Logger returns a logger that discards every message.
func Logger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

// Open returns a migrated SQLite database that is closed when the test ends.
func Open(t *testing.T) database.DB {
	t.Helper()

	db, err := database.Open(context.Background(), database.Config{Driver: database.DriverSQLite, DSN: ":memory:"}, Logger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ms := database.NewMigrationService(Logger(), &database.MigrationConfig{MigrationFolderPath: migrationsPath()})
	require.NoError(t, ms.Migrate(db))
	return db
}

func migrationsPath() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "..", "db", "pg")
}

package repository

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/biller/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/biller/pkg/database"
)

// newTestDB opens a migrated database in a temp directory
func newTestDB(t *testing.T) *sqlite.DB {
	t.Helper()

	db, err := database.New(database.Config{Path: filepath.Join(t.TempDir(), "biller.db")}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.NewMigrator(db, zap.NewNop()).Migrate())
	return sqlite.NewDB(db.DB, zap.NewNop())
}

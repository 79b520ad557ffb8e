package database

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(Config{Path: filepath.Join(t.TempDir(), "project.db")}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenAppliesMigrations(t *testing.T) {
	db := openTestDB(t)

	for _, table := range []string{"layers", "layer_features", "project_settings", "grid_cells", "pipeline_runs"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		assert.NoError(t, err, table)
	}

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM migrations`).Scan(&n))
	assert.Equal(t, 3, n)

	// Running again is a no-op.
	require.NoError(t, NewMigrationManager(db, nil).RunMigrations())
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM migrations`).Scan(&n))
	assert.Equal(t, 3, n)
}

func TestLoadMigrationsSkipsBadNames(t *testing.T) {
	fsys := fstest.MapFS{
		"002_b.sql": {Data: []byte("SELECT 2")},
		"001_a.sql": {Data: []byte("SELECT 1")},
		"notes.txt": {Data: []byte("x")},
		"bad_c.sql": {Data: []byte("SELECT 3")},
	}

	migrations, err := NewMigrationManagerFS(nil, fsys, nil).LoadMigrations()
	require.NoError(t, err)
	require.Len(t, migrations, 2)
	assert.Equal(t, "001_a", migrations[0].Name)
	assert.Equal(t, 2, migrations[1].Version)
}

func TestTransactionRollsBack(t *testing.T) {
	db := openTestDB(t)

	boom := errors.New("boom")
	err := Transaction(db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`INSERT INTO project_settings (key, value) VALUES ('k', 'v')`); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM project_settings`).Scan(&n))
	assert.Zero(t, n)
}

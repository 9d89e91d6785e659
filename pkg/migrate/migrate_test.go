package migrate

import (
	"database/sql"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"m/001_create_sources.up.sql":   {Data: []byte("CREATE TABLE sources (id TEXT PRIMARY KEY);")},
		"m/001_create_sources.down.sql": {Data: []byte("DROP TABLE sources;")},
		"m/002_add_path.up.sql":         {Data: []byte("ALTER TABLE sources ADD COLUMN path TEXT;")},
		"m/002_add_path.down.sql":       {Data: []byte("ALTER TABLE sources DROP COLUMN path;")},
		"m/README.md":                   {Data: []byte("ignored")},
	}
}

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestFSProviderGetMigrations(t *testing.T) {
	migrations, err := NewFSProvider(testFS(), "m", "").GetMigrations()
	require.NoError(t, err)
	require.Len(t, migrations, 2)

	assert.Equal(t, 1, migrations[0].Version)
	assert.Equal(t, "create sources", migrations[0].Name)
	assert.Contains(t, migrations[0].Up, "CREATE TABLE")
	assert.Contains(t, migrations[0].Down, "DROP TABLE")
	assert.Equal(t, 2, migrations[1].Version)

	_, err = NewFSProvider(testFS(), "missing", "").GetMigrations()
	assert.Error(t, err)
}

func TestMigrateUpAndDown(t *testing.T) {
	db := openDB(t)
	m := NewMigrator(db, NewFSProvider(testFS(), "m", "schema_migrations"), nil)

	pending, err := m.GetPendingMigrations()
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	require.NoError(t, m.MigrateUp())
	version, err := m.GetCurrentVersion()
	require.NoError(t, err)
	assert.Equal(t, 2, version)

	_, err = db.Exec("INSERT INTO sources (id, path) VALUES ('Benin', 'benin.csv')")
	require.NoError(t, err)

	// Running again is a no-op
	require.NoError(t, m.MigrateUp())

	require.NoError(t, m.MigrateDown(1))
	version, err = m.GetCurrentVersion()
	require.NoError(t, err)
	assert.Equal(t, 1, version)
	_, err = db.Exec("INSERT INTO sources (id, path) VALUES ('Togo', 'togo.csv')")
	assert.Error(t, err, "path column was dropped")

	assert.Error(t, m.MigrateDown(1), "target must be below the current version")

	require.NoError(t, m.MigrateDown(0))
	version, err = m.GetCurrentVersion()
	require.NoError(t, err)
	assert.Equal(t, 0, version)
}

func TestMigrateFailureRollsBack(t *testing.T) {
	fsys := testFS()
	fsys["m/003_broken.up.sql"] = &fstest.MapFile{Data: []byte("CREATE TABLE oops (")}

	db := openDB(t)
	m := NewMigrator(db, NewFSProvider(fsys, "m", ""), nil)
	assert.Error(t, m.MigrateUp())

	version, err := m.GetCurrentVersion()
	require.NoError(t, err)
	assert.Equal(t, 2, version, "migrations before the broken one stay applied")
}

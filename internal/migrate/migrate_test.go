package migrate

import (
	"context"
	"database/sql"
	"testing"
	"testing/fstest"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemory(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", "file::memory:?_foreign_keys=on")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRun_AppliesEmbeddedSchemaOnce(t *testing.T) {
	ctx := context.Background()
	db := openMemory(t)

	applied, err := Run(ctx, db)
	require.NoError(t, err)
	require.NotEmpty(t, applied)
	assert.Equal(t, "0001", applied[0].Version)
	assert.Equal(t, "schema", applied[0].Name)

	for _, table := range []string{"stations", "samples", "transmissions"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		assert.NoError(t, err, "table %s", table)
	}

	again, err := Run(ctx, db)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestRun_OrdersByVersionAndSkipsOtherFiles(t *testing.T) {
	fsys := fstest.MapFS{
		"m/0002_second.sql": {Data: []byte(`INSERT INTO t (v) VALUES ('second');`)},
		"m/0001_first.sql":  {Data: []byte(`CREATE TABLE t (v TEXT); INSERT INTO t (v) VALUES ('first');`)},
		"m/README.md":       {Data: []byte(`not a migration`)},
	}
	db := openMemory(t)

	applied, err := run(context.Background(), db, fsys, "m")
	require.NoError(t, err)
	require.Len(t, applied, 2)
	assert.Equal(t, "0001", applied[0].Version)
	assert.Equal(t, "0002", applied[1].Version)

	rows, err := db.Query(`SELECT v FROM t ORDER BY rowid`)
	require.NoError(t, err)
	defer rows.Close()
	var got []string
	for rows.Next() {
		var v string
		require.NoError(t, rows.Scan(&v))
		got = append(got, v)
	}
	assert.Equal(t, []string{"first", "second"}, got)
}

func TestRun_FailedMigrationIsNotRecorded(t *testing.T) {
	fsys := fstest.MapFS{
		"m/0001_ok.sql":     {Data: []byte(`CREATE TABLE a (id INTEGER);`)},
		"m/0002_broken.sql": {Data: []byte(`CREATE TABLE b (id INTEGER); INSERT INTO nope VALUES (1);`)},
	}
	db := openMemory(t)

	_, err := run(context.Background(), db, fsys, "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "0002_broken.sql")

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&n))
	assert.Equal(t, 1, n)

	err = db.QueryRow(`SELECT name FROM sqlite_master WHERE name = 'b'`).Scan(new(string))
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestRun_DuplicateVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"m/0001_a.sql": {Data: []byte(`SELECT 1;`)},
		"m/0001_b.sql": {Data: []byte(`SELECT 1;`)},
	}
	_, err := run(context.Background(), openMemory(t), fsys, "m")
	assert.Error(t, err)
}

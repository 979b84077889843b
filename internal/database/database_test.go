package database

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLite(t *testing.T) *DB {
	t.Helper()
	db, err := New(context.Background(), "sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRebind(t *testing.T) {
	q := "UPDATE users SET email = ?, password_hash = ? WHERE id = ?"

	assert.Equal(t, "UPDATE users SET email = $1, password_hash = $2 WHERE id = $3", Postgres.Rebind(q))
	assert.Equal(t, q, SQLite.Rebind(q))
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, ":memory:?_time_format=sqlite", sqliteDSN(":memory:"))
	assert.Equal(t, "file:x?mode=memory&_time_format=sqlite", sqliteDSN("file:x?mode=memory"))
	assert.Equal(t, "app.db?_time_format=sqlite", sqliteDSN("app.db?_time_format=sqlite"))
}

func TestNew_UnsupportedDriver(t *testing.T) {
	_, err := New(context.Background(), "mysql", "dsn")
	assert.ErrorContains(t, err, "unsupported database driver")
}

func TestMigrate_SQLite(t *testing.T) {
	db := newSQLite(t)
	ctx := context.Background()

	require.NoError(t, Migrate(ctx, db))
	// Second run is a no-op.
	require.NoError(t, Migrate(ctx, db))

	for _, table := range []string{"users", "events"} {
		var name string
		err := db.QueryRowContext(ctx, `SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		require.NoError(t, err)
		assert.Equal(t, table, name)
	}

	_, err := db.ExecContext(ctx, `INSERT INTO users (id, email, password_hash, created_at, updated_at) VALUES ('1', 'a@b.com', 'h', '2024-01-01', '2024-01-01')`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO users (id, email, password_hash, created_at, updated_at) VALUES ('2', 'a@b.com', 'h', '2024-01-01', '2024-01-01')`)
	assert.Error(t, err, "email must be unique")
}

func TestWithTx(t *testing.T) {
	db := newSQLite(t)
	ctx := context.Background()
	_, err := db.ExecContext(ctx, `CREATE TABLE t (id INTEGER PRIMARY KEY, v TEXT)`)
	require.NoError(t, err)

	count := func() int {
		var n int
		require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM t`).Scan(&n))
		return n
	}

	err = WithTx(ctx, db.DB, func(ctx context.Context, tx DBTX) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO t (v) VALUES ('a')`)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, count())

	boom := errors.New("boom")
	err = WithTx(ctx, db.DB, func(ctx context.Context, tx DBTX) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO t (v) VALUES ('b')`); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, count())

	assert.Panics(t, func() {
		_ = WithTx(ctx, db.DB, func(ctx context.Context, tx DBTX) error {
			_, _ = tx.ExecContext(ctx, `INSERT INTO t (v) VALUES ('c')`)
			panic("kaboom")
		})
	})
	assert.Equal(t, 1, count())
}

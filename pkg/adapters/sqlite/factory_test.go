package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quailbot/quail/pkg/adapters/sqlite"
	"github.com/quailbot/quail/pkg/domain"
)

func newTestFactory(t *testing.T) *sqlite.Factory {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "quail_test.db")
	f, err := sqlite.Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })

	ctx := context.Background()
	require.NoError(t, f.Ping(ctx))

	sess, err := f.Begin(ctx)
	require.NoError(t, err)
	_, err = sess.ExecContext(ctx, `CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL)`)
	require.NoError(t, err)
	require.NoError(t, sess.Commit())

	return f
}

func TestFactory_CommitPersists(t *testing.T) {
	f := newTestFactory(t)
	ctx := context.Background()

	sess, err := f.Begin(ctx)
	require.NoError(t, err)
	_, err = sess.ExecContext(ctx, `INSERT INTO users (id, name) VALUES (1, 'ada')`)
	require.NoError(t, err)
	require.NoError(t, sess.Commit())

	check, err := f.Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = check.Rollback() }()

	var name string
	require.NoError(t, check.QueryRowContext(ctx, `SELECT name FROM users WHERE id = 1`).Scan(&name))
	assert.Equal(t, "ada", name)
}

func TestFactory_RollbackDiscards(t *testing.T) {
	f := newTestFactory(t)
	ctx := context.Background()

	sess, err := f.Begin(ctx)
	require.NoError(t, err)
	_, err = sess.ExecContext(ctx, `INSERT INTO users (id, name) VALUES (2, 'ghost')`)
	require.NoError(t, err)
	require.NoError(t, sess.Rollback())

	check, err := f.Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = check.Rollback() }()

	var count int
	require.NoError(t, check.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE id = 2`).Scan(&count))
	assert.Zero(t, count)
}

func TestFactory_RollbackAfterCommitIsNoop(t *testing.T) {
	f := newTestFactory(t)
	ctx := context.Background()

	sess, err := f.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, sess.Commit())
	assert.NoError(t, sess.Rollback())
	assert.Error(t, sess.Commit(), "double commit must fail")
}

func TestFactory_PoolReturnsToBaseline(t *testing.T) {
	f := newTestFactory(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		sess, err := f.Begin(ctx)
		require.NoError(t, err)
		_, err = sess.ExecContext(ctx, `SELECT 1`)
		require.NoError(t, err)
		if i%2 == 0 {
			require.NoError(t, sess.Commit())
		} else {
			require.NoError(t, sess.Rollback())
		}
	}

	assert.Zero(t, f.Stats().InUse, "all connections must be back in the pool")
}

func TestFactory_ClosedFactoryRejectsBegin(t *testing.T) {
	f := newTestFactory(t)
	require.NoError(t, f.Close())
	require.NoError(t, f.Close(), "second close is a no-op")

	_, err := f.Begin(context.Background())
	assert.True(t, errors.Is(err, domain.ErrBackendClosed))
	assert.ErrorIs(t, f.Ping(context.Background()), domain.ErrBackendClosed)
}

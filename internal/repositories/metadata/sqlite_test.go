package metadata

import (
	"context"
	"database/sql"
	"testing"

	"github.com/dmitrijs2005/tweetrelay/internal/common"
	"github.com/dmitrijs2005/tweetrelay/internal/migrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, migrations.Up(context.Background(), db, "sqlite"))
	return db
}

func TestSQLiteSetAndGet(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	_, err := r.Get(ctx, "k1")
	require.ErrorIs(t, err, common.ErrorNotFound)

	require.NoError(t, r.Set(ctx, "k1", "a"))
	v, err := r.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, "a", v)

	require.NoError(t, r.Set(ctx, "k1", "b"))
	v, err = r.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, "b", v)
}

package errorlog

import (
	"context"
	"database/sql"
	"testing"
	"time"

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

func TestSQLiteAppendAndRecent(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	for i, cat := range []string{"main_cycle", "account_processing", "maintenance"} {
		r.now = func() time.Time { return base.Add(time.Duration(i) * time.Minute) }
		require.NoError(t, r.Append(ctx, cat, "msg "+cat, map[string]any{"n": i}))
	}

	recs, err := r.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "maintenance", recs[0].Category)
	assert.Equal(t, "account_processing", recs[1].Category)
	assert.Equal(t, map[string]any{"n": float64(1)}, recs[1].Context)
	assert.True(t, base.Add(time.Minute).Equal(recs[1].CreatedAt))
}

func TestSQLitePruneOlderThan(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()
	now := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)

	r.now = func() time.Time { return now.AddDate(0, 0, -8) }
	require.NoError(t, r.Append(ctx, "main_cycle", "old", nil))
	r.now = func() time.Time { return now.AddDate(0, 0, -1) }
	require.NoError(t, r.Append(ctx, "main_cycle", "fresh", nil))

	r.now = func() time.Time { return now }
	n, err := r.PruneOlderThan(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	recs, err := r.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "fresh", recs[0].Message)
	assert.Nil(t, recs[0].Context)
}

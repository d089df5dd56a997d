package metadata

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/tweetrelay/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewPostgresRepository(db), mock, db
}

func TestPostgresGet(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT value FROM metadata WHERE key = \$1`).
		WithArgs("k").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("v"))
	mock.ExpectQuery(`SELECT value FROM metadata WHERE key = \$1`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`SELECT value FROM metadata`).
		WillReturnError(errors.New("down"))

	v, err := repo.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)

	_, err = repo.Get(context.Background(), "missing")
	require.ErrorIs(t, err, common.ErrorNotFound)

	_, err = repo.Get(context.Background(), "k")
	require.EqualError(t, err, "db error: down")
}

func TestPostgresSet_Upserts(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO metadata \(key, value\) VALUES \(\$1, \$2\) ON CONFLICT \(key\) DO UPDATE SET value = EXCLUDED\.value`).
		WithArgs("maintenance.last_pruned_at", "2024-06-01T03:00:00Z").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Set(context.Background(), "maintenance.last_pruned_at", "2024-06-01T03:00:00Z"))
	require.NoError(t, mock.ExpectationsWereMet())
}

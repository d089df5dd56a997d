package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/tweetrelay/internal/common"
	"github.com/dmitrijs2005/tweetrelay/internal/dbx"
	"github.com/dmitrijs2005/tweetrelay/internal/models"
)

const sqliteColumns = `id, username, COALESCE(twitter_id, ''), telegram_channel_id,
	COALESCE(last_tweet_id, ''), is_active, created_at, updated_at`

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) ListActive(ctx context.Context) ([]*models.MonitoredAccount, error) {
	return r.list(ctx, `SELECT `+sqliteColumns+` FROM twitter_accounts WHERE is_active = 1 ORDER BY username`)
}

func (r *SQLiteRepository) ListAll(ctx context.Context) ([]*models.MonitoredAccount, error) {
	return r.list(ctx, `SELECT `+sqliteColumns+` FROM twitter_accounts ORDER BY username`)
}

func (r *SQLiteRepository) list(ctx context.Context, query string) ([]*models.MonitoredAccount, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var result []*models.MonitoredAccount
	for rows.Next() {
		a, err := scanSQLite(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate account rows: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, handle string) (*models.MonitoredAccount, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sqliteColumns+` FROM twitter_accounts WHERE username = ?`, handle)
	a, err := scanSQLite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	return a, err
}

func (r *SQLiteRepository) Upsert(ctx context.Context, handle, channel, sourceID string) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO twitter_accounts (username, telegram_channel_id, twitter_id)
		VALUES (?, ?, NULLIF(?, ''))
		ON CONFLICT(username) DO UPDATE SET
			telegram_channel_id = excluded.telegram_channel_id,
			twitter_id = COALESCE(excluded.twitter_id, twitter_accounts.twitter_id),
			updated_at = CURRENT_TIMESTAMP
		RETURNING id
	`, handle, channel, sourceID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert account %s: %w", handle, err)
	}
	return id, nil
}

func (r *SQLiteRepository) SetCursor(ctx context.Context, id int64, postID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE twitter_accounts SET last_tweet_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, postID, id)
	return checkUpdated(res, err)
}

func (r *SQLiteRepository) SetActive(ctx context.Context, id int64, active bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE twitter_accounts SET is_active = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, active, id)
	return checkUpdated(res, err)
}

func scanSQLite(s rowScanner) (*models.MonitoredAccount, error) {
	var (
		a                models.MonitoredAccount
		created, updated dbx.SQLiteTime
	)
	err := s.Scan(&a.ID, &a.Handle, &a.SourceID, &a.Channel, &a.Cursor, &a.Active, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan account row: %w", err)
	}
	a.CreatedAt, a.UpdatedAt = created.Time, updated.Time
	return &a, nil
}

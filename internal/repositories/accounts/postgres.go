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

const pgColumns = `id, username, COALESCE(twitter_id, ''), telegram_channel_id,
	COALESCE(last_tweet_id, ''), is_active, created_at, updated_at`

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) ListActive(ctx context.Context) ([]*models.MonitoredAccount, error) {
	return r.list(ctx, `SELECT `+pgColumns+` FROM twitter_accounts WHERE is_active = true ORDER BY username`)
}

func (r *PostgresRepository) ListAll(ctx context.Context) ([]*models.MonitoredAccount, error) {
	return r.list(ctx, `SELECT `+pgColumns+` FROM twitter_accounts ORDER BY username`)
}

func (r *PostgresRepository) list(ctx context.Context, query string) ([]*models.MonitoredAccount, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.MonitoredAccount
	for rows.Next() {
		a, err := scanPostgres(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) Get(ctx context.Context, handle string) (*models.MonitoredAccount, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+pgColumns+` FROM twitter_accounts WHERE username = $1`, handle)
	a, err := scanPostgres(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *PostgresRepository) Upsert(ctx context.Context, handle, channel, sourceID string) (int64, error) {
	query := `
		INSERT INTO twitter_accounts (username, telegram_channel_id, twitter_id)
		VALUES ($1, $2, NULLIF($3, ''))
		ON CONFLICT (username)
		DO UPDATE SET
			telegram_channel_id = EXCLUDED.telegram_channel_id,
			twitter_id = COALESCE(EXCLUDED.twitter_id, twitter_accounts.twitter_id),
			updated_at = NOW()
		RETURNING id`
	var id int64
	if err := r.db.QueryRowContext(ctx, query, handle, channel, sourceID).Scan(&id); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return id, nil
}

func (r *PostgresRepository) SetCursor(ctx context.Context, id int64, postID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE twitter_accounts SET last_tweet_id = $1, updated_at = NOW() WHERE id = $2`, postID, id)
	return checkUpdated(res, err)
}

func (r *PostgresRepository) SetActive(ctx context.Context, id int64, active bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE twitter_accounts SET is_active = $1, updated_at = NOW() WHERE id = $2`, active, id)
	return checkUpdated(res, err)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPostgres(s rowScanner) (*models.MonitoredAccount, error) {
	var a models.MonitoredAccount
	err := s.Scan(&a.ID, &a.Handle, &a.SourceID, &a.Channel, &a.Cursor, &a.Active, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan account: %w", err)
	}
	return &a, nil
}

func checkUpdated(res sql.Result, err error) error {
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

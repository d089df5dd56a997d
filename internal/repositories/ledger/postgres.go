package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/tweetrelay/internal/dbx"
	"github.com/dmitrijs2005/tweetrelay/internal/models"
)

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Exists(ctx context.Context, postID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM published_tweets WHERE tweet_id = $1)`, postID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

func (r *PostgresRepository) Insert(ctx context.Context, rec *models.PublicationRecord) error {
	publishedAt := rec.PublishedAt
	if publishedAt.IsZero() {
		publishedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO published_tweets (tweet_id, account_id, telegram_message_id, telegram_channel_id, published_at, tweet_data)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (tweet_id) DO NOTHING`
	_, err := r.db.ExecContext(ctx, query,
		rec.PostID, rec.AccountID, rec.DeliveryID, rec.Channel, publishedAt, payloadArg(rec.Payload))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) CountPublished(ctx context.Context, accountID *int64) (int64, error) {
	var (
		n   int64
		err error
	)
	if accountID == nil {
		err = r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM published_tweets`).Scan(&n)
	} else {
		err = r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM published_tweets WHERE account_id = $1`, *accountID).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) PruneOlderThan(ctx context.Context, days int) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM published_tweets WHERE published_at < NOW() - ($1 * INTERVAL '1 day')`, days)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM published_tweets WHERE published_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) ListOlderThan(ctx context.Context, cutoff time.Time) ([]*models.PublicationRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT tweet_id, COALESCE(account_id, 0), COALESCE(telegram_message_id, 0),
			COALESCE(telegram_channel_id, ''), published_at, COALESCE(tweet_data::text, '')
		FROM published_tweets WHERE published_at < $1 ORDER BY published_at`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to select publications: %w", err)
	}
	defer rows.Close()

	var result []*models.PublicationRecord
	for rows.Next() {
		var (
			rec     models.PublicationRecord
			payload string
		)
		if err := rows.Scan(&rec.PostID, &rec.AccountID, &rec.DeliveryID, &rec.Channel, &rec.PublishedAt, &payload); err != nil {
			return nil, err
		}
		if payload != "" {
			rec.Payload = []byte(payload)
		}
		result = append(result, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return result, nil
}

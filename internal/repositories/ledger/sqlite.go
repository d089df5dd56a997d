package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/tweetrelay/internal/dbx"
	"github.com/dmitrijs2005/tweetrelay/internal/models"
)

// SQLiteRepository stores timestamps as UTC text, so age cutoffs are computed
// here rather than with SQLite date functions.
type SQLiteRepository struct {
	db  dbx.DBTX
	now func() time.Time
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

func (r *SQLiteRepository) Exists(ctx context.Context, postID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM published_tweets WHERE tweet_id = ?)`, postID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check publication %s: %w", postID, err)
	}
	return exists, nil
}

func (r *SQLiteRepository) Insert(ctx context.Context, rec *models.PublicationRecord) error {
	publishedAt := rec.PublishedAt
	if publishedAt.IsZero() {
		publishedAt = r.now()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO published_tweets (tweet_id, account_id, telegram_message_id, telegram_channel_id, published_at, tweet_data)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(tweet_id) DO NOTHING
	`, rec.PostID, rec.AccountID, rec.DeliveryID, rec.Channel, dbx.SQLiteTimestamp(publishedAt), payloadArg(rec.Payload))
	if err != nil {
		return fmt.Errorf("failed to insert publication %s: %w", rec.PostID, err)
	}
	return nil
}

func (r *SQLiteRepository) CountPublished(ctx context.Context, accountID *int64) (int64, error) {
	var (
		n   int64
		err error
	)
	if accountID == nil {
		err = r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM published_tweets`).Scan(&n)
	} else {
		err = r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM published_tweets WHERE account_id = ?`, *accountID).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count publications: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) PruneOlderThan(ctx context.Context, days int) (int64, error) {
	return r.PruneBefore(ctx, r.now().AddDate(0, 0, -days))
}

func (r *SQLiteRepository) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM published_tweets WHERE published_at < ?`, dbx.SQLiteTimestamp(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to prune publications: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) ListOlderThan(ctx context.Context, cutoff time.Time) ([]*models.PublicationRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT tweet_id, COALESCE(account_id, 0), COALESCE(telegram_message_id, 0),
			COALESCE(telegram_channel_id, ''), published_at, COALESCE(tweet_data, '')
		FROM published_tweets WHERE published_at < ? ORDER BY published_at
	`, dbx.SQLiteTimestamp(cutoff))
	if err != nil {
		return nil, fmt.Errorf("failed to list publications: %w", err)
	}
	defer rows.Close()

	var result []*models.PublicationRecord
	for rows.Next() {
		var (
			rec         models.PublicationRecord
			publishedAt dbx.SQLiteTime
			payload     string
		)
		if err := rows.Scan(&rec.PostID, &rec.AccountID, &rec.DeliveryID, &rec.Channel, &publishedAt, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan publication row: %w", err)
		}
		rec.PublishedAt = publishedAt.Time
		if payload != "" {
			rec.Payload = []byte(payload)
		}
		result = append(result, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate publication rows: %w", err)
	}
	return result, nil
}

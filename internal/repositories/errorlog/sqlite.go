package errorlog

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/tweetrelay/internal/dbx"
	"github.com/dmitrijs2005/tweetrelay/internal/models"
)

type SQLiteRepository struct {
	db  dbx.DBTX
	now func() time.Time
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

func (r *SQLiteRepository) Append(ctx context.Context, category, message string, errCtx map[string]any) error {
	data, err := encodeContext(errCtx)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO error_logs (error_type, error_message, error_data, created_at) VALUES (?, ?, ?, ?)`,
		category, message, data, dbx.SQLiteTimestamp(r.now()))
	if err != nil {
		return fmt.Errorf("failed to append error record: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) PruneOlderThan(ctx context.Context, days int) (int64, error) {
	cutoff := r.now().AddDate(0, 0, -days)
	res, err := r.db.ExecContext(ctx, `DELETE FROM error_logs WHERE created_at < ?`, dbx.SQLiteTimestamp(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to prune error records: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) Recent(ctx context.Context, limit int) ([]*models.ErrorRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, COALESCE(error_type, ''), COALESCE(error_message, ''), COALESCE(error_data, ''), created_at
		FROM error_logs ORDER BY created_at DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list error records: %w", err)
	}
	defer rows.Close()

	var result []*models.ErrorRecord
	for rows.Next() {
		var (
			rec       models.ErrorRecord
			data      string
			createdAt dbx.SQLiteTime
		)
		if err := rows.Scan(&rec.ID, &rec.Category, &rec.Message, &data, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan error row: %w", err)
		}
		rec.CreatedAt = createdAt.Time
		rec.Context = decodeContext(data)
		result = append(result, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate error rows: %w", err)
	}
	return result, nil
}

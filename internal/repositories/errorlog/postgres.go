package errorlog

import (
	"context"
	"fmt"

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

func (r *PostgresRepository) Append(ctx context.Context, category, message string, errCtx map[string]any) error {
	data, err := encodeContext(errCtx)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO error_logs (error_type, error_message, error_data) VALUES ($1, $2, $3)`,
		category, message, data)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) PruneOlderThan(ctx context.Context, days int) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM error_logs WHERE created_at < NOW() - ($1 * INTERVAL '1 day')`, days)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) Recent(ctx context.Context, limit int) ([]*models.ErrorRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, COALESCE(error_type, ''), COALESCE(error_message, ''), COALESCE(error_data::text, ''), created_at
		FROM error_logs ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.ErrorRecord
	for rows.Next() {
		var (
			rec  models.ErrorRecord
			data string
		)
		if err := rows.Scan(&rec.ID, &rec.Category, &rec.Message, &data, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Context = decodeContext(data)
		result = append(result, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return result, nil
}

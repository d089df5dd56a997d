// Package errorlog persists diagnostic error records. Records are append-only
// and pruned by age; the relay never reads them back.
package errorlog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/tweetrelay/internal/models"
)

type Repository interface {
	Append(ctx context.Context, category, message string, context map[string]any) error
	PruneOlderThan(ctx context.Context, days int) (int64, error)
	// Recent returns up to limit records, newest first.
	Recent(ctx context.Context, limit int) ([]*models.ErrorRecord, error)
}

func encodeContext(c map[string]any) (any, error) {
	if len(c) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode error context: %w", err)
	}
	return string(b), nil
}

func decodeContext(s string) map[string]any {
	if s == "" {
		return nil
	}
	var c map[string]any
	if err := json.Unmarshal([]byte(s), &c); err != nil {
		return map[string]any{"raw": s}
	}
	return c
}

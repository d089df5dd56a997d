// Package ledger records which posts were delivered and where. A post id is
// stored at most once.
package ledger

import (
	"context"
	"time"

	"github.com/dmitrijs2005/tweetrelay/internal/models"
)

type Repository interface {
	Exists(ctx context.Context, postID string) (bool, error)
	// Insert stores rec; inserting an already recorded post id is a no-op.
	Insert(ctx context.Context, rec *models.PublicationRecord) error
	// CountPublished counts records for one account, or all when accountID is nil.
	CountPublished(ctx context.Context, accountID *int64) (int64, error)
	// PruneOlderThan deletes records published more than days ago and
	// returns how many were removed.
	PruneOlderThan(ctx context.Context, days int) (int64, error)
	// PruneBefore deletes records published before cutoff, matching what
	// ListOlderThan returned for the same cutoff.
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
	ListOlderThan(ctx context.Context, cutoff time.Time) ([]*models.PublicationRecord, error)
}

func payloadArg(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

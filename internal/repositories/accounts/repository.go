// Package accounts stores the monitored source accounts and their delivery
// cursors.
package accounts

import (
	"context"

	"github.com/dmitrijs2005/tweetrelay/internal/models"
)

type Repository interface {
	// ListActive returns the accounts to poll, ordered by handle.
	ListActive(ctx context.Context) ([]*models.MonitoredAccount, error)
	ListAll(ctx context.Context) ([]*models.MonitoredAccount, error)
	// Get returns common.ErrorNotFound when no account has the handle.
	Get(ctx context.Context, handle string) (*models.MonitoredAccount, error)
	// Upsert creates the account or updates its channel (and source id, when
	// given). New accounts are active and have no cursor.
	Upsert(ctx context.Context, handle, channel, sourceID string) (int64, error)
	SetCursor(ctx context.Context, id int64, postID string) error
	SetActive(ctx context.Context, id int64, active bool) error
}

// Package models defines the relay's persisted records and the post shape
// exchanged between sources, the relay core and publishers.
package models

import "time"

// MonitoredAccount is a source account whose posts are forwarded to a channel.
type MonitoredAccount struct {
	// ID is the storage-assigned identifier.
	ID int64
	// Handle is the unique source-side account name (e.g. "alice").
	Handle string
	// SourceID is the optional numeric id the source uses for the account.
	SourceID string
	// Channel is the destination chat ("@name" or a numeric chat id).
	Channel string
	// Cursor is the id of the most recently delivered post; empty when nothing
	// has been delivered yet.
	Cursor string
	// Active accounts are polled; inactive ones are kept but skipped.
	Active bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasCursor reports whether a post has been delivered for the account.
func (a *MonitoredAccount) HasCursor() bool {
	return a.Cursor != ""
}

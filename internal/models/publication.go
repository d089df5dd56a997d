package models

import "time"

// PublicationRecord is a ledger entry: post PostID was delivered to Channel as
// message DeliveryID. PostID is globally unique.
type PublicationRecord struct {
	PostID      string
	AccountID   int64
	DeliveryID  int64
	Channel     string
	PublishedAt time.Time
	// Payload is the JSON-encoded post kept for audit.
	Payload []byte
}

// ErrorRecord is an append-only diagnostic entry.
type ErrorRecord struct {
	ID        int64
	Category  string
	Message   string
	Context   map[string]any
	CreatedAt time.Time
}

package models

import "time"

// MediaKind is the type of an attached media item.
type MediaKind string

const (
	MediaPhoto     MediaKind = "photo"
	MediaVideo     MediaKind = "video"
	MediaAnimation MediaKind = "animation"
)

// Media describes one attachment of a post.
type Media struct {
	Kind MediaKind `json:"type"`
	URL  string    `json:"url"`
}

// Post is a normalized source post. Posts are ephemeral: produced by a source,
// consumed by the relay and discarded; only a JSON copy survives in the ledger.
type Post struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	Author     string    `json:"author"`
	AuthorName string    `json:"author_name"`
	Text       string    `json:"text"`
	URL        string    `json:"url"`
	Media      []Media   `json:"media,omitempty"`

	Likes   int `json:"likes"`
	Reposts int `json:"retweets"`
	Replies int `json:"replies"`

	IsRepost  bool   `json:"is_retweet"`
	IsQuote   bool   `json:"is_quote"`
	InReplyTo string `json:"reply_to,omitempty"`
}

// HasStats reports whether any engagement counter is set.
func (p *Post) HasStats() bool {
	return p.Likes > 0 || p.Reposts > 0 || p.Replies > 0
}

// Continues reports whether p is a self-reply to prev, i.e. the next post of
// the same author's thread.
func (p *Post) Continues(prev *Post) bool {
	return prev != nil && p.InReplyTo != "" && p.InReplyTo == prev.ID && p.Author == prev.Author
}

package source

import (
	"testing"
	"time"

	"github.com/dmitrijs2005/tweetrelay/internal/models"
	"github.com/stretchr/testify/assert"
)

func ids(posts []models.Post) []string {
	out := make([]string, 0, len(posts))
	for _, p := range posts {
		out = append(out, p.ID)
	}
	return out
}

func postsWithIDs(list ...string) []models.Post {
	out := make([]models.Post, 0, len(list))
	for _, id := range list {
		out = append(out, models.Post{ID: id})
	}
	return out
}

func TestChronological_ReversesWithoutTouchingInput(t *testing.T) {
	in := postsWithIDs("105", "104", "103")
	got := Chronological(in)

	assert.Equal(t, []string{"103", "104", "105"}, ids(got))
	assert.Equal(t, []string{"105", "104", "103"}, ids(in))
	assert.Empty(t, Chronological(nil))
}

func TestNewer(t *testing.T) {
	newer, ok := Newer("1000", "999")
	assert.True(t, ok)
	assert.True(t, newer)

	newer, ok = Newer("999", "1000")
	assert.True(t, ok)
	assert.False(t, newer)

	_, ok = Newer("abc", "1")
	assert.False(t, ok)
}

func TestSortNewestFirst(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	posts := []models.Post{
		{ID: "99"},
		{ID: "1001"},
		{ID: "x-old", CreatedAt: base},
		{ID: "x-new", CreatedAt: base.Add(time.Hour)},
	}
	SortNewestFirst(posts[:2])
	assert.Equal(t, []string{"1001", "99"}, ids(posts[:2]), "numeric, not lexical")

	SortNewestFirst(posts[2:])
	assert.Equal(t, []string{"x-new", "x-old"}, ids(posts[2:]))
}

func TestTrimSince(t *testing.T) {
	batch := postsWithIDs("105", "104", "103", "102")

	tests := []struct {
		name  string
		since string
		want  []string
	}{
		{"no cursor", "", []string{"105", "104", "103", "102"}},
		{"cursor in batch", "103", []string{"105", "104"}},
		{"cursor is newest", "105", []string{}},
		{"cursor newer than batch", "1000", []string{}},
		{"cursor older than batch", "100", []string{"105", "104", "103", "102"}},
		{"non-numeric cursor not in batch", "abc", []string{"105", "104", "103", "102"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ids(TrimSince(batch, tc.since)))
		})
	}
}

func TestTrimSince_CursorPostMissing(t *testing.T) {
	batch := postsWithIDs("110", "108", "104")
	assert.Equal(t, []string{"110", "108"}, ids(TrimSince(batch, "106")))
}

func TestLimit(t *testing.T) {
	batch := postsWithIDs("3", "2", "1")
	assert.Len(t, Limit(batch, 2), 2)
	assert.Len(t, Limit(batch, 0), 3)
	assert.Len(t, Limit(batch, 10), 3)
}

func TestStatusID(t *testing.T) {
	assert.Equal(t, "123", StatusID("https://x.com/alice/status/123#m"))
	assert.Equal(t, "456", StatusID("/alice/status/456"))
	assert.Equal(t, "", StatusID("https://x.com/alice"))
	assert.Equal(t, "https://twitter.com/alice/status/7", StatusURL("alice", "7"))
}

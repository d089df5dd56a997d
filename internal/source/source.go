// Package source defines how posts are retrieved from third-party providers
// and the ordering helpers shared by every provider adapter.
package source

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"

	"github.com/dmitrijs2005/tweetrelay/internal/models"
)

// Adapter retrieves recent posts of one account.
//
// Fetch returns at most limit posts newer than since (all recent posts when
// since is empty), ordered newest first. It may return fewer posts than exist;
// any failure is reported as a single error.
type Adapter interface {
	Fetch(ctx context.Context, handle, since string, limit int) ([]models.Post, error)
}

// AdapterFunc lets a plain function act as an Adapter.
type AdapterFunc func(ctx context.Context, handle, since string, limit int) ([]models.Post, error)

func (f AdapterFunc) Fetch(ctx context.Context, handle, since string, limit int) ([]models.Post, error) {
	return f(ctx, handle, since, limit)
}

// StatusError is returned by HTTP-based adapters for non-2xx responses.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.StatusCode)
}

// Chronological returns a copy of a newest-first batch in oldest-first order.
func Chronological(newestFirst []models.Post) []models.Post {
	out := make([]models.Post, len(newestFirst))
	for i, p := range newestFirst {
		out[len(newestFirst)-1-i] = p
	}
	return out
}

// Newer reports whether post id a was created after post id b. Numeric
// (snowflake) ids are compared as numbers; ok is false when either id is not
// numeric.
func Newer(a, b string) (newer bool, ok bool) {
	x, errA := strconv.ParseUint(a, 10, 64)
	y, errB := strconv.ParseUint(b, 10, 64)
	if errA != nil || errB != nil {
		return false, false
	}
	return x > y, true
}

// SortNewestFirst orders posts newest first, by numeric id when both ids are
// numeric and by creation time otherwise. The sort is stable.
func SortNewestFirst(posts []models.Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		if newer, ok := Newer(posts[i].ID, posts[j].ID); ok {
			return newer
		}
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})
}

// TrimSince keeps the posts of a newest-first batch that precede the cursor
// post. When ids are numeric, posts not newer than since are dropped even if
// the cursor post itself is missing from the batch.
func TrimSince(newestFirst []models.Post, since string) []models.Post {
	if since == "" {
		return newestFirst
	}
	for i, p := range newestFirst {
		if p.ID == since {
			return newestFirst[:i]
		}
		if newer, ok := Newer(p.ID, since); ok && !newer {
			return newestFirst[:i]
		}
	}
	return newestFirst
}

// Limit truncates posts to at most n items; n <= 0 means no limit.
func Limit(posts []models.Post, n int) []models.Post {
	if n > 0 && len(posts) > n {
		return posts[:n]
	}
	return posts
}

var statusIDRe = regexp.MustCompile(`/status(?:es)?/(\d+)`)

// StatusID extracts the post id from a status URL such as
// https://x.com/alice/status/123#m.
func StatusID(link string) string {
	if m := statusIDRe.FindStringSubmatch(link); m != nil {
		return m[1]
	}
	return ""
}

// StatusURL builds the canonical link to a post.
func StatusURL(handle, id string) string {
	return "https://twitter.com/" + handle + "/status/" + id
}

// Package publisher holds what every destination shares: the rate-limit
// signal and a retry wrapper around the relay's sink contracts that honours
// the destination's cooldown.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/tweetrelay/internal/logging"
	"github.com/dmitrijs2005/tweetrelay/internal/models"
	"github.com/dmitrijs2005/tweetrelay/internal/relay"
	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
)

// RateLimitError signals that the destination asked to wait RetryAfter
// before sending again.
type RateLimitError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s: %v", e.RetryAfter, e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Retrying re-sends after a RateLimitError, waiting the requested cooldown,
// at most maxRetries times. Other errors are returned immediately.
type Retrying struct {
	next       relay.Sink
	maxRetries int
	log        logging.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

// RetryingThreads is a Retrying wrapper around a ThreadSink.
type RetryingThreads struct {
	*Retrying
	threads relay.ThreadSink
}

// WithRetry wraps next. The result implements ThreadSink only when next does.
func WithRetry(next relay.Sink, maxRetries int, log logging.Logger) relay.Sink {
	if maxRetries < 0 {
		maxRetries = 0
	}
	r := &Retrying{
		next:       next,
		maxRetries: maxRetries,
		log:        log.With("module", "publisher"),
		sleep:      Sleep,
	}
	if ts, ok := next.(relay.ThreadSink); ok {
		return &RetryingThreads{Retrying: r, threads: ts}
	}
	return r
}

func (r *Retrying) Publish(ctx context.Context, post *models.Post, channel string) (int64, error) {
	return r.do(ctx, post.ID, func() (int64, error) {
		return r.next.Publish(ctx, post, channel)
	})
}

func (r *RetryingThreads) PublishThread(ctx context.Context, posts []models.Post, channel string) (int64, error) {
	if len(posts) == 0 {
		return 0, errors.New("empty thread")
	}
	return r.do(ctx, posts[0].ID, func() (int64, error) {
		return r.threads.PublishThread(ctx, posts, channel)
	})
}

func (r *Retrying) do(ctx context.Context, postID string, send func() (int64, error)) (int64, error) {
	policy := retrypolicy.NewBuilder[int64]().
		HandleIf(func(_ int64, err error) bool {
			var rl *RateLimitError
			return errors.As(err, &rl)
		}).
		WithMaxRetries(r.maxRetries).
		ReturnLastFailure().
		Build()

	var wait time.Duration
	return failsafe.With(policy).WithContext(ctx).Get(func() (int64, error) {
		if wait > 0 {
			if err := r.sleep(ctx, wait); err != nil {
				return 0, err
			}
		}
		id, err := send()
		var rl *RateLimitError
		if errors.As(err, &rl) {
			wait = rl.RetryAfter
			r.log.Warn(ctx, "destination rate limit", "post_id", postID, "retry_after", rl.RetryAfter)
		}
		return id, err
	})
}

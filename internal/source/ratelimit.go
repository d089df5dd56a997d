package source

import (
	"context"

	"github.com/dmitrijs2005/tweetrelay/internal/models"
	"golang.org/x/time/rate"
)

// RateLimited paces calls to the wrapped adapter.
type RateLimited struct {
	next    Adapter
	limiter *rate.Limiter
}

// NewRateLimited allows perSecond fetches per second with the given burst.
// A non-positive perSecond disables pacing.
func NewRateLimited(next Adapter, perSecond float64, burst int) *RateLimited {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{next: next, limiter: rate.NewLimiter(limit, burst)}
}

func (r *RateLimited) Fetch(ctx context.Context, handle, since string, limit int) ([]models.Post, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.next.Fetch(ctx, handle, since, limit)
}

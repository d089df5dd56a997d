package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/tweetrelay/internal/logging"
	"github.com/dmitrijs2005/tweetrelay/internal/models"
)

type namedAdapter struct {
	name string
	Adapter
}

// Chain tries adapters in order. The first adapter that returns a non-empty
// batch wins; an adapter that fails is skipped. Fetch fails only when every
// adapter failed.
type Chain struct {
	adapters []namedAdapter
	log      logging.Logger
}

func NewChain(log logging.Logger) *Chain {
	return &Chain{log: log.With("module", "source")}
}

// Add appends an adapter to the chain.
func (c *Chain) Add(name string, a Adapter) *Chain {
	c.adapters = append(c.adapters, namedAdapter{name: name, Adapter: a})
	return c
}

// Len returns the number of configured adapters.
func (c *Chain) Len() int {
	return len(c.adapters)
}

func (c *Chain) Fetch(ctx context.Context, handle, since string, limit int) ([]models.Post, error) {
	if len(c.adapters) == 0 {
		return nil, errors.New("no source adapters configured")
	}

	var (
		errs      []error
		succeeded bool
	)
	for _, a := range c.adapters {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		posts, err := a.Fetch(ctx, handle, since, limit)
		if err != nil {
			c.log.Warn(ctx, "source failed", "source", a.name, "handle", handle, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", a.name, err))
			continue
		}
		succeeded = true
		if len(posts) > 0 {
			c.log.Debug(ctx, "source returned posts", "source", a.name, "handle", handle, "count", len(posts))
			return posts, nil
		}
	}
	if succeeded {
		return nil, nil
	}
	return nil, errors.Join(errs...)
}

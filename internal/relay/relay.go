// Package relay is the polling core: it walks the monitored accounts, pulls
// each backlog from a source, drops posts that were already delivered and
// publishes the rest oldest first, advancing the account cursor after every
// confirmed delivery.
package relay

import (
	"context"
	"time"

	"github.com/dmitrijs2005/tweetrelay/internal/models"
)

// Sink delivers a post to a channel and returns the destination message id.
// Implementations handle destination rate limits themselves.
type Sink interface {
	Publish(ctx context.Context, post *models.Post, channel string) (int64, error)
}

// ThreadSink is a Sink that can deliver a self-reply chain as one message.
type ThreadSink interface {
	Sink
	PublishThread(ctx context.Context, posts []models.Post, channel string) (int64, error)
}

// Options are the pacing and feature settings of the core.
type Options struct {
	PollInterval    time.Duration
	FailureCooldown time.Duration
	AccountDelay    time.Duration
	PostDelay       time.Duration
	BatchSize       int
	EnableThreads   bool
}

// CycleReport summarises one cycle.
type CycleReport struct {
	ID        string
	Accounts  int
	Published int
	Failed    int
	Duration  time.Duration
}

// Observer receives relay events, typically to export metrics.
type Observer interface {
	CycleFinished(r CycleReport, err error)
	PostsPublished(handle string, n int)
	DuplicateSkipped(handle string)
	AccountFailed(handle, reason string)
	MaintenanceFinished(r MaintenanceReport, err error)
}

type nopObserver struct{}

func (nopObserver) CycleFinished(CycleReport, error)             {}
func (nopObserver) PostsPublished(string, int)                   {}
func (nopObserver) DuplicateSkipped(string)                      {}
func (nopObserver) AccountFailed(string, string)                 {}
func (nopObserver) MaintenanceFinished(MaintenanceReport, error) {}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
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

// Package twitterapi reads account timelines from the twitterapi.io REST API.
package twitterapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/tweetrelay/internal/logging"
	"github.com/dmitrijs2005/tweetrelay/internal/models"
	"github.com/dmitrijs2005/tweetrelay/internal/source"
	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
)

const timelinePath = "/twitter/user/last_tweets"

// ErrNoAPIKey is returned by Fetch when the adapter has no API key.
var ErrNoAPIKey = errors.New("twitterapi: API key not configured")

type Options struct {
	BaseURL    string
	APIKey     string
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Client     *http.Client
}

type Adapter struct {
	opts     Options
	executor failsafe.Executor[*timelineResponse]
	log      logging.Logger
}

func New(opts Options, log logging.Logger) *Adapter {
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 20 * time.Second}
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 500 * time.Millisecond
	}
	if opts.MaxDelay < opts.BaseDelay {
		opts.MaxDelay = 10 * opts.BaseDelay
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")

	retry := retrypolicy.NewBuilder[*timelineResponse]().
		HandleIf(func(_ *timelineResponse, err error) bool {
			return retryable(err)
		}).
		WithBackoff(opts.BaseDelay, opts.MaxDelay).
		WithMaxRetries(opts.MaxRetries).
		ReturnLastFailure().
		Build()

	return &Adapter{
		opts:     opts,
		executor: failsafe.With(retry),
		log:      log.With("module", "source.twitterapi"),
	}
}

func (a *Adapter) Fetch(ctx context.Context, handle, since string, limit int) ([]models.Post, error) {
	if a.opts.APIKey == "" {
		return nil, ErrNoAPIKey
	}

	resp, err := a.executor.WithContext(ctx).Get(func() (*timelineResponse, error) {
		return a.get(ctx, handle)
	})
	if err != nil {
		return nil, err
	}

	raw := resp.Tweets
	if resp.Data != nil && len(resp.Data.Tweets) > 0 {
		raw = resp.Data.Tweets
	}
	posts := make([]models.Post, 0, len(raw))
	for _, t := range raw {
		if t.ID == "" {
			continue
		}
		posts = append(posts, t.toPost(handle))
	}
	source.SortNewestFirst(posts)
	return source.Limit(source.TrimSince(posts, since), limit), nil
}

func (a *Adapter) get(ctx context.Context, handle string) (*timelineResponse, error) {
	q := url.Values{}
	q.Set("userName", handle)
	endpoint := a.opts.BaseURL + timelinePath + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-Key", a.opts.APIKey)
	req.Header.Set("Accept", "application/json")

	res, err := a.opts.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", timelinePath, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, res.Body)
		return nil, &source.StatusError{URL: timelinePath, StatusCode: res.StatusCode}
	}

	var body timelineResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode timeline: %w", err)
	}
	if body.Status != "" && body.Status != "success" {
		return nil, fmt.Errorf("twitterapi: %s", firstNonEmpty(body.Message, body.Msg, body.Status))
	}
	return &body, nil
}

// retryable reports whether a failed request is worth repeating: transport
// errors, rate limiting and server-side failures.
func retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *source.StatusError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusTooManyRequests || se.StatusCode >= 500
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

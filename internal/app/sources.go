package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/tweetrelay/internal/config"
	"github.com/dmitrijs2005/tweetrelay/internal/logging"
	"github.com/dmitrijs2005/tweetrelay/internal/source"
	"github.com/dmitrijs2005/tweetrelay/internal/source/nitter"
	"github.com/dmitrijs2005/tweetrelay/internal/source/rss"
	"github.com/dmitrijs2005/tweetrelay/internal/source/twitterapi"
)

// NewSource builds the fallback chain named by cfg.Sources, paced to
// cfg.SourceRate requests per second.
func NewSource(cfg *config.Config, client *http.Client, log logging.Logger) (source.Adapter, error) {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	chain := source.NewChain(log)
	for _, name := range cfg.Sources {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "twitterapi":
			if cfg.TwitterAPIKey == "" {
				log.Warn(context.Background(), "TWITTERAPI_KEY not set, skipping source", "source", name)
				continue
			}
			chain.Add("twitterapi", twitterapi.New(twitterapi.Options{
				BaseURL:    cfg.TwitterAPIBaseURL,
				APIKey:     cfg.TwitterAPIKey,
				MaxRetries: 2,
				Client:     client,
			}, log))
		case "rss":
			chain.Add("rss", rss.New(cfg.RSSURLTemplates, client, log))
		case "nitter":
			chain.Add("nitter", nitter.New(cfg.NitterInstances, client, log))
		default:
			return nil, fmt.Errorf("unknown source %q", name)
		}
	}
	if chain.Len() == 0 {
		return nil, fmt.Errorf("no usable source among %v", cfg.Sources)
	}
	return source.NewRateLimited(chain, cfg.SourceRate, 1), nil
}

// Package config loads the relay settings: built-in defaults, then a .env
// file, an optional config file and the environment, then command-line flags.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/tweetrelay/internal/dbx"
)

// Config holds runtime settings for the relay and the account CLI.
type Config struct {
	TelegramToken string

	// DatabaseDriver is dbx.DriverPostgres or dbx.DriverSQLite.
	DatabaseDriver string
	DatabaseURL    string

	PollInterval    time.Duration
	FetchBatchSize  int
	AccountDelay    time.Duration
	PostDelay       time.Duration
	FailureCooldown time.Duration

	TweetRetentionDays  int
	ErrorRetentionDays  int
	MaintenanceSchedule string

	EnableMedia       bool
	EnableThreads     bool
	PublishMaxRetries int

	// Sources lists adapter names in fallback order.
	Sources           []string
	TwitterAPIKey     string
	TwitterAPIBaseURL string
	RSSURLTemplates   []string
	NitterInstances   []string
	// SourceRate caps outgoing source requests per second; 0 means unlimited.
	SourceRate float64

	MetricsAddr string
	HealthAddr  string

	ArchiveS3Bucket    string
	ArchiveS3Region    string
	ArchiveS3Endpoint  string
	ArchiveS3AccessKey string
	ArchiveS3SecretKey string

	LogLevel string
}

// LoadDefaults populates Config with development defaults.
func (c *Config) LoadDefaults() {
	c.DatabaseDriver = dbx.DriverSQLite
	c.DatabaseURL = "file:data/tweetrelay.db?_pragma=foreign_keys(1)"
	c.PollInterval = 300 * time.Second
	c.FetchBatchSize = 20
	c.AccountDelay = 5 * time.Second
	c.PostDelay = 2 * time.Second
	c.FailureCooldown = 600 * time.Second
	c.TweetRetentionDays = 30
	c.ErrorRetentionDays = 7
	c.MaintenanceSchedule = "0 3 * * *"
	c.EnableMedia = true
	c.EnableThreads = true
	c.PublishMaxRetries = 2
	c.Sources = []string{"twitterapi", "rss", "nitter"}
	c.TwitterAPIBaseURL = "https://api.twitterapi.io"
	c.RSSURLTemplates = []string{"https://rsshub.app/twitter/user/{username}"}
	c.NitterInstances = []string{"https://nitter.net", "https://nitter.poast.org"}
	c.SourceRate = 1
	c.MetricsAddr = ":8000"
	c.HealthAddr = ":50051"
	c.ArchiveS3Region = "us-east-1"
	c.LogLevel = "INFO"
}

// Load builds a Config from defaults, the environment (including .env), an
// optional config file named by -c/-config, and flags found in args.
func Load(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := loadDotEnv(); err != nil {
		return nil, err
	}
	if err := parseEnv(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings the relay process needs to start.
func (c *Config) Validate() error {
	var errs []error
	if c.TelegramToken == "" {
		errs = append(errs, errors.New("TELEGRAM_BOT_TOKEN is required"))
	}
	if _, err := dbx.GooseDialect(c.DatabaseDriver); err != nil {
		errs = append(errs, err)
	}
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("POLL_INTERVAL must be positive, got %s", c.PollInterval))
	}
	if c.FailureCooldown <= c.PollInterval {
		errs = append(errs, fmt.Errorf("FAILURE_COOLDOWN (%s) must be longer than POLL_INTERVAL (%s)", c.FailureCooldown, c.PollInterval))
	}
	if c.FetchBatchSize <= 0 {
		errs = append(errs, fmt.Errorf("FETCH_BATCH_SIZE must be positive, got %d", c.FetchBatchSize))
	}
	if c.PublishMaxRetries < 0 {
		errs = append(errs, fmt.Errorf("PUBLISH_MAX_RETRIES must not be negative, got %d", c.PublishMaxRetries))
	}
	if len(c.Sources) == 0 {
		errs = append(errs, errors.New("SOURCES must name at least one adapter"))
	}
	return errors.Join(errs...)
}

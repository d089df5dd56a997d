package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/tweetrelay/internal/flagx"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// dotEnvFiles are loaded in order; variables already set are not overridden.
var dotEnvFiles = []string{".env"}

func loadDotEnv() error {
	for _, f := range dotEnvFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// parseEnv overlays values from the optional config file and the environment.
// Keys are the lower-cased env names, so POLL_INTERVAL in the environment and
// poll_interval in a YAML/JSON file address the same setting. The
// environment wins over the file.
func parseEnv(cfg *Config, args []string) error {
	v := viper.New()
	v.AutomaticEnv()

	if path := flagx.ConfigFileFlag(args); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	str := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	list := func(key string, dst *[]string) {
		if v.IsSet(key) {
			*dst = splitList(v.GetStringSlice(key))
		}
	}

	var errs []error
	num := func(key string, dst *int) {
		if !v.IsSet(key) {
			return
		}
		n, err := strconv.Atoi(strings.TrimSpace(v.GetString(key)))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", strings.ToUpper(key), err))
			return
		}
		*dst = n
	}
	dur := func(key string, dst *time.Duration) {
		if !v.IsSet(key) {
			return
		}
		d, err := parseSeconds(v.GetString(key))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", strings.ToUpper(key), err))
			return
		}
		*dst = d
	}
	flag := func(key string, dst *bool) {
		if !v.IsSet(key) {
			return
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v.GetString(key)))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", strings.ToUpper(key), err))
			return
		}
		*dst = b
	}

	str("telegram_bot_token", &cfg.TelegramToken)
	str("database_driver", &cfg.DatabaseDriver)
	str("database_url", &cfg.DatabaseURL)
	dur("poll_interval", &cfg.PollInterval)
	num("fetch_batch_size", &cfg.FetchBatchSize)
	dur("account_delay", &cfg.AccountDelay)
	dur("post_delay", &cfg.PostDelay)
	dur("failure_cooldown", &cfg.FailureCooldown)
	num("tweet_retention_days", &cfg.TweetRetentionDays)
	num("error_retention_days", &cfg.ErrorRetentionDays)
	str("maintenance_schedule", &cfg.MaintenanceSchedule)
	flag("enable_media", &cfg.EnableMedia)
	flag("enable_threads", &cfg.EnableThreads)
	num("publish_max_retries", &cfg.PublishMaxRetries)
	list("sources", &cfg.Sources)
	str("twitterapi_key", &cfg.TwitterAPIKey)
	str("twitterapi_base_url", &cfg.TwitterAPIBaseURL)
	list("rss_url_templates", &cfg.RSSURLTemplates)
	list("nitter_instances", &cfg.NitterInstances)
	if v.IsSet("source_rate") {
		r, err := strconv.ParseFloat(strings.TrimSpace(v.GetString("source_rate")), 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("SOURCE_RATE: %w", err))
		} else {
			cfg.SourceRate = r
		}
	}
	str("metrics_addr", &cfg.MetricsAddr)
	str("health_addr", &cfg.HealthAddr)
	str("archive_s3_bucket", &cfg.ArchiveS3Bucket)
	str("archive_s3_region", &cfg.ArchiveS3Region)
	str("archive_s3_endpoint", &cfg.ArchiveS3Endpoint)
	str("archive_s3_access_key", &cfg.ArchiveS3AccessKey)
	str("archive_s3_secret_key", &cfg.ArchiveS3SecretKey)
	str("log_level", &cfg.LogLevel)

	return errors.Join(errs...)
}

// parseSeconds accepts either a bare number of seconds ("300", "1.5") or a Go
// duration ("5m", "2s").
func parseSeconds(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(f * float64(time.Second)), nil
	}
	return time.ParseDuration(s)
}

// splitList flattens comma- and whitespace-separated items, dropping empties.
func splitList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

package config

import (
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/tweetrelay/internal/flagx"
)

// parseFlags applies command-line overrides.
//
//	-d string   database URL
//	-i int      poll interval, seconds
//	-l string   log level
//	-m string   metrics listen address ("" disables)
//	-g string   gRPC health listen address ("" disables)
func parseFlags(cfg *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-d", "-i", "-l", "-m", "-g"})

	fs := flag.NewFlagSet("relay", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.DatabaseURL, "d", cfg.DatabaseURL, "database URL")
	interval := fs.Int("i", int(cfg.PollInterval.Seconds()), "poll interval (in seconds)")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")
	fs.StringVar(&cfg.MetricsAddr, "m", cfg.MetricsAddr, "metrics listen address")
	fs.StringVar(&cfg.HealthAddr, "g", cfg.HealthAddr, "health listen address")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "i" {
			cfg.PollInterval = time.Duration(*interval) * time.Second
		}
	})
	return nil
}

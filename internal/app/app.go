// Package app wires configuration, storage, sources and the Telegram sink
// into a running relay and handles process shutdown.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/tweetrelay/internal/archive"
	"github.com/dmitrijs2005/tweetrelay/internal/config"
	"github.com/dmitrijs2005/tweetrelay/internal/health"
	"github.com/dmitrijs2005/tweetrelay/internal/logging"
	"github.com/dmitrijs2005/tweetrelay/internal/metrics"
	"github.com/dmitrijs2005/tweetrelay/internal/publisher"
	"github.com/dmitrijs2005/tweetrelay/internal/publisher/telegram"
	"github.com/dmitrijs2005/tweetrelay/internal/relay"
	"github.com/dmitrijs2005/tweetrelay/internal/repositories/repomanager"
)

// Version is set at build time with -ldflags "-X ...app.Version=...".
var Version = "dev"

type pinger interface {
	Ping(ctx context.Context) (string, error)
}

type App struct {
	config    *config.Config
	logger    logging.Logger
	db        *sql.DB
	telegram  pinger
	scheduler *relay.Scheduler
	collector *metrics.Collector
	health    *health.Server
}

// NewApp opens the database (applying migrations) and builds every
// component. Nothing is contacted besides the database.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := logging.New(os.Stdout, cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	db, rm, err := repomanager.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	app, err := build(ctx, cfg, logger, db, rm)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return app, nil
}

func build(ctx context.Context, cfg *config.Config, logger logging.Logger, db *sql.DB, rm repomanager.RepositoryManager) (*App, error) {
	tg, err := telegram.New(cfg.TelegramToken, telegram.Options{EnableMedia: cfg.EnableMedia}, logger)
	if err != nil {
		return nil, err
	}
	src, err := NewSource(cfg, nil, logger)
	if err != nil {
		return nil, err
	}

	collector := metrics.NewCollector(Version)
	opts := relay.Options{
		PollInterval:    cfg.PollInterval,
		FailureCooldown: cfg.FailureCooldown,
		AccountDelay:    cfg.AccountDelay,
		PostDelay:       cfg.PostDelay,
		BatchSize:       cfg.FetchBatchSize,
		EnableThreads:   cfg.EnableThreads,
	}
	sink := publisher.WithRetry(tg, cfg.PublishMaxRetries, logger)
	proc := relay.NewProcessor(src, sink, rm.Accounts(db), rm.Ledger(db), opts, logger).WithObserver(collector)

	maint, err := relay.NewMaintenance(db, rm, relay.MaintenanceOptions{
		Schedule:            cfg.MaintenanceSchedule,
		LedgerRetentionDays: cfg.TweetRetentionDays,
		ErrorRetentionDays:  cfg.ErrorRetentionDays,
	}, logger)
	if err != nil {
		return nil, err
	}
	if cfg.ArchiveS3Bucket != "" {
		arch, err := archive.New(ctx, archive.Options{
			Bucket:    cfg.ArchiveS3Bucket,
			Region:    cfg.ArchiveS3Region,
			Endpoint:  cfg.ArchiveS3Endpoint,
			AccessKey: cfg.ArchiveS3AccessKey,
			SecretKey: cfg.ArchiveS3SecretKey,
		}, logger)
		if err != nil {
			return nil, err
		}
		maint.WithArchiver(arch)
	}

	sched := relay.NewScheduler(rm.Accounts(db), rm.ErrorLog(db), proc, opts, logger).
		WithMaintenance(maint).
		WithObserver(collector)

	app := &App{
		config:    cfg,
		logger:    logger,
		db:        db,
		telegram:  tg,
		scheduler: sched,
		collector: collector,
	}
	if cfg.HealthAddr != "" {
		app.health = health.NewServer(cfg.HealthAddr, logger)
	}
	return app, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run checks the Telegram token, then runs the scheduler together with the
// metrics and health endpoints until a signal arrives or ctx is done.
func (app *App) Run(ctx context.Context) error {
	defer app.db.Close()

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()
	app.initSignalHandler(cancelFunc)

	bot, err := app.telegram.Ping(ctx)
	if err != nil {
		return fmt.Errorf("telegram connectivity check failed: %w", err)
	}
	app.logger.Info(ctx, "starting relay", "bot", bot, "version", Version)

	var wg sync.WaitGroup

	if app.config.MetricsAddr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := metrics.Serve(ctx, app.config.MetricsAddr, app.collector, app.logger); err != nil {
				app.logger.Error(ctx, "metrics server failed", "error", err)
			}
		}()
	}

	if app.health != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := app.health.Run(ctx); err != nil {
				app.logger.Error(ctx, "health server failed", "error", err)
			}
		}()
		app.health.SetServing(true)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		app.scheduler.Stop()
	}()

	err = app.scheduler.Run(ctx)
	if app.health != nil {
		app.health.SetServing(false)
	}
	cancelFunc()
	wg.Wait()

	app.logger.Info(context.WithoutCancel(ctx), "relay stopped")
	return err
}

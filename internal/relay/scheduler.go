package relay

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/tweetrelay/internal/logging"
	"github.com/dmitrijs2005/tweetrelay/internal/models"
	"github.com/dmitrijs2005/tweetrelay/internal/repositories/accounts"
	"github.com/dmitrijs2005/tweetrelay/internal/repositories/errorlog"
	"github.com/google/uuid"
)

// AccountProcessor is implemented by *Processor.
type AccountProcessor interface {
	ProcessAccount(ctx context.Context, acct *models.MonitoredAccount) (int, error)
}

// Scheduler runs poll cycles until stopped. A Scheduler runs once: after
// Stop or context cancellation it cannot be restarted.
type Scheduler struct {
	accounts    accounts.Repository
	errors      errorlog.Repository
	processor   AccountProcessor
	maintenance Maintainer
	opts        Options
	log         logging.Logger
	observer    Observer

	running atomic.Bool
	mu      sync.Mutex
	cancel  context.CancelFunc

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

func NewScheduler(accts accounts.Repository, errs errorlog.Repository, proc AccountProcessor, opts Options, log logging.Logger) *Scheduler {
	s := &Scheduler{
		accounts:  accts,
		errors:    errs,
		processor: proc,
		opts:      opts,
		log:       log.With("module", "scheduler"),
		observer:  nopObserver{},
		sleep:     sleep,
		now:       time.Now,
	}
	s.running.Store(true)
	return s
}

func (s *Scheduler) WithMaintenance(m Maintainer) *Scheduler {
	s.maintenance = m
	return s
}

func (s *Scheduler) WithObserver(o Observer) *Scheduler {
	s.observer = o
	return s
}

// Running reports whether the scheduler has not been stopped.
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

// Stop asks Run to return. The account being processed is finished first.
func (s *Scheduler) Stop() {
	s.running.Store(false)
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
}

// Run executes cycles separated by the poll interval, or by the failure
// cooldown after a failed cycle, until ctx is done or Stop is called.
func (s *Scheduler) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
	defer s.running.Store(false)

	s.log.Info(ctx, "scheduler started", "poll_interval", s.opts.PollInterval)
	for s.running.Load() && ctx.Err() == nil {
		wait := s.opts.PollInterval
		if _, err := s.RunCycle(ctx); err != nil {
			wait = s.opts.FailureCooldown
			s.log.Warn(ctx, "cooling down after failed cycle", "cooldown", wait)
		}
		if !s.running.Load() {
			break
		}
		if err := s.sleep(ctx, wait); err != nil {
			break
		}
	}
	s.log.Info(context.WithoutCancel(ctx), "scheduler stopped")
	return nil
}

// RunCycle runs maintenance when due and then processes every active
// account. Per-account failures are recorded and do not stop the fan-out;
// storage failures abort the cycle and are returned as *MainCycleError.
func (s *Scheduler) RunCycle(ctx context.Context) (CycleReport, error) {
	report := CycleReport{ID: uuid.NewString()}
	log := s.log.With("cycle_id", report.ID)
	start := s.now()

	s.maintain(ctx, log)

	err := s.fanOut(ctx, log, &report)
	report.Duration = s.now().Sub(start)
	if err != nil {
		err = &MainCycleError{CycleID: report.ID, Err: err}
		log.Error(ctx, "cycle failed", "error", err)
		s.record(ctx, log, CategoryMainCycle, err, map[string]any{"cycle_id": report.ID})
	} else {
		log.Info(ctx, "cycle finished",
			"accounts", report.Accounts, "published", report.Published, "failed", report.Failed,
			"duration", report.Duration)
	}
	s.observer.CycleFinished(report, err)
	return report, err
}

func (s *Scheduler) fanOut(ctx context.Context, log logging.Logger, report *CycleReport) error {
	accts, err := s.accounts.ListActive(ctx)
	if err != nil {
		return err
	}
	if len(accts) == 0 {
		log.Info(ctx, "no active accounts")
		return nil
	}

	for i, acct := range accts {
		if !s.running.Load() || ctx.Err() != nil {
			log.Info(ctx, "stop requested, deferring remaining accounts", "remaining", len(accts)-i)
			return nil
		}

		report.Accounts++
		// an account is never abandoned half way
		n, err := s.processor.ProcessAccount(context.WithoutCancel(ctx), acct)
		report.Published += n
		if err != nil {
			reason, ok := accountFailure(err)
			if !ok {
				return err
			}
			report.Failed++
			log.Warn(ctx, "account processing failed", "handle", acct.Handle, "error", err)
			s.observer.AccountFailed(acct.Handle, reason)
			details := map[string]any{"handle": acct.Handle}
			var pe *PublishError
			if errors.As(err, &pe) {
				details["post_id"] = pe.PostID
			}
			s.record(ctx, log, CategoryAccountProcessing, err, details)
		}

		if i < len(accts)-1 {
			if err := s.sleep(ctx, s.opts.AccountDelay); err != nil {
				log.Info(ctx, "stop requested, deferring remaining accounts", "remaining", len(accts)-i-1)
				return nil
			}
		}
	}
	return nil
}

// accountFailure reports whether err is confined to one account, and names
// its kind.
func accountFailure(err error) (string, bool) {
	var fe *SourceFetchError
	if errors.As(err, &fe) {
		return "fetch", true
	}
	var pe *PublishError
	if errors.As(err, &pe) {
		return "publish", true
	}
	return "", false
}

func (s *Scheduler) maintain(ctx context.Context, log logging.Logger) {
	if s.maintenance == nil || !s.running.Load() {
		return
	}
	ctx = context.WithoutCancel(ctx)
	now := s.now()

	due, err := s.maintenance.Due(ctx, now)
	if err == nil && !due {
		return
	}
	var rep MaintenanceReport
	if err == nil {
		rep, err = s.maintenance.Run(ctx, now)
	}
	s.observer.MaintenanceFinished(rep, err)
	if err != nil {
		log.Error(ctx, "maintenance failed", "error", err)
		s.record(ctx, log, CategoryMaintenance, err, nil)
	}
}

func (s *Scheduler) record(ctx context.Context, log logging.Logger, category string, err error, details map[string]any) {
	if aerr := s.errors.Append(context.WithoutCancel(ctx), category, err.Error(), details); aerr != nil {
		log.Error(ctx, "failed to store error record", "category", category, "error", aerr)
	}
}

package relay

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/tweetrelay/internal/common"
	"github.com/dmitrijs2005/tweetrelay/internal/dbx"
	"github.com/dmitrijs2005/tweetrelay/internal/logging"
	"github.com/dmitrijs2005/tweetrelay/internal/models"
	"github.com/dmitrijs2005/tweetrelay/internal/repositories/errorlog"
	"github.com/dmitrijs2005/tweetrelay/internal/repositories/ledger"
	"github.com/dmitrijs2005/tweetrelay/internal/repositories/metadata"
	"github.com/robfig/cron/v3"
)

// LastPrunedKey is the metadata key holding the time of the last
// maintenance run (RFC 3339, UTC).
const LastPrunedKey = "maintenance.last_pruned_at"

// Archiver copies ledger records somewhere durable before they are pruned.
type Archiver interface {
	Archive(ctx context.Context, recs []*models.PublicationRecord) error
}

// Maintainer runs periodic housekeeping between cycles.
type Maintainer interface {
	Due(ctx context.Context, now time.Time) (bool, error)
	Run(ctx context.Context, now time.Time) (MaintenanceReport, error)
}

type MaintenanceOptions struct {
	// Schedule is a standard five-field cron expression, optionally
	// prefixed with CRON_TZ=<zone>.
	Schedule            string
	LedgerRetentionDays int
	ErrorRetentionDays  int
}

type MaintenanceReport struct {
	Archived     int
	LedgerPruned int64
	ErrorsPruned int64
}

// Repositories vends the repositories maintenance needs, bound to either the
// database or a transaction.
type Repositories interface {
	Ledger(db dbx.DBTX) ledger.Repository
	ErrorLog(db dbx.DBTX) errorlog.Repository
	Metadata(db dbx.DBTX) metadata.Repository
}

// Maintenance prunes old ledger and error records on a cron schedule. The
// time of the last run is persisted, so a run missed while the process was
// down happens at the next cycle and a run is never repeated within one
// scheduled period.
type Maintenance struct {
	db       *sql.DB
	repos    Repositories
	archiver Archiver
	schedule cron.Schedule
	opts     MaintenanceOptions
	log      logging.Logger
}

func NewMaintenance(db *sql.DB, repos Repositories, opts MaintenanceOptions, log logging.Logger) (*Maintenance, error) {
	sched, err := cron.ParseStandard(opts.Schedule)
	if err != nil {
		return nil, fmt.Errorf("invalid maintenance schedule %q: %w", opts.Schedule, err)
	}
	return &Maintenance{
		db:       db,
		repos:    repos,
		schedule: sched,
		opts:     opts,
		log:      log.With("module", "maintenance"),
	}, nil
}

// WithArchiver makes Run export expiring ledger records first.
func (m *Maintenance) WithArchiver(a Archiver) *Maintenance {
	m.archiver = a
	return m
}

// Due reports whether a scheduled run has come up since the last one.
func (m *Maintenance) Due(ctx context.Context, now time.Time) (bool, error) {
	v, err := m.repos.Metadata(m.db).Get(ctx, LastPrunedKey)
	if errors.Is(err, common.ErrorNotFound) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("read maintenance marker: %w", err)
	}
	last, err := time.Parse(time.RFC3339, v)
	if err != nil {
		m.log.Warn(ctx, "unreadable maintenance marker, running now", "value", v)
		return true, nil
	}
	return !m.schedule.Next(last).After(now), nil
}

// Run archives (when configured) and prunes expired records, then stores now
// as the marker. Pruning and the marker commit together; nothing is pruned
// when archiving fails. With an archiver the ledger is pruned by the same
// cutoff the archived rows were selected with.
func (m *Maintenance) Run(ctx context.Context, now time.Time) (MaintenanceReport, error) {
	var rep MaintenanceReport

	err := dbx.WithTx(ctx, m.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		led := m.repos.Ledger(tx)

		var (
			n   int64
			err error
		)
		if m.archiver != nil {
			cutoff := now.AddDate(0, 0, -m.opts.LedgerRetentionDays)
			if rep.Archived, err = m.archive(ctx, led, cutoff); err != nil {
				return err
			}
			n, err = led.PruneBefore(ctx, cutoff)
		} else {
			n, err = led.PruneOlderThan(ctx, m.opts.LedgerRetentionDays)
		}
		if err != nil {
			return fmt.Errorf("prune publications: %w", err)
		}
		rep.LedgerPruned = n

		n, err = m.repos.ErrorLog(tx).PruneOlderThan(ctx, m.opts.ErrorRetentionDays)
		if err != nil {
			return fmt.Errorf("prune error log: %w", err)
		}
		rep.ErrorsPruned = n

		if err := m.repos.Metadata(tx).Set(ctx, LastPrunedKey, now.UTC().Format(time.RFC3339)); err != nil {
			return fmt.Errorf("write maintenance marker: %w", err)
		}
		return nil
	})
	if err != nil {
		return MaintenanceReport{}, err
	}

	m.log.Info(ctx, "maintenance finished",
		"archived", rep.Archived, "publications_pruned", rep.LedgerPruned, "errors_pruned", rep.ErrorsPruned)
	return rep, nil
}

func (m *Maintenance) archive(ctx context.Context, led ledger.Repository, cutoff time.Time) (int, error) {
	recs, err := led.ListOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("list expiring publications: %w", err)
	}
	if len(recs) == 0 {
		return 0, nil
	}
	if err := m.archiver.Archive(ctx, recs); err != nil {
		return 0, fmt.Errorf("archive publications: %w", err)
	}
	return len(recs), nil
}

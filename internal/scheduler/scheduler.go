// Package scheduler runs the periodic billing jobs: the invoicing sweep, the
// overdue marking and the monthly period close. A Redis lock keeps a tick to
// one replica.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"settlement-platform/internal/billing"
	"settlement-platform/internal/invoice"
	"settlement-platform/pkg/logger"

	"github.com/robfig/cron/v3"
)

// Billing is the part of billing.Service the jobs drive.
type Billing interface {
	Sweep(ctx context.Context) (billing.SweepReport, error)
	MarkOverdue(ctx context.Context) ([]invoice.Invoice, error)
	ClosePeriod(ctx context.Context, month time.Time, dryRun bool) (billing.CloseReport, error)
	Location() *time.Location
}

// Locker takes an expiring lock. utils.RedisLocker implements it.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}

type Config struct {
	SweepSchedule   string
	OverdueSchedule string
	// CloseSchedule closes the previous month. Empty disables the job.
	CloseSchedule string
	LockTTL         time.Duration
	// JobTimeout bounds one run of a job.
	JobTimeout time.Duration
}

const (
	sweepLockKey   = "settlement:lock:sweep"
	overdueLockKey = "settlement:lock:overdue"
	closeLockKey   = "settlement:lock:period_close"
)

type Jobs struct {
	billing Billing
	locker  Locker
	cfg     Config
	log     *slog.Logger
	now     func() time.Time
}

func NewJobs(b Billing, locker Locker, cfg Config, log *slog.Logger) *Jobs {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 5 * time.Minute
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = cfg.LockTTL
	}
	return &Jobs{billing: b, locker: locker, cfg: cfg, log: log, now: time.Now}
}

// RunSweep invoices every customer with pending units. It returns false when
// another replica holds the lock.
func (j *Jobs) RunSweep(ctx context.Context) bool {
	return j.locked(ctx, sweepLockKey, "sweep", func(ctx context.Context) error {
		_, err := j.billing.Sweep(ctx)
		return err
	})
}

func (j *Jobs) RunOverdue(ctx context.Context) bool {
	return j.locked(ctx, overdueLockKey, "overdue", func(ctx context.Context) error {
		_, err := j.billing.MarkOverdue(ctx)
		return err
	})
}

// RunClose bills the previous business month's units that no invoicing
// window covered.
func (j *Jobs) RunClose(ctx context.Context) bool {
	loc := j.billing.Location()
	prev := billing.PeriodStart(j.now(), loc).AddDate(0, -1, 0)
	return j.locked(ctx, closeLockKey, "period_close", func(ctx context.Context) error {
		rep, err := j.billing.ClosePeriod(ctx, prev, false)
		if err == nil && rep.Failed > 0 {
			return fmt.Errorf("period close %s: %d customers failed", prev.Format("2006-01"), rep.Failed)
		}
		return err
	})
}

func (j *Jobs) locked(ctx context.Context, key, job string, fn func(context.Context) error) bool {
	log := j.log.With("job", job)
	ctx, cancel := context.WithTimeout(logger.With(ctx, log), j.cfg.JobTimeout)
	defer cancel()

	release := func(context.Context) error { return nil }
	if j.locker != nil {
		rel, ok, err := j.locker.TryLock(ctx, key, j.cfg.LockTTL)
		if err != nil {
			log.Error("lock failed", "err", err)
			return false
		}
		if !ok {
			log.Debug("lock held elsewhere, skipping")
			return false
		}
		release = rel
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			log.Warn("lock release failed", "err", err)
		}
	}()

	start := time.Now()
	if err := fn(ctx); err != nil {
		log.Error("job failed", "err", err, "duration", time.Since(start))
		return true
	}
	log.Info("job finished", "duration", time.Since(start))
	return true
}

// Scheduler owns the cron runner.
type Scheduler struct {
	cron *cron.Cron
	jobs *Jobs
	cfg  Config
	log  *slog.Logger
}

func New(jobs *Jobs, cfg Config, log *slog.Logger) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(log.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger)))
	return &Scheduler{cron: c, jobs: jobs, cfg: cfg, log: log}
}

// Start registers the jobs and starts the cron runner. Invalid schedules are
// returned before anything starts.
func (s *Scheduler) Start(ctx context.Context) error {
	ctx = context.WithoutCancel(ctx)
	if _, err := s.cron.AddFunc(s.cfg.SweepSchedule, func() { s.jobs.RunSweep(ctx) }); err != nil {
		return err
	}
	s.log.Info("scheduled sweep job", "schedule", s.cfg.SweepSchedule)

	if _, err := s.cron.AddFunc(s.cfg.OverdueSchedule, func() { s.jobs.RunOverdue(ctx) }); err != nil {
		return err
	}
	s.log.Info("scheduled overdue job", "schedule", s.cfg.OverdueSchedule)

	if s.cfg.CloseSchedule != "" {
		if _, err := s.cron.AddFunc(s.cfg.CloseSchedule, func() { s.jobs.RunClose(ctx) }); err != nil {
			return err
		}
		s.log.Info("scheduled period close job", "schedule", s.cfg.CloseSchedule)
	}

	s.cron.Start()
	return nil
}

// Stop stops scheduling; the returned context is done when running jobs finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

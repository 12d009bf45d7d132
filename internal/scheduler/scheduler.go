package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"ETFSentinel/internal/engine"
	"ETFSentinel/internal/model"
)

// Jobs is what the scheduler triggers. *engine.Engine implements it.
type Jobs interface {
	AccrueDaily(ctx context.Context)
	Scan(ctx context.Context) (*model.CycleResult, error)
	ResetMonth(ctx context.Context)
	CheckMonthEnd(ctx context.Context)
	Heartbeat()
}

// Schedule holds one cron expression (with seconds) per job.
type Schedule struct {
	Accrual    string
	Scan       string
	MonthReset string
	MonthEnd   string
	Heartbeat  string
}

// Scheduler manages all cron tasks.
type Scheduler struct {
	Cron *cron.Cron
	Jobs Jobs
	Ctx  context.Context

	entries map[string]cron.EntryID
	log     zerolog.Logger
}

// NewScheduler creates a new Scheduler firing in loc. Overlapping runs of
// the same job are skipped.
func NewScheduler(ctx context.Context, jobs Jobs, loc *time.Location, log zerolog.Logger) *Scheduler {
	log = log.With().Str("component", "scheduler").Logger()
	cronLog := cron.PrintfLogger(&log)
	return &Scheduler{
		Cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(loc),
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
		Jobs:    jobs,
		Ctx:     ctx,
		entries: map[string]cron.EntryID{},
		log:     log,
	}
}

// RegisterAll registers the accrual, scan, month reset, month-end and
// heartbeat tasks.
func (s *Scheduler) RegisterAll(sched Schedule) error {
	tasks := []struct {
		name string
		spec string
		fn   func()
	}{
		{"accrual", sched.Accrual, s.accrualTask},
		{"scan", sched.Scan, s.scanTask},
		{"month_reset", sched.MonthReset, s.monthResetTask},
		{"month_end", sched.MonthEnd, s.monthEndTask},
		{"heartbeat", sched.Heartbeat, s.Jobs.Heartbeat},
	}
	for _, t := range tasks {
		id, err := s.Cron.AddFunc(t.spec, t.fn)
		if err != nil {
			return fmt.Errorf("register %s task: %w", t.name, err)
		}
		s.entries[t.name] = id
		s.log.Info().Str("task", t.name).Str("cron", t.spec).Msg("task registered")
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.log.Info().Msg("scheduler started")
}

// Stop stops the cron scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.log.Info().Msg("scheduler stopped")
}

// RunScanNow executes the scan task immediately (for manual trigger / RUN_ON_START).
func (s *Scheduler) RunScanNow() {
	s.scanTask()
}

// Next returns when the named task fires next. The zero time means the
// task is unknown or the scheduler is not running.
func (s *Scheduler) Next(name string) time.Time {
	id, ok := s.entries[name]
	if !ok {
		return time.Time{}
	}
	return s.Cron.Entry(id).Next
}

func (s *Scheduler) accrualTask() {
	s.log.Info().Msg("running daily accrual")
	s.Jobs.AccrueDaily(s.Ctx)
}

func (s *Scheduler) scanTask() {
	s.log.Info().Msg("running scan")
	if _, err := s.Jobs.Scan(s.Ctx); err != nil {
		if errors.Is(err, engine.ErrHoldingsUnavailable) {
			s.log.Error().Err(err).Msg("scan skipped, ledger of record unreachable")
			return
		}
		s.log.Error().Err(err).Msg("scan failed")
	}
}

func (s *Scheduler) monthResetTask() {
	s.log.Info().Msg("running monthly reset")
	s.Jobs.ResetMonth(s.Ctx)
}

func (s *Scheduler) monthEndTask() {
	s.Jobs.CheckMonthEnd(s.Ctx)
}

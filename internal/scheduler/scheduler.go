// Package scheduler triggers the monthly ingestion run on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
	_ "time/tzdata"

	"github.com/go-co-op/gocron"
	"github.com/smallbiznis/fundtrack/internal/clock"
	"github.com/smallbiznis/fundtrack/internal/fund/domain"
	"github.com/smallbiznis/fundtrack/internal/ingestion"
	obsmetrics "github.com/smallbiznis/fundtrack/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const JobMonthlyIngestion = "monthly_ingestion"

var (
	ErrInvalidConfig   = errors.New("invalid_scheduler_config")
	ErrInvalidTimezone = errors.New("invalid_scheduler_timezone")
	ErrInvalidSchedule = errors.New("invalid_scheduler_schedule")
)

// IngestionRunner is the part of ingestion.Runner the scheduler drives.
type IngestionRunner interface {
	Run(ctx context.Context, trigger ingestion.Trigger, month time.Time) (ingestion.Report, error)
}

type Params struct {
	fx.In

	Config  Config
	Runner  IngestionRunner
	Clock   clock.Clock
	Log     *zap.Logger
	Metrics *obsmetrics.SchedulerMetrics `optional:"true"`
}

type Scheduler struct {
	cfg     Config
	loc     *time.Location
	runner  IngestionRunner
	clock   clock.Clock
	log     *zap.Logger
	metrics *obsmetrics.SchedulerMetrics

	cron *gocron.Scheduler
	job  *gocron.Job

	mu        sync.RWMutex
	baseCtx   context.Context
	lastRun   *time.Time
	lastError string
}

// Status is the scheduler's externally visible state.
type Status struct {
	Enabled   bool       `json:"enabled"`
	Schedule  string     `json:"schedule"`
	Timezone  string     `json:"timezone"`
	NextRun   *time.Time `json:"next_run,omitempty"`
	LastRun   *time.Time `json:"last_run,omitempty"`
	LastError string     `json:"last_error,omitempty"`
}

func New(p Params) (*Scheduler, error) {
	if p.Runner == nil || p.Log == nil {
		return nil, ErrInvalidConfig
	}
	cfg := p.Config.withDefaults()

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidTimezone, cfg.Timezone, err)
	}

	clk := p.Clock
	if clk == nil {
		clk = clock.System{}
	}
	m := p.Metrics
	if m == nil {
		m = obsmetrics.Scheduler()
	}

	s := &Scheduler{
		cfg:     cfg,
		loc:     loc,
		runner:  p.Runner,
		clock:   clk,
		log:     p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		metrics: m,
		cron:    gocron.NewScheduler(loc),
		baseCtx: context.Background(),
	}

	job, err := s.cron.Cron(cfg.Schedule).SingletonMode().Do(s.tick)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidSchedule, cfg.Schedule, err)
	}
	s.job = job
	return s, nil
}

// Start begins firing the cron schedule. Jobs run with ctx as their parent.
func (s *Scheduler) Start(ctx context.Context) {
	if !s.cfg.Enabled {
		s.metrics.IncJobSkipped(JobMonthlyIngestion, obsmetrics.SchedulerSkipReasonDisabled)
		s.log.Info("scheduler disabled", zap.String("schedule", s.cfg.Schedule))
		return
	}
	s.mu.Lock()
	s.baseCtx = ctx
	s.mu.Unlock()

	s.cron.StartAsync()
	s.log.Info("scheduler started",
		zap.String("schedule", s.cfg.Schedule),
		zap.String("timezone", s.cfg.Timezone),
		zap.Time("next_run", s.job.NextRun()),
	)
}

func (s *Scheduler) Stop() {
	s.cron.Stop()
}

func (s *Scheduler) tick() {
	s.mu.RLock()
	ctx := s.baseCtx
	s.mu.RUnlock()

	if err := s.RunOnce(ctx); err != nil {
		s.log.Warn("scheduler run failed", zap.Error(err))
	}
}

// RunOnce runs the monthly ingestion job immediately.
func (s *Scheduler) RunOnce(parent context.Context) error {
	err := s.runJob(parent, JobMonthlyIngestion, s.cfg.JobTimeout, s.MonthlyIngestionJob)

	now := s.clock.Now()
	s.mu.Lock()
	s.lastRun = &now
	s.lastError = ""
	if err != nil {
		s.lastError = err.Error()
	}
	s.mu.Unlock()
	return err
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	timeout time.Duration,
	fn func(ctx context.Context, run *jobRun) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run := s.newJobRun(ctx, name)
	s.logJobStart(ctx, run)
	log := s.logger(ctx).With(
		zap.String("job", name),
		zap.String("job_run_id", run.runID),
	)
	s.metrics.IncJobRun(name)

	err := fn(ctx, run)
	s.metrics.ObserveJobDuration(name, s.clock.Now().Sub(start))
	if err != nil && run.errorCount == 0 {
		run.AddErrors(1)
	}
	s.logJobFinish(ctx, run)
	if err == nil {
		s.metrics.MarkSuccess(name, s.clock.Now())
		return nil
	}

	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		s.metrics.IncJobTimeout(name)
	}
	s.metrics.IncJobError(name, err)
	if isTimeout {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

// MonthlyIngestionJob ingests the last completed month, as seen on the
// scheduler's timezone calendar.
func (s *Scheduler) MonthlyIngestionJob(ctx context.Context, run *jobRun) error {
	target := domain.PreviousMonth(s.clock.Now(), s.loc)

	report, err := s.runner.Run(ctx, ingestion.TriggerCron, target)
	if errors.Is(err, ingestion.ErrRunInProgress) {
		s.metrics.IncJobSkipped(JobMonthlyIngestion, obsmetrics.SchedulerSkipReasonRunInProgress)
		s.logger(ctx).Info("scheduler.job.skipped",
			zap.String("job", JobMonthlyIngestion),
			zap.String("reason", obsmetrics.SchedulerSkipReasonRunInProgress),
		)
		return nil
	}

	run.AddProcessed(report.Result.Processed)
	run.AddErrors(len(report.Result.Errors))
	s.metrics.AddProcessed(JobMonthlyIngestion, "fund_record", report.Result.Processed)
	if err != nil {
		return err
	}
	if !report.Result.Success {
		return fmt.Errorf("ingestion for %s failed: %d of %d records errored",
			report.Month.Format("2006-01"), len(report.Result.Errors), report.Result.Total)
	}
	return nil
}

func (s *Scheduler) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := Status{
		Enabled:   s.cfg.Enabled,
		Schedule:  s.cfg.Schedule,
		Timezone:  s.cfg.Timezone,
		LastRun:   s.lastRun,
		LastError: s.lastError,
	}
	if s.cfg.Enabled && s.job != nil {
		if next := s.job.NextRun(); !next.IsZero() {
			status.NextRun = &next
		}
	}
	return status
}

package ingestion

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/fundtrack/internal/clock"
	"github.com/smallbiznis/fundtrack/internal/config"
	"github.com/smallbiznis/fundtrack/internal/fund/domain"
	obscontext "github.com/smallbiznis/fundtrack/internal/observability/context"
	obslogger "github.com/smallbiznis/fundtrack/internal/observability/logger"
	"github.com/smallbiznis/fundtrack/internal/observability/metrics"
	"github.com/smallbiznis/fundtrack/internal/runlock"
	"github.com/smallbiznis/fundtrack/internal/source"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Trigger string

const (
	TriggerCron Trigger = "cron"
	TriggerHTTP Trigger = "http"
	TriggerCLI  Trigger = "cli"
)

// Fetcher supplies a batch of provider records.
type Fetcher interface {
	FetchBatch(ctx context.Context) (source.Batch, error)
}

// Report describes one finished run.
type Report struct {
	RunID          string        `json:"run_id"`
	Trigger        Trigger       `json:"trigger"`
	Month          time.Time     `json:"month"`
	Fetched        int           `json:"fetched"`
	Skipped        int           `json:"skipped"`
	Rejected       int           `json:"rejected"`
	Attempts       int           `json:"attempts"`
	SourceWarnings []string      `json:"source_warnings,omitempty"`
	Result         BatchResult   `json:"result"`
	StartedAt      time.Time     `json:"started_at"`
	FinishedAt     time.Time     `json:"finished_at"`
	Duration       time.Duration `json:"duration"`
	Error          string        `json:"error,omitempty"`
}

// FailureRate is the share of the batch that ended in an error.
func (r Report) FailureRate() float64 {
	if r.Result.Total == 0 {
		return 0
	}
	return float64(len(r.Result.Errors)) / float64(r.Result.Total)
}

type RunnerParams struct {
	fx.In

	Config       config.Config
	Ingestion    *config.IngestionConfigHolder
	Fetcher      Fetcher
	Orchestrator *Orchestrator
	Locker       runlock.Locker
	Clock        clock.Clock
	Log          *zap.Logger
	Metrics      *metrics.Metrics          `optional:"true"`
	Counters     *metrics.IngestionMetrics `optional:"true"`
}

// Runner executes complete ingestion runs under the run lock.
type Runner struct {
	fetcher  Fetcher
	orch     *Orchestrator
	locker   runlock.Locker
	lockKey  string
	lockTTL  time.Duration
	settings *config.IngestionConfigHolder
	clock    clock.Clock
	log      *zap.Logger
	metrics  *metrics.Metrics
	counters *metrics.IngestionMetrics

	mu   sync.RWMutex
	last *Report
}

func NewRunner(p RunnerParams) *Runner {
	clk := p.Clock
	if clk == nil {
		clk = clock.System{}
	}
	locker := p.Locker
	if locker == nil {
		locker = runlock.NewLocalLocker()
	}
	key := p.Config.RunLock.Key
	if key == "" {
		key = "fundtrack:ingestion:run"
	}
	ttl := p.Config.RunLock.TTL
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &Runner{
		fetcher:  p.Fetcher,
		orch:     p.Orchestrator,
		locker:   locker,
		lockKey:  key,
		lockTTL:  ttl,
		settings: p.Ingestion,
		clock:    clk,
		log:      p.Log.Named("ingestion.runner"),
		metrics:  p.Metrics,
		counters: p.Counters,
	}
}

// Run fetches the provider batch and ingests it as month's snapshot.
// Fetch failures end the run before any record is touched.
func (r *Runner) Run(ctx context.Context, trigger Trigger, month time.Time) (Report, error) {
	return r.execute(ctx, trigger, month, func(ctx context.Context, report *Report) ([]domain.FundRecord, error) {
		batch, err := r.fetcher.FetchBatch(ctx)
		if err != nil {
			return nil, err
		}
		report.Fetched = len(batch.Records)
		report.Skipped = batch.Skipped
		report.Attempts = batch.Attempts
		report.SourceWarnings = batch.Warnings
		return batch.Records, nil
	})
}

// RunRecords ingests records supplied by the caller, such as an uploaded
// file or an HTTP payload.
func (r *Runner) RunRecords(ctx context.Context, trigger Trigger, records []domain.FundRecord, month time.Time) (Report, error) {
	return r.execute(ctx, trigger, month, func(_ context.Context, report *Report) ([]domain.FundRecord, error) {
		report.Fetched = len(records)
		return records, nil
	})
}

// LastReport returns the most recent finished run, if any.
func (r *Runner) LastReport() (Report, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.last == nil {
		return Report{}, false
	}
	return *r.last, true
}

type loadFunc func(ctx context.Context, report *Report) ([]domain.FundRecord, error)

func (r *Runner) execute(ctx context.Context, trigger Trigger, month time.Time, load loadFunc) (Report, error) {
	token, ok, err := r.locker.TryLock(ctx, r.lockKey, r.lockTTL)
	if err != nil {
		return Report{}, err
	}
	if !ok {
		return Report{}, ErrRunInProgress
	}
	defer func() {
		if err := r.locker.Release(context.WithoutCancel(ctx), r.lockKey, token); err != nil {
			r.log.Warn("ingestion.run.unlock_failed", zap.Error(err))
		}
	}()

	report := Report{
		RunID:     ulid.Make().String(),
		Trigger:   trigger,
		Month:     domain.NormalizeMonth(month),
		StartedAt: r.clock.Now(),
	}
	report.Result = newResult(0, report.Month)

	ctx = obscontext.WithRunID(ctx, report.RunID)
	ctx = obscontext.WithTrigger(ctx, string(trigger))
	ctx, span := otel.Tracer("fundtrack/ingestion").Start(ctx, "ingestion.run")
	defer span.End()
	span.SetAttributes(attribute.String("ingestion.month", report.Month.Format("2006-01")))

	log := obslogger.WithContext(ctx, r.log)
	log.Info("ingestion.run.start", zap.Time("month", report.Month))

	runErr := r.ingest(ctx, &report, load)

	report.FinishedAt = r.clock.Now()
	report.Duration = report.FinishedAt.Sub(report.StartedAt)
	if runErr != nil {
		report.Error = runErr.Error()
		span.RecordError(runErr)
		span.SetStatus(codes.Error, "run failed")
	}
	r.finish(ctx, log, report, runErr)
	return report, runErr
}

func (r *Runner) ingest(ctx context.Context, report *Report, load loadFunc) error {
	records, err := load(ctx, report)
	if err != nil {
		return err
	}
	result, rejected, err := r.orch.ingestRaw(ctx, records, report.Month)
	report.Result = result
	report.Rejected = rejected
	return err
}

func (r *Runner) finish(ctx context.Context, log *zap.Logger, report Report, runErr error) {
	settings := r.settings.Get()

	r.metrics.RecordRunDuration(ctx, string(report.Trigger), report.Duration)
	r.counters.ObserveRun(string(report.Trigger), runErr == nil && report.Result.Success,
		report.Result.Total, len(report.Result.Errors), report.Duration, report.FinishedAt)

	errs := report.Result.Errors
	if limit := settings.ReportErrorLimit; len(errs) > limit {
		errs = errs[:limit]
	}
	fields := []zap.Field{
		zap.Time("month", report.Month),
		zap.Int("fetched", report.Fetched),
		zap.Int("skipped", report.Skipped),
		zap.Int("rejected", report.Rejected),
		zap.Int("processed", report.Result.Processed),
		zap.Int("added", report.Result.Added),
		zap.Int("updated", report.Result.Updated),
		zap.Int("error_count", len(report.Result.Errors)),
		zap.Strings("errors", errs),
		zap.Int("warning_count", len(report.Result.Warnings)),
		zap.Bool("success", report.Result.Success),
		zap.Duration("duration", report.Duration),
	}

	switch {
	case runErr != nil:
		log.Error("ingestion.run.finish", append(fields,
			zap.String("reason", metrics.ClassifySchedulerJobReason(runErr)),
			zap.Error(runErr),
		)...)
	case !report.Result.Success:
		log.Warn("ingestion.run.finish", fields...)
	default:
		log.Info("ingestion.run.finish", fields...)
	}

	if rate := report.FailureRate(); rate > settings.FailureAlertRate {
		log.Warn("ingestion.run.failure_rate_high",
			zap.Float64("failure_rate", rate),
			zap.Float64("threshold", settings.FailureAlertRate),
		)
	}

	r.mu.Lock()
	r.last = &report
	r.mu.Unlock()
}

// IsFetchError reports whether err ended a run before ingestion began.
func IsFetchError(err error) bool {
	return errors.Is(err, source.ErrNotConfigured) ||
		errors.Is(err, source.ErrSourceUnavailable) ||
		errors.Is(err, source.ErrSourceRejected) ||
		errors.Is(err, source.ErrUnsupportedPayload)
}

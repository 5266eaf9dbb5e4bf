package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/smallbiznis/fundtrack/internal/clock"
	"github.com/smallbiznis/fundtrack/internal/ingestion"
	obsmetrics "github.com/smallbiznis/fundtrack/internal/observability/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRunner struct {
	mu     sync.Mutex
	months []time.Time
	run    func(ctx context.Context, month time.Time) (ingestion.Report, error)
}

func (f *fakeRunner) Run(ctx context.Context, trigger ingestion.Trigger, month time.Time) (ingestion.Report, error) {
	f.mu.Lock()
	f.months = append(f.months, month)
	f.mu.Unlock()
	if trigger != ingestion.TriggerCron {
		return ingestion.Report{}, errors.New("unexpected trigger")
	}
	if f.run != nil {
		return f.run(ctx, month)
	}
	return ingestion.Report{
		Month:  month,
		Result: ingestion.BatchResult{Success: true, Processed: 4, Added: 4, Total: 4},
	}, nil
}

func newTestScheduler(t *testing.T, runner *fakeRunner, now time.Time, cfg Config) (*Scheduler, *prometheus.Registry) {
	t.Helper()
	registry := prometheus.NewRegistry()
	s, err := New(Params{
		Config:  cfg,
		Runner:  runner,
		Clock:   clock.NewFakeClock(now),
		Log:     zap.NewNop(),
		Metrics: obsmetrics.NewSchedulerMetrics(registry, obsmetrics.Config{}),
	})
	require.NoError(t, err)
	return s, registry
}

func TestMonthlyJobTargetsPreviousMonthOnSchedulerCalendar(t *testing.T) {
	runner := &fakeRunner{}
	// 02:30 on 1 November in India, still 31 October in UTC.
	now := time.Date(2025, 10, 31, 21, 0, 0, 0, time.UTC)
	s, registry := newTestScheduler(t, runner, now, Config{Enabled: true, Timezone: "Asia/Kolkata"})

	require.NoError(t, s.RunOnce(context.Background()))

	require.Len(t, runner.months, 1)
	assert.Equal(t, time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC), runner.months[0])
	assert.Equal(t, 1.0, getCounterValue(t, registry, "fundtrack_scheduler_job_runs_total", map[string]string{"job": JobMonthlyIngestion}))
	assert.Equal(t, 4.0, getCounterValue(t, registry, "fundtrack_scheduler_processed_total", map[string]string{"job": JobMonthlyIngestion, "resource": "fund_record"}))
}

func TestMonthlyJobInUTC(t *testing.T) {
	runner := &fakeRunner{}
	now := time.Date(2025, 10, 31, 21, 0, 0, 0, time.UTC)
	s, _ := newTestScheduler(t, runner, now, Config{Enabled: true, Timezone: "UTC"})

	require.NoError(t, s.RunOnce(context.Background()))
	assert.Equal(t, time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC), runner.months[0])
}

func TestMonthlyJobSkipsWhenRunInProgress(t *testing.T) {
	runner := &fakeRunner{run: func(context.Context, time.Time) (ingestion.Report, error) {
		return ingestion.Report{}, ingestion.ErrRunInProgress
	}}
	s, registry := newTestScheduler(t, runner, time.Now(), Config{Enabled: true})

	require.NoError(t, s.RunOnce(context.Background()))
	assert.Equal(t, 1.0, getCounterValue(t, registry, "fundtrack_scheduler_job_skipped_total",
		map[string]string{"job": JobMonthlyIngestion, "reason": obsmetrics.SchedulerSkipReasonRunInProgress}))
	assert.Empty(t, s.Status().LastError)
}

func TestMonthlyJobReportsFailedBatch(t *testing.T) {
	runner := &fakeRunner{run: func(_ context.Context, month time.Time) (ingestion.Report, error) {
		return ingestion.Report{
			Month: month,
			Result: ingestion.BatchResult{
				Success: false, Processed: 1, Total: 3,
				Errors: []string{"a: bad", "b: bad"},
			},
		}, nil
	}}
	s, registry := newTestScheduler(t, runner, time.Now(), Config{Enabled: true})

	err := s.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 of 3 records errored")
	assert.Equal(t, 1.0, getCounterValue(t, registry, "fundtrack_scheduler_job_errors_total",
		map[string]string{"job": JobMonthlyIngestion, "reason": obsmetrics.SchedulerJobReasonUnknown}))
	assert.Equal(t, err.Error(), s.Status().LastError)
}

func TestRunOnceTreatsDeadlineAsSoftTimeout(t *testing.T) {
	runner := &fakeRunner{run: func(ctx context.Context, _ time.Time) (ingestion.Report, error) {
		<-ctx.Done()
		return ingestion.Report{}, ctx.Err()
	}}
	s, registry := newTestScheduler(t, runner, time.Now(), Config{Enabled: true, JobTimeout: 10 * time.Millisecond})

	require.NoError(t, s.RunOnce(context.Background()))
	assert.Equal(t, 1.0, getCounterValue(t, registry, "fundtrack_scheduler_job_timeouts_total", map[string]string{"job": JobMonthlyIngestion}))
}

func TestNewRejectsBadConfig(t *testing.T) {
	_, err := New(Params{Config: Config{Timezone: "Mars/Olympus"}, Runner: &fakeRunner{}, Log: zap.NewNop()})
	assert.ErrorIs(t, err, ErrInvalidTimezone)

	_, err = New(Params{Config: Config{Schedule: "every full moon"}, Runner: &fakeRunner{}, Log: zap.NewNop()})
	assert.ErrorIs(t, err, ErrInvalidSchedule)

	_, err = New(Params{Log: zap.NewNop()})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestStatus(t *testing.T) {
	s, _ := newTestScheduler(t, &fakeRunner{}, time.Now(), Config{Enabled: false, Schedule: "0 2 1 * *", Timezone: "UTC"})

	status := s.Status()
	assert.False(t, status.Enabled)
	assert.Equal(t, "0 2 1 * *", status.Schedule)
	assert.Nil(t, status.NextRun)
	assert.Nil(t, status.LastRun)

	require.NoError(t, s.RunOnce(context.Background()))
	assert.NotNil(t, s.Status().LastRun)
}

func TestStartWhenDisabledDoesNotSchedule(t *testing.T) {
	runner := &fakeRunner{}
	s, registry := newTestScheduler(t, runner, time.Now(), Config{Enabled: false})

	s.Start(context.Background())
	defer s.Stop()

	assert.Empty(t, runner.months)
	assert.Equal(t, 1.0, getCounterValue(t, registry, "fundtrack_scheduler_job_skipped_total",
		map[string]string{"job": JobMonthlyIngestion, "reason": obsmetrics.SchedulerSkipReasonDisabled}))
}

func getCounterValue(t *testing.T, registry *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := registry.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			if labelsMatch(metric, labels) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func labelsMatch(metric *dto.Metric, labels map[string]string) bool {
	matched := 0
	for _, pair := range metric.GetLabel() {
		if want, ok := labels[pair.GetName()]; ok {
			if pair.GetValue() != want {
				return false
			}
			matched++
		}
	}
	return matched == len(labels)
}

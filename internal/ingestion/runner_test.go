package ingestion

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/fundtrack/internal/clock"
	"github.com/smallbiznis/fundtrack/internal/config"
	"github.com/smallbiznis/fundtrack/internal/fund/domain"
	"github.com/smallbiznis/fundtrack/internal/runlock"
	"github.com/smallbiznis/fundtrack/internal/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type stubFetcher struct {
	batch source.Batch
	err   error
	calls int
}

func (f *stubFetcher) FetchBatch(context.Context) (source.Batch, error) {
	f.calls++
	return f.batch, f.err
}

func newRunner(t *testing.T, h harness, fetcher Fetcher, locker runlock.Locker, log *zap.Logger) *Runner {
	t.Helper()
	return NewRunner(RunnerParams{
		Config:       config.Config{RunLock: config.RunLockConfig{Key: "test:run", TTL: time.Minute}},
		Ingestion:    config.NewStaticIngestionConfigHolder(config.DefaultIngestionConfig()),
		Fetcher:      fetcher,
		Orchestrator: h.orch,
		Locker:       locker,
		Clock:        clock.NewFakeClock(october),
		Log:          log,
	})
}

func TestRunFetchesAndIngests(t *testing.T) {
	h := newHarness(t)
	fetcher := &stubFetcher{batch: source.Batch{
		Records:  []domain.FundRecord{fund("MF001", "Alpha", "Large Cap", 10), fund("MF002", "Beta", "Crypto", 1)},
		Attempts: 2,
		Skipped:  1,
		Warnings: []string{"record #2 skipped: not an object"},
	}}
	core, logs := observer.New(zap.InfoLevel)
	runner := newRunner(t, h, fetcher, runlock.NewLocalLocker(), zap.New(core))

	report, err := runner.Run(context.Background(), TriggerCron, time.Date(2025, 10, 9, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, TriggerCron, report.Trigger)
	assert.True(t, report.Month.Equal(october))
	assert.Equal(t, 2, report.Fetched)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 1, report.Rejected)
	assert.Equal(t, 2, report.Attempts)
	assert.Equal(t, 1, report.Result.Processed)
	assert.False(t, report.Result.Success, "one of two failing is not a majority success")
	assert.Equal(t, 0.5, report.FailureRate())

	assert.Equal(t, 1, logs.FilterMessage("ingestion.run.finish").Len())
	assert.Equal(t, 1, logs.FilterMessage("ingestion.run.failure_rate_high").Len())

	last, ok := runner.LastReport()
	require.True(t, ok)
	assert.Equal(t, report.RunID, last.RunID)
}

func TestRunStopsOnFetchError(t *testing.T) {
	h := newHarness(t)
	fetcher := &stubFetcher{err: &source.UnavailableError{Attempts: 3, Cause: context.DeadlineExceeded}}
	runner := newRunner(t, h, fetcher, runlock.NewLocalLocker(), zap.NewNop())

	report, err := runner.Run(context.Background(), TriggerHTTP, october)
	require.Error(t, err)
	assert.True(t, IsFetchError(err))
	assert.Equal(t, 0, report.Result.Processed)
	assert.Equal(t, 0, report.Result.Total)
	assert.NotEmpty(t, report.Error)
	assert.EqualValues(t, 0, h.count(t, &domain.FundMaster{}))
}

func TestRunRejectsOverlap(t *testing.T) {
	h := newHarness(t)
	locker := runlock.NewLocalLocker()
	_, ok, err := locker.TryLock(context.Background(), "test:run", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	fetcher := &stubFetcher{}
	runner := newRunner(t, h, fetcher, locker, zap.NewNop())

	_, err = runner.Run(context.Background(), TriggerHTTP, october)
	assert.ErrorIs(t, err, ErrRunInProgress)
	assert.Equal(t, 0, fetcher.calls)
}

func TestRunRecordsReleasesLock(t *testing.T) {
	h := newHarness(t)
	runner := newRunner(t, h, &stubFetcher{}, runlock.NewLocalLocker(), zap.NewNop())
	records := []domain.FundRecord{fund("MF001", "Alpha", "Large Cap", 10)}

	first, err := runner.RunRecords(context.Background(), TriggerCLI, records, october)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Result.Added)

	second, err := runner.RunRecords(context.Background(), TriggerCLI, records, october)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Result.Updated)
}

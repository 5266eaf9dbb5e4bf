package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestIngestionObserveRun(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newIngestionMetrics(registry, Config{ServiceName: "fundtrack", Environment: "test"})
	finished := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)

	m.ObserveRun("cron", true, 10, 1, 3*time.Second, finished)
	m.ObserveRun("http", false, 10, 6, time.Second, finished.Add(time.Hour))
	m.AddRecords(OutcomeAdded, 4)
	m.IncFetchAttempt("retryable")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("cron", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("http", "failure")))
	assert.Equal(t, 0.6, testutil.ToFloat64(m.failureRate))
	assert.Equal(t, float64(finished.Unix()), testutil.ToFloat64(m.lastRunSuccess))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.records.WithLabelValues(OutcomeAdded)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fetchAttempts.WithLabelValues("retryable")))
}

func TestNilIngestionMetricsIsSafe(t *testing.T) {
	var m *IngestionMetrics
	m.ObserveRun("cron", true, 1, 0, time.Second, time.Now())
	m.AddRecords(OutcomeAdded, 1)
	m.IncFetchAttempt("ok")
}

package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// IngestionMetrics tracks run-level ingestion health for alerting.
type IngestionMetrics struct {
	runs           *prometheus.CounterVec
	records        *prometheus.CounterVec
	runDuration    *prometheus.HistogramVec
	fetchAttempts  *prometheus.CounterVec
	failureRate    prometheus.Gauge
	lastRunSuccess prometheus.Gauge
}

var (
	ingestionMetricsOnce sync.Once
	ingestionMetrics     *IngestionMetrics
)

func Ingestion() *IngestionMetrics {
	return IngestionWithConfig(Config{})
}

func IngestionWithConfig(cfg Config) *IngestionMetrics {
	ingestionMetricsOnce.Do(func() {
		ingestionMetrics = newIngestionMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return ingestionMetrics
}

// ResetIngestionMetricsForTest resets the ingestion metrics singleton for tests.
func ResetIngestionMetricsForTest() {
	ingestionMetricsOnce = sync.Once{}
	ingestionMetrics = nil
}

func newIngestionMetrics(registerer prometheus.Registerer, cfg Config) *IngestionMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	constLabels := prometheus.Labels{
		"service": cfg.serviceName(),
		"env":     cfg.environment(),
	}

	m := &IngestionMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "fundtrack_ingestion_runs_total",
			Help:        "Ingestion runs by trigger and result.",
			ConstLabels: constLabels,
		}, []string{"trigger", "result"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "fundtrack_ingestion_records_total",
			Help:        "Fund records by ingestion outcome.",
			ConstLabels: constLabels,
		}, []string{"outcome"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "fundtrack_ingestion_run_duration_seconds",
			Help:        "Duration of fetch plus ingest.",
			Buckets:     []float64{0.5, 1, 5, 10, 30, 60, 120, 300, 600, 1800},
			ConstLabels: constLabels,
		}, []string{"trigger"}),
		fetchAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "fundtrack_source_fetch_attempts_total",
			Help:        "Provider requests by result.",
			ConstLabels: constLabels,
		}, []string{"result"}),
		failureRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "fundtrack_ingestion_last_failure_rate",
			Help:        "Share of records that failed in the most recent run.",
			ConstLabels: constLabels,
		}),
		lastRunSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "fundtrack_ingestion_last_success_timestamp_seconds",
			Help:        "Unix time of the most recent successful run.",
			ConstLabels: constLabels,
		}),
	}

	registerer.MustRegister(
		m.runs,
		m.records,
		m.runDuration,
		m.fetchAttempts,
		m.failureRate,
		m.lastRunSuccess,
	)
	return m
}

// ObserveRun records one finished run. total is the batch size.
func (m *IngestionMetrics) ObserveRun(trigger string, success bool, total, failed int, duration time.Duration, finishedAt time.Time) {
	if m == nil {
		return
	}
	result := "failure"
	if success {
		result = "success"
		m.lastRunSuccess.Set(float64(finishedAt.Unix()))
	}
	m.runs.WithLabelValues(trigger, result).Inc()
	m.runDuration.WithLabelValues(trigger).Observe(duration.Seconds())
	if total > 0 {
		m.failureRate.Set(float64(failed) / float64(total))
	}
}

func (m *IngestionMetrics) AddRecords(outcome string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.records.WithLabelValues(outcome).Add(float64(count))
}

func (m *IngestionMetrics) IncFetchAttempt(result string) {
	if m == nil {
		return
	}
	m.fetchAttempts.WithLabelValues(result).Inc()
}

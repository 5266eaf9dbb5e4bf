package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

type reasonedErr struct{}

func (reasonedErr) Error() string        { return "provider down" }
func (reasonedErr) MetricReason() string { return "source_unavailable" }

func TestClassifySchedulerJobReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "deadline", err: context.DeadlineExceeded, want: SchedulerJobReasonDeadlineExceeded},
		{name: "db_lock_timeout", err: &pgconn.PgError{Code: "55P03"}, want: SchedulerJobReasonDBLockTimeout},
		{name: "serialization_failure", err: &pgconn.PgError{Code: "40001"}, want: SchedulerJobReasonSerializationFailure},
		{name: "unique_violation", err: gorm.ErrDuplicatedKey, want: SchedulerJobReasonUniqueViolation},
		{name: "connection", err: &pgconn.PgError{Code: "08006"}, want: SchedulerJobReasonDBUnavailable},
		{name: "self described", err: fmt.Errorf("fetch: %w", reasonedErr{}), want: "source_unavailable"},
		{name: "unknown", err: errors.New("boom"), want: SchedulerJobReasonUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifySchedulerJobReason(tc.err))
		})
	}
}

func TestIsRetryableDBError(t *testing.T) {
	assert.True(t, IsRetryableDBError(&pgconn.PgError{Code: "40P01"}))
	assert.True(t, IsRetryableDBError(&pgconn.PgError{Code: "57P01"}))
	assert.False(t, IsRetryableDBError(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsRetryableDBError(nil))
}

func TestSchedulerCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newSchedulerMetrics(registry, Config{ServiceName: "fundtrack", Environment: "test"})

	m.AddProcessed("monthly_ingestion", "funds", 3)
	m.IncJobSkipped("monthly_ingestion", SchedulerSkipReasonRunInProgress)
	m.IncJobError("monthly_ingestion", reasonedErr{})
	m.MarkSuccess("monthly_ingestion", time.Unix(1700000000, 0))

	assert.Equal(t, 3.0, testutil.ToFloat64(m.processed.WithLabelValues("monthly_ingestion", "funds")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobSkipped.WithLabelValues("monthly_ingestion", SchedulerSkipReasonRunInProgress)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobErrors.WithLabelValues("monthly_ingestion", "source_unavailable")))
	assert.Equal(t, 1700000000.0, testutil.ToFloat64(m.lastSuccess.WithLabelValues("monthly_ingestion")))
}

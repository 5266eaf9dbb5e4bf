package logger

import (
	"context"
	"testing"

	obscontext "github.com/smallbiznis/fundtrack/internal/observability/context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithContextAddsRunFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	ctx := obscontext.WithRunID(context.Background(), "01JRUN")
	ctx = obscontext.WithTrigger(ctx, "cron")
	WithContext(ctx, base).Info("ingestion.run.start")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "01JRUN", fields["run_id"])
	assert.Equal(t, "cron", fields["trigger"])
	assert.NotContains(t, fields, "request_id")
	assert.NotContains(t, fields, "trace_id")
}

func TestWithContextWithoutIdentifiersReturnsBase(t *testing.T) {
	base := zap.NewNop()
	assert.Same(t, base, WithContext(context.Background(), base))
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(nil, Config{Level: "chatty"})
	assert.Error(t, err)
}

func TestOperationFromSQL(t *testing.T) {
	assert.Equal(t, "INSERT", operationFromSQL("INSERT INTO fund_masters ..."))
	assert.Equal(t, "SELECT", operationFromSQL("WITH latest AS (SELECT 1) SELECT * FROM latest"))
	assert.Equal(t, "UNKNOWN", operationFromSQL(""))
}

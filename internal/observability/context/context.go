// Package context carries request and run identifiers used for log correlation.
package context

import (
	"context"
	"strings"
)

type requestIDKey struct{}
type runIDKey struct{}
type triggerKey struct{}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return withString(ctx, requestIDKey{}, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	return stringFrom(ctx, requestIDKey{})
}

// WithRunID tags ctx with the ingestion run it belongs to.
func WithRunID(ctx context.Context, runID string) context.Context {
	return withString(ctx, runIDKey{}, runID)
}

func RunIDFromContext(ctx context.Context) string {
	return stringFrom(ctx, runIDKey{})
}

// WithTrigger records what started the run: "cron", "http", "cli".
func WithTrigger(ctx context.Context, trigger string) context.Context {
	return withString(ctx, triggerKey{}, trigger)
}

func TriggerFromContext(ctx context.Context) string {
	return stringFrom(ctx, triggerKey{})
}

func withString(ctx context.Context, key any, value string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func stringFrom(ctx context.Context, key any) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

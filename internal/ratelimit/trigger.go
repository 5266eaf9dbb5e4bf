package ratelimit

import (
	"context"
	"fmt"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/fundtrack/internal/config"
	"go.uber.org/zap"
)

const keyTrigger = "fundtrack:trigger:%s"

// TriggerLimiter throttles on-demand ingestion requests per caller. A nil
// limiter allows everything.
type TriggerLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewTriggerLimiter(cfg config.Config, client *redis.Client, log *zap.Logger) *TriggerLimiter {
	if client == nil {
		return nil
	}
	if cfg.RateLimit.TriggerRate <= 0 || cfg.RateLimit.TriggerBurst <= 0 {
		log.Warn("trigger rate limit disabled: rate and burst must be positive")
		return nil
	}
	return &TriggerLimiter{
		bucket: NewTokenBucket(client),
		rate:   cfg.RateLimit.TriggerRate,
		burst:  cfg.RateLimit.TriggerBurst,
	}
}

func (l *TriggerLimiter) Allow(ctx context.Context, caller string) (*RateLimitResult, error) {
	if l == nil {
		return &RateLimitResult{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyTrigger, caller), l.rate, l.burst)
}

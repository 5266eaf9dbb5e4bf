package scheduler

import (
	"time"

	"github.com/smallbiznis/fundtrack/internal/config"
)

// Config controls the monthly ingestion trigger.
type Config struct {
	Enabled    bool
	Schedule   string
	Timezone   string
	JobTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Enabled:    true,
		Schedule:   "0 2 1 * *",
		Timezone:   "Asia/Kolkata",
		JobTimeout: 2 * time.Hour,
	}
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		Enabled:    cfg.Cron.Enabled,
		Schedule:   cfg.Cron.Schedule,
		Timezone:   cfg.Cron.Timezone,
		JobTimeout: cfg.RunLock.TTL,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.Schedule == "" {
		c.Schedule = defaults.Schedule
	}
	if c.Timezone == "" {
		c.Timezone = defaults.Timezone
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	return c
}

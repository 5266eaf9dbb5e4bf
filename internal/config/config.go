package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string

	OTLPEndpoint   string
	HTTPAddr       string
	PushgatewayURL string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBPath            string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Redis     RedisConfig
	Source    SourceConfig
	Cron      CronConfig
	RunLock   RunLockConfig
	RateLimit RateLimitConfig
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether a redis address was configured.
func (c RedisConfig) Enabled() bool {
	return strings.TrimSpace(c.Addr) != ""
}

// SourceConfig describes the upstream fund data provider.
type SourceConfig struct {
	BaseURL      string
	APIKey       string
	FundsPath    string
	HealthPath   string
	EnvelopePath string
	Timeout      time.Duration
	MaxAttempts  int
	BaseDelay    time.Duration
}

// CronConfig controls the recurring ingestion trigger.
type CronConfig struct {
	Enabled  bool
	Schedule string
	Timezone string
}

// RunLockConfig bounds how long one ingestion run may hold the lock.
type RunLockConfig struct {
	Key string
	TTL time.Duration
}

// RateLimitConfig throttles on-demand ingestion triggers per client.
type RateLimitConfig struct {
	TriggerRate  float64
	TriggerBurst int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:           getenv("APP_SERVICE", "fundtrack"),
		AppVersion:        getenv("APP_VERSION", "0.1.0"),
		Environment:       getenv("ENVIRONMENT", "development"),
		OTLPEndpoint:      getenv("OTLP_ENDPOINT", "localhost:4317"),
		HTTPAddr:          getenv("HTTP_ADDR", ":8080"),
		PushgatewayURL:    strings.TrimSpace(getenv("PUSHGATEWAY_URL", "")),
		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "fundtrack"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBPath:            getenv("DATABASE_PATH", "fundtrack.db"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 1800),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 300),
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       getenvInt("REDIS_DB", 0),
		},
		Source: SourceConfig{
			BaseURL:      strings.TrimRight(strings.TrimSpace(getenv("SOURCE_API_URL", "")), "/"),
			APIKey:       strings.TrimSpace(getenv("SOURCE_API_KEY", "")),
			FundsPath:    getenv("SOURCE_FUNDS_PATH", "/funds"),
			HealthPath:   getenv("SOURCE_HEALTH_PATH", "/health"),
			EnvelopePath: strings.TrimSpace(getenv("SOURCE_ENVELOPE_PATH", "")),
			Timeout:      getenvDuration("SOURCE_TIMEOUT", 30*time.Second),
			MaxAttempts:  getenvInt("SOURCE_MAX_ATTEMPTS", 3),
			BaseDelay:    getenvDuration("SOURCE_BASE_DELAY", time.Second),
		},
		Cron: CronConfig{
			Enabled:  getenvBool("CRON_ENABLED", true),
			Schedule: getenv("CRON_SCHEDULE", "0 2 1 * *"),
			Timezone: getenv("CRON_TIMEZONE", "Asia/Kolkata"),
		},
		RunLock: RunLockConfig{
			Key: getenv("RUN_LOCK_KEY", "fundtrack:ingestion:run"),
			TTL: getenvDuration("RUN_LOCK_TTL", 2*time.Hour),
		},
		RateLimit: RateLimitConfig{
			TriggerRate:  getenvFloat("TRIGGER_RATE_PER_SEC", 0.1),
			TriggerBurst: getenvInt("TRIGGER_BURST", 3),
		},
	}

	return cfg
}

// IsProduction reports whether the service runs in a production environment.
func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

// getenvDuration accepts Go duration strings ("30s") or plain milliseconds.
func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	if ms, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return def
}

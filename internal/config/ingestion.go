package config

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// IngestionConfig carries tunables that operators may change without a restart.
type IngestionConfig struct {
	Outliers         OutlierThresholds `mapstructure:"outliers"`
	FailureAlertRate float64           `mapstructure:"failureAlertRate"`
	ReportErrorLimit int               `mapstructure:"reportErrorLimit"`
}

// OutlierThresholds bound values that are accepted but flagged for review.
type OutlierThresholds struct {
	CAGRMin    float64 `mapstructure:"cagrMin"`
	CAGRMax    float64 `mapstructure:"cagrMax"`
	ExpenseMin float64 `mapstructure:"expenseMin"`
	ExpenseMax float64 `mapstructure:"expenseMax"`
}

func DefaultIngestionConfig() IngestionConfig {
	return IngestionConfig{
		Outliers: OutlierThresholds{
			CAGRMin:    -50,
			CAGRMax:    100,
			ExpenseMin: 0.1,
			ExpenseMax: 3,
		},
		FailureAlertRate: 0.1,
		ReportErrorLimit: 10,
	}
}

type IngestionConfigHolder struct {
	current atomic.Value // holds IngestionConfig
}

// NewStaticIngestionConfigHolder returns a holder that never reloads.
func NewStaticIngestionConfigHolder(cfg IngestionConfig) *IngestionConfigHolder {
	holder := &IngestionConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewIngestionConfigHolder(log *zap.Logger) (*IngestionConfigHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("config.ingestion")

	v := viper.New()

	v.SetConfigName("ingestion")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/fundtrack/config")
	v.AddConfigPath("/etc/fundtrack")
	v.AddConfigPath(".")

	v.SetEnvPrefix("FUNDTRACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultIngestionConfig()
	v.SetDefault("ingestion.outliers.cagrMin", defaults.Outliers.CAGRMin)
	v.SetDefault("ingestion.outliers.cagrMax", defaults.Outliers.CAGRMax)
	v.SetDefault("ingestion.outliers.expenseMin", defaults.Outliers.ExpenseMin)
	v.SetDefault("ingestion.outliers.expenseMax", defaults.Outliers.ExpenseMax)
	v.SetDefault("ingestion.failureAlertRate", defaults.FailureAlertRate)
	v.SetDefault("ingestion.reportErrorLimit", defaults.ReportErrorLimit)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
	}

	cfg := defaults
	if err := v.UnmarshalKey("ingestion", &cfg); err != nil {
		return nil, err
	}
	if err := validateIngestionConfig(cfg); err != nil {
		return nil, err
	}

	holder := &IngestionConfigHolder{}
	holder.current.Store(cfg)

	if !fileFound {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated := DefaultIngestionConfig()
		if err := v.UnmarshalKey("ingestion", &updated); err != nil {
			log.Warn("ingestion config reload failed", zap.Error(err))
			return
		}
		if err := validateIngestionConfig(updated); err != nil {
			log.Warn("invalid ingestion config ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("ingestion config reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *IngestionConfigHolder) Get() IngestionConfig {
	if h == nil {
		return DefaultIngestionConfig()
	}
	cfg, ok := h.current.Load().(IngestionConfig)
	if !ok {
		return DefaultIngestionConfig()
	}
	return cfg
}

func validateIngestionConfig(cfg IngestionConfig) error {
	if cfg.Outliers.CAGRMin >= cfg.Outliers.CAGRMax {
		return errors.New("ingestion.outliers.cagrMin must be below cagrMax")
	}
	if cfg.Outliers.ExpenseMin >= cfg.Outliers.ExpenseMax {
		return errors.New("ingestion.outliers.expenseMin must be below expenseMax")
	}
	if cfg.FailureAlertRate < 0 || cfg.FailureAlertRate > 1 {
		return errors.New("ingestion.failureAlertRate must be within [0, 1]")
	}
	if cfg.ReportErrorLimit < 0 {
		return errors.New("ingestion.reportErrorLimit cannot be negative")
	}
	return nil
}

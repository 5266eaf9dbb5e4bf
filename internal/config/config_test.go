package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SOURCE_API_URL", "https://provider.example.com/")
	t.Setenv("SOURCE_BASE_DELAY", "250")
	t.Setenv("CRON_ENABLED", "off")

	cfg := Load()

	assert.Equal(t, "https://provider.example.com", cfg.Source.BaseURL)
	assert.Equal(t, 250*time.Millisecond, cfg.Source.BaseDelay)
	assert.Equal(t, 3, cfg.Source.MaxAttempts)
	assert.Equal(t, 30*time.Second, cfg.Source.Timeout)
	assert.False(t, cfg.Cron.Enabled)
	assert.Equal(t, "0 2 1 * *", cfg.Cron.Schedule)
	assert.Equal(t, "Asia/Kolkata", cfg.Cron.Timezone)
	assert.False(t, cfg.Redis.Enabled())
	assert.Equal(t, 2*time.Hour, cfg.RunLock.TTL)
	assert.Equal(t, 3, cfg.RateLimit.TriggerBurst)
}

func TestIngestionConfigHolderDefaultsWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())

	holder, err := NewIngestionConfigHolder(zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, DefaultIngestionConfig(), holder.Get())
}

func TestValidateIngestionConfig(t *testing.T) {
	cfg := DefaultIngestionConfig()
	require.NoError(t, validateIngestionConfig(cfg))

	bad := cfg
	bad.Outliers.CAGRMin = 200
	assert.Error(t, validateIngestionConfig(bad))

	bad = cfg
	bad.FailureAlertRate = 1.5
	assert.Error(t, validateIngestionConfig(bad))
}

func TestNilHolderFallsBackToDefaults(t *testing.T) {
	var holder *IngestionConfigHolder
	assert.Equal(t, DefaultIngestionConfig(), holder.Get())
}

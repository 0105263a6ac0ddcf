package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "paper", cfg.Mode)
	assert.Equal(t, "KRW-BTC", cfg.Scanner.Benchmark)
	assert.Equal(t, 2.0, cfg.Scanner.RVolThreshold)
	assert.Equal(t, 3, cfg.Scanner.CandidateCount)
	assert.Equal(t, 0.004, cfg.Risk.PerTradeRiskPct)
	assert.Equal(t, 0.01, cfg.Risk.DailyDrawdownPct)
	assert.Equal(t, "09:10-13:00,17:10-19:00", cfg.Session.Windows)
	assert.Equal(t, "Asia/Seoul", cfg.Session.Timezone)
	assert.Equal(t, 60*time.Second, cfg.Session.ScanInterval)
	assert.False(t, cfg.Redis.Enabled())
	assert.False(t, cfg.Database.Enabled())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SCANNER_RVOL_THRESHOLD", "3.5")
	t.Setenv("SCANNER_SPREAD_BP_MAX", "10")
	t.Setenv("TRADER_SCAN_INTERVAL", "30s")
	t.Setenv("REDIS_HOST", "redis.internal")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3.5, cfg.Scanner.RVolThreshold)
	assert.Equal(t, 10.0, cfg.Scanner.SpreadBPMax)
	assert.Equal(t, 30*time.Second, cfg.Session.ScanInterval)
	assert.True(t, cfg.Redis.Enabled())
}

func TestLoad_MalformedValueFallsBack(t *testing.T) {
	t.Setenv("SCANNER_WORKERS", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Scanner.Workers)
}

func TestValidate_LiveModeRequiresKeys(t *testing.T) {
	t.Setenv("TRADER_MODE", "live")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UPBIT_ACCESS_KEY")

	t.Setenv("UPBIT_ACCESS_KEY", "ak")
	t.Setenv("UPBIT_SECRET_KEY", "sk")
	_, err = Load()
	assert.NoError(t, err)
}

func TestValidate_Rejections(t *testing.T) {
	cases := map[string]string{
		"TRADER_MODE":                  "dry-run",
		"RISK_PER_TRADE_PCT":           "-0.01",
		"RISK_DAILY_DRAWDOWN_STOP_PCT": "0",
		"TRADER_TIMEZONE":              "Mars/Olympus",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

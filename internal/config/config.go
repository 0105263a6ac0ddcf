package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Common
	Environment string
	LogLevel    string
	Mode        string // "paper" or "live"
	HealthPort  int

	Exchange ExchangeConfig
	Scanner  ScannerConfig
	Risk     RiskConfig
	Session  SessionConfig
	Paper    PaperConfig
	Redis    RedisConfig
	Database DatabaseConfig
}

// ExchangeConfig holds Upbit API configuration
type ExchangeConfig struct {
	AccessKey      string
	SecretKey      string
	BaseURL        string
	WebSocketURL   string
	RequestTimeout time.Duration
	MaxRetries     int
	RequestsPerSec int
}

// ScannerConfig holds scanner thresholds and universe selection
type ScannerConfig struct {
	Benchmark      string
	Workers        int
	CandleUnit     int
	CandleCount    int
	MaxMarkets     int
	MinTurnover24h float64
	RVolThreshold  float64
	SpreadBPMax    float64
	RequireTrend   bool
	MinScore       float64
	CandidateCount int
}

// RiskConfig holds risk gate parameters
type RiskConfig struct {
	PerTradeRiskPct      float64
	DailyDrawdownPct     float64
	MaxConsecutiveLosses int
	MinOrderValue        float64
	MaxPositionValue     float64
	MaxOpenPositions     int
}

// SessionConfig holds trading session windows and cadence
type SessionConfig struct {
	Windows      string // comma-separated HH:MM-HH:MM ranges
	Timezone     string
	ScanInterval time.Duration
}

// PaperConfig holds paper-mode simulation parameters
type PaperConfig struct {
	StartingEquity float64
	SlippageBP     float64
	TakerFeePct    float64
}

// RedisConfig holds Redis configuration; risk-state persistence and event
// notifications are disabled when Host is empty
type RedisConfig struct {
	Host         string
	Port         int
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	EventStream  string
}

// DatabaseConfig holds trade-database configuration; recording is disabled
// when Host is empty
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxConnections  int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Enabled reports whether a Redis endpoint is configured
func (r RedisConfig) Enabled() bool { return r.Host != "" }

// Enabled reports whether a trade database is configured
func (d DatabaseConfig) Enabled() bool { return d.Host != "" }

// Load loads configuration from environment variables
// It automatically loads .env file if it exists in the current directory or parent directories
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Mode:        getEnv("TRADER_MODE", "paper"),
		HealthPort:  getEnvAsInt("TRADER_HEALTH_PORT", 8080),
		Exchange: ExchangeConfig{
			AccessKey:      getEnv("UPBIT_ACCESS_KEY", ""),
			SecretKey:      getEnv("UPBIT_SECRET_KEY", ""),
			BaseURL:        getEnv("UPBIT_BASE_URL", "https://api.upbit.com"),
			WebSocketURL:   getEnv("UPBIT_WS_URL", "wss://api.upbit.com/websocket/v1"),
			RequestTimeout: getEnvAsDuration("UPBIT_REQUEST_TIMEOUT", 10*time.Second),
			MaxRetries:     getEnvAsInt("UPBIT_MAX_RETRIES", 3),
			RequestsPerSec: getEnvAsInt("UPBIT_REQUESTS_PER_SEC", 8),
		},
		Scanner: ScannerConfig{
			Benchmark:      getEnv("SCANNER_BENCHMARK", "KRW-BTC"),
			Workers:        getEnvAsInt("SCANNER_WORKERS", 4),
			CandleUnit:     getEnvAsInt("SCANNER_CANDLE_UNIT", 5),
			CandleCount:    getEnvAsInt("SCANNER_CANDLE_COUNT", 200),
			MaxMarkets:     getEnvAsInt("SCANNER_MAX_MARKETS", 50),
			MinTurnover24h: getEnvAsFloat("SCANNER_MIN_TURNOVER", 5_000_000_000),
			RVolThreshold:  getEnvAsFloat("SCANNER_RVOL_THRESHOLD", 2.0),
			SpreadBPMax:    getEnvAsFloat("SCANNER_SPREAD_BP_MAX", 5.0),
			RequireTrend:   getEnvAsBool("SCANNER_REQUIRE_TREND", true),
			MinScore:       getEnvAsFloat("SCANNER_MIN_SCORE", 0),
			CandidateCount: getEnvAsInt("SCANNER_CANDIDATE_COUNT", 3),
		},
		Risk: RiskConfig{
			PerTradeRiskPct:      getEnvAsFloat("RISK_PER_TRADE_PCT", 0.004),
			DailyDrawdownPct:     getEnvAsFloat("RISK_DAILY_DRAWDOWN_STOP_PCT", 0.01),
			MaxConsecutiveLosses: getEnvAsInt("RISK_MAX_CONSECUTIVE_LOSSES", 2),
			MinOrderValue:        getEnvAsFloat("RISK_MIN_ORDER_VALUE", 5000),
			MaxPositionValue:     getEnvAsFloat("RISK_MAX_POSITION_VALUE", 1_000_000),
			MaxOpenPositions:     getEnvAsInt("RISK_MAX_OPEN_POSITIONS", 3),
		},
		Session: SessionConfig{
			Windows:      getEnv("TRADER_SESSION_WINDOWS", "09:10-13:00,17:10-19:00"),
			Timezone:     getEnv("TRADER_TIMEZONE", "Asia/Seoul"),
			ScanInterval: getEnvAsDuration("TRADER_SCAN_INTERVAL", 60*time.Second),
		},
		Paper: PaperConfig{
			StartingEquity: getEnvAsFloat("RISK_STARTING_EQUITY", 1_000_000),
			SlippageBP:     getEnvAsFloat("PAPER_SLIPPAGE_BP", 3),
			TakerFeePct:    getEnvAsFloat("PAPER_TAKER_FEE_PCT", 0.0005),
		},
		Redis: RedisConfig{
			Host:         getEnv("REDIS_HOST", ""),
			Port:         getEnvAsInt("REDIS_PORT", 6379),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvAsInt("REDIS_DB", 0),
			PoolSize:     getEnvAsInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvAsInt("REDIS_MIN_IDLE_CONNS", 5),
			EventStream:  getEnv("REDIS_EVENT_STREAM", "trader.events"),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", ""),
			Port:            getEnvAsInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "trader"),
			Password:        getEnv("DB_PASSWORD", ""),
			Database:        getEnv("DB_NAME", "trader"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxConnections:  getEnvAsInt("DB_MAX_CONNECTIONS", 10),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Mode != "paper" && c.Mode != "live" {
		return fmt.Errorf("TRADER_MODE must be \"paper\" or \"live\", got %q", c.Mode)
	}
	if c.Mode == "live" {
		if c.Exchange.AccessKey == "" || c.Exchange.SecretKey == "" {
			return fmt.Errorf("UPBIT_ACCESS_KEY and UPBIT_SECRET_KEY are required in live mode")
		}
	}
	if c.Risk.PerTradeRiskPct <= 0 {
		return fmt.Errorf("RISK_PER_TRADE_PCT must be positive")
	}
	if c.Risk.DailyDrawdownPct <= 0 {
		return fmt.Errorf("RISK_DAILY_DRAWDOWN_STOP_PCT must be positive")
	}
	if c.Mode == "paper" && c.Paper.StartingEquity <= 0 {
		return fmt.Errorf("RISK_STARTING_EQUITY must be positive in paper mode")
	}
	if c.Session.Windows == "" {
		return fmt.Errorf("TRADER_SESSION_WINDOWS is required")
	}
	if c.Session.ScanInterval <= 0 {
		return fmt.Errorf("TRADER_SCAN_INTERVAL must be positive")
	}
	if _, err := time.LoadLocation(c.Session.Timezone); err != nil {
		return fmt.Errorf("invalid TRADER_TIMEZONE %q: %w", c.Session.Timezone, err)
	}
	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	floatValue, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return floatValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return boolValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return duration
}

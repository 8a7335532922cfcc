package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Execution (broker/exchange adapter)
	Execution ExecutionConfig

	// Pre-trade order gate
	Gate GateConfig

	// Reconciler
	Reconciler ReconcilerConfig

	// Reconciliation sweeps
	Sweeps SweepConfig

	// Persistence writer
	Persistence PersistenceConfig

	// Securities reference file (YAML)
	SecuritiesFile string

	// Logging
	LogLevel  string
	LogFormat string
	LogFile   LogFileConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver     string // postgres, sqlite
	URL        string
	SQLitePath string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// ExecutionConfig holds external execution settings
type ExecutionConfig struct {
	Mode      string  // paper
	AccountID int64   // default trading account
	RateLimit float64 // requests per second to the gateway
	Burst     int
	PaperFill bool    // auto-fill market orders in paper mode
	PaperFee  float64 // fee rate applied to simulated fills
}

// GateConfig holds pre-trade order checks
type GateConfig struct {
	Mode                string   // off, shadow, enforce
	MaxOrderNotional    float64  // 주문당 최대 금액 (0 = 제한 없음)
	MaxPositionQuantity float64  // 종목당 최대 보유 수량 (0 = 제한 없음)
	BlackList           []string // 주문 금지 종목 코드
}

// ReconcilerConfig holds position close-wait settings
type ReconcilerConfig struct {
	ClosePollInterval time.Duration
	CloseTimeout      time.Duration
}

// SweepConfig holds cron schedules for reconciliation sweeps
type SweepConfig struct {
	Enabled       bool
	OrderSchedule string
	AssetSchedule string
	RetrySchedule string
}

// PersistenceConfig holds async writer settings
type PersistenceConfig struct {
	QueueSize int
	Timeout   time.Duration
}

// LogFileConfig holds rotating log file settings
type LogFileConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			Driver:          getEnv("DB_DRIVER", "postgres"),
			URL:             getEnv("DATABASE_URL", ""),
			SQLitePath:      getEnv("SQLITE_PATH", "tradebook.db"),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		Execution: ExecutionConfig{
			Mode:      getEnv("EXECUTION_MODE", "paper"),
			AccountID: int64(getEnvAsInt("ACCOUNT_ID", 1)),
			RateLimit: getEnvAsFloat("EXECUTION_RATE_LIMIT", 10),
			Burst:     getEnvAsInt("EXECUTION_BURST", 10),
			PaperFill: getEnvAsBool("PAPER_AUTO_FILL", true),
			PaperFee:  getEnvAsFloat("PAPER_FEE_RATE", 0.001),
		},

		Gate: GateConfig{
			Mode:                getEnv("GATE_MODE", "shadow"),
			MaxOrderNotional:    getEnvAsFloat("GATE_MAX_ORDER_NOTIONAL", 0),
			MaxPositionQuantity: getEnvAsFloat("GATE_MAX_POSITION_QTY", 0),
			BlackList:           getEnvAsList("GATE_BLACKLIST"),
		},

		Reconciler: ReconcilerConfig{
			ClosePollInterval: getEnvAsDuration("CLOSE_POLL_INTERVAL", "500ms"),
			CloseTimeout:      getEnvAsDuration("CLOSE_TIMEOUT", "30s"),
		},

		Sweeps: SweepConfig{
			Enabled:       getEnvAsBool("SWEEPS_ENABLED", true),
			OrderSchedule: getEnv("ORDER_SWEEP_SCHEDULE", "*/30 * * * * *"),
			AssetSchedule: getEnv("ASSET_SWEEP_SCHEDULE", "0 * * * * *"),
			RetrySchedule: getEnv("RETRY_SCHEDULE", "*/10 * * * * *"),
		},

		Persistence: PersistenceConfig{
			QueueSize: getEnvAsInt("PERSIST_QUEUE_SIZE", 1024),
			Timeout:   getEnvAsDuration("PERSIST_TIMEOUT", "5s"),
		},

		SecuritiesFile: getEnv("SECURITIES_FILE", "securities.yaml"),

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "debug"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
		LogFile: LogFileConfig{
			Path:       getEnv("LOG_FILE", ""),
			MaxSizeMB:  getEnvAsInt("LOG_MAX_SIZE_MB", 100),
			MaxBackups: getEnvAsInt("LOG_MAX_BACKUPS", 5),
			MaxAgeDays: getEnvAsInt("LOG_MAX_AGE_DAYS", 30),
			Compress:   getEnvAsBool("LOG_COMPRESS", true),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres driver")
		}
	case "sqlite":
		if c.Database.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("DB_DRIVER must be one of: postgres, sqlite")
	}

	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Execution.Mode != "paper" {
		return fmt.Errorf("EXECUTION_MODE must be: paper")
	}

	if c.Execution.RateLimit <= 0 || c.Execution.Burst <= 0 {
		return fmt.Errorf("EXECUTION_RATE_LIMIT and EXECUTION_BURST must be positive")
	}

	switch c.Gate.Mode {
	case "off", "shadow", "enforce":
	default:
		return fmt.Errorf("GATE_MODE must be one of: off, shadow, enforce")
	}

	if c.Reconciler.ClosePollInterval <= 0 || c.Reconciler.CloseTimeout < c.Reconciler.ClosePollInterval {
		return fmt.Errorf("CLOSE_TIMEOUT must be >= CLOSE_POLL_INTERVAL > 0")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
	}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	out := make([]string, 0)
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}

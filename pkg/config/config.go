package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: every environment variable is read here and nowhere else
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database (order journal)
	Database DatabaseConfig

	// Redis (screen cache, strategy state)
	Redis RedisConfig

	// Market schedule
	Market MarketConfig

	// Trading
	Trading TradingConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Enabled reports whether a journal database is configured
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// MarketConfig holds market calendar settings used to build cron schedules
type MarketConfig struct {
	Timezone string

	// Offset after the open at which the dividend strategy rebalances.
	RebalanceHours   int
	RebalanceMinutes int
}

// Location resolves the market timezone
func (m MarketConfig) Location() (*time.Location, error) {
	return time.LoadLocation(m.Timezone)
}

// TradingConfig holds allocation and order routing settings
type TradingConfig struct {
	CashBuffer     float64 // fraction of portfolio value left uninvested
	PaperCash      float64 // starting cash of the paper broker
	OrderRateLimit int     // orders per minute
	OrderWorkers   int     // concurrent submissions per phase
	MaxJobRetries  int
}

// Load reads configuration from environment variables
// ⭐ SSOT: only this function calls os.Getenv()
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 1),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		Market: MarketConfig{
			Timezone:         getEnv("MARKET_TIMEZONE", "America/New_York"),
			RebalanceHours:   getEnvAsInt("HOURS", 0),
			RebalanceMinutes: getEnvAsInt("MINUTES", 30),
		},

		Trading: TradingConfig{
			CashBuffer:     getEnvAsFloat("CASH_BUFFER", 0.05),
			PaperCash:      getEnvAsFloat("PAPER_CASH", 100_000),
			OrderRateLimit: getEnvAsInt("ORDER_RATE_LIMIT", 200),
			OrderWorkers:   getEnvAsInt("ORDER_WORKERS", 4),
			MaxJobRetries:  getEnvAsInt("MAX_JOB_RETRIES", 0),
		},

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks configuration values
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if _, err := c.Market.Location(); err != nil {
		return fmt.Errorf("MARKET_TIMEZONE %q: %w", c.Market.Timezone, err)
	}

	if c.Market.RebalanceHours < 0 || c.Market.RebalanceHours > 6 {
		return fmt.Errorf("HOURS must be between 0 and 6, got %d", c.Market.RebalanceHours)
	}
	if c.Market.RebalanceMinutes < 0 || c.Market.RebalanceMinutes > 59 {
		return fmt.Errorf("MINUTES must be between 0 and 59, got %d", c.Market.RebalanceMinutes)
	}

	if c.Trading.CashBuffer < 0 || c.Trading.CashBuffer >= 1 {
		return fmt.Errorf("CASH_BUFFER must be in [0, 1), got %v", c.Trading.CashBuffer)
	}
	if c.Trading.OrderRateLimit <= 0 {
		return fmt.Errorf("ORDER_RATE_LIMIT must be positive")
	}
	if c.Trading.OrderWorkers <= 0 {
		return fmt.Errorf("ORDER_WORKERS must be positive")
	}
	if c.Trading.MaxJobRetries < 0 {
		return fmt.Errorf("MAX_JOB_RETRIES must not be negative")
	}

	return nil
}

// loadEnvFile tries to load .env from the working directory or next to the executable
func loadEnvFile() {
	paths := []string{".env"}

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

func getEnvAsInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	value, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
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
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Snapshot sources
const (
	SnapshotSourcePostgres = "postgres"
	SnapshotSourceAlpaca   = "alpaca"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	Database DatabaseConfig

	// Account whose snapshot is evaluated
	Account AccountConfig

	// External service configurations
	Alpaca       AlpacaConfig
	AlphaVantage AlphaVantageConfig

	// Instrument catalog configuration
	Instruments InstrumentsConfig

	// Evaluation configuration
	Evaluation EvaluationConfig

	// HTTP configuration
	HTTP HTTPConfig

	// Logging configuration
	Log LogConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL string
}

// AccountConfig identifies the account and its reporting currency
type AccountConfig struct {
	ID             string
	Currency       string
	SnapshotSource string // postgres or alpaca
}

// AlpacaConfig holds Alpaca API configuration
type AlpacaConfig struct {
	APIKey    string
	APISecret string
	BaseURL   string
}

// AlphaVantageConfig holds Alpha Vantage API configuration
type AlphaVantageConfig struct {
	APIKey              string
	RateCacheTTLSeconds int
}

// InstrumentsConfig holds the instrument catalog location and its defaults
type InstrumentsConfig struct {
	File           string
	DefaultLotSize decimal.Decimal
	DefaultFee     decimal.Decimal // flat fee for entries without a fee block
}

// EvaluationConfig bounds concurrent evaluations
type EvaluationConfig struct {
	ConcurrencyLimit int
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	Addr               string
	TimeoutSeconds     int
	CORSAllowedOrigins string
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level      string
	File       string
	Production bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		Account: AccountConfig{
			ID:             getEnvString("ACCOUNT_ID", "default"),
			Currency:       strings.ToUpper(getEnvString("ACCOUNT_CURRENCY", "USD")),
			SnapshotSource: strings.ToLower(getEnvString("SNAPSHOT_SOURCE", SnapshotSourcePostgres)),
		},
		Alpaca: AlpacaConfig{
			APIKey:    os.Getenv("ALPACA_API_KEY"),
			APISecret: os.Getenv("ALPACA_API_SECRET"),
			BaseURL:   getEnvString("ALPACA_BASE_URL", "https://paper-api.alpaca.markets"),
		},
		AlphaVantage: AlphaVantageConfig{
			APIKey:              os.Getenv("ALPHA_VANTAGE_API_KEY"),
			RateCacheTTLSeconds: getEnvInt("RATE_CACHE_TTL_SECONDS", 300),
		},
		Instruments: InstrumentsConfig{
			File:           getEnvString("INSTRUMENTS_FILE", "instruments.yaml"),
			DefaultLotSize: getEnvDecimal("DEFAULT_LOT_SIZE", decimal.NewFromInt(1)),
			DefaultFee:     getEnvDecimal("DEFAULT_FEE", decimal.Zero),
		},
		Evaluation: EvaluationConfig{
			ConcurrencyLimit: getEnvInt("EVALUATION_CONCURRENCY_LIMIT", 16),
		},
		HTTP: HTTPConfig{
			Addr:               getEnvString("HTTP_ADDR", ":8080"),
			TimeoutSeconds:     getEnvInt("HTTP_TIMEOUT_SECONDS", 15),
			CORSAllowedOrigins: getEnvString("CORS_ALLOWED_ORIGINS", "*"),
		},
		Log: LogConfig{
			Level:      getEnvString("LOG_LEVEL", "info"),
			File:       os.Getenv("LOG_FILE"),
			Production: getEnvString("APP_ENV", "") == "production",
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Account.SnapshotSource {
	case SnapshotSourcePostgres:
		if !c.HasDatabase() {
			return fmt.Errorf("SNAPSHOT_SOURCE=postgres requires DATABASE_URL")
		}
	case SnapshotSourceAlpaca:
		if !c.HasAlpaca() {
			return fmt.Errorf("SNAPSHOT_SOURCE=alpaca requires ALPACA_API_KEY and ALPACA_API_SECRET")
		}
	default:
		return fmt.Errorf("SNAPSHOT_SOURCE must be %q or %q, got %q",
			SnapshotSourcePostgres, SnapshotSourceAlpaca, c.Account.SnapshotSource)
	}

	if len(c.Account.Currency) != 3 {
		return fmt.Errorf("ACCOUNT_CURRENCY must be a 3-letter code, got %q", c.Account.Currency)
	}
	if c.Account.ID == "" {
		return fmt.Errorf("ACCOUNT_ID must not be empty")
	}

	if !c.Instruments.DefaultLotSize.IsPositive() {
		return fmt.Errorf("DEFAULT_LOT_SIZE must be positive, got %s", c.Instruments.DefaultLotSize)
	}
	if c.Instruments.DefaultFee.IsNegative() {
		return fmt.Errorf("DEFAULT_FEE must not be negative, got %s", c.Instruments.DefaultFee)
	}

	// Validate positive integers
	if c.Evaluation.ConcurrencyLimit <= 0 {
		return fmt.Errorf("EVALUATION_CONCURRENCY_LIMIT must be positive, got %d", c.Evaluation.ConcurrencyLimit)
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT_SECONDS must be positive, got %d", c.HTTP.TimeoutSeconds)
	}
	if c.AlphaVantage.RateCacheTTLSeconds <= 0 {
		return fmt.Errorf("RATE_CACHE_TTL_SECONDS must be positive, got %d", c.AlphaVantage.RateCacheTTLSeconds)
	}

	return nil
}

// HasDatabase returns true if database configuration is available
func (c *Config) HasDatabase() bool {
	return c.Database.URL != ""
}

// HasAlpaca returns true if Alpaca configuration is available
func (c *Config) HasAlpaca() bool {
	return c.Alpaca.APIKey != "" && c.Alpaca.APISecret != ""
}

// HasAlphaVantage returns true if Alpha Vantage configuration is available
func (c *Config) HasAlphaVantage() bool {
	return c.AlphaVantage.APIKey != ""
}

func getEnvString(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if val := os.Getenv(key); val != "" {
		if parsed, err := decimal.NewFromString(val); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// NewTestConfig creates a Config with default values for testing
func NewTestConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			URL: "",
		},
		Account: AccountConfig{
			ID:             "default",
			Currency:       "USD",
			SnapshotSource: SnapshotSourcePostgres,
		},
		Alpaca: AlpacaConfig{
			APIKey:    "",
			APISecret: "",
			BaseURL:   "https://paper-api.alpaca.markets",
		},
		AlphaVantage: AlphaVantageConfig{
			APIKey:              "",
			RateCacheTTLSeconds: 300,
		},
		Instruments: InstrumentsConfig{
			File:           "instruments.yaml",
			DefaultLotSize: decimal.NewFromInt(1),
			DefaultFee:     decimal.Zero,
		},
		Evaluation: EvaluationConfig{
			ConcurrencyLimit: 16,
		},
		HTTP: HTTPConfig{
			Addr:               ":8080",
			TimeoutSeconds:     15,
			CORSAllowedOrigins: "*",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

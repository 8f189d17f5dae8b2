// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port     string
	Env      string // "development", "staging", "production"
	LogLevel string

	// Database
	DatabaseURL string // PostgreSQL connection string (optional, uses in-memory if not set)

	// GSMA mobile money gateway
	GSMABaseURL  string
	GSMAAPIKey   string
	GSMAUsername string // Optional, some gateways require a second header
	GSMAEnv      string // "sandbox" or "production"
	GSMAProvider string // Default provider for orange_money dispatch

	// Fraud vendor (FraudLabs Pro style order-verify API)
	FraudVendorURL    string
	FraudVendorAPIKey string

	// Payment settings
	Currency       string  // ISO currency for all transfers
	TransferFeePct float64 // Fee recorded on each transaction row

	// Observability
	OTLPEndpoint string // Empty disables tracing
}

// Defaults for the Botswana sandbox deployment.
const (
	DefaultPort           = "8080"
	DefaultEnv            = "development"
	DefaultLogLevel       = "info"
	DefaultGSMABaseURL    = "https://sandbox.gsma-gateway.com"
	DefaultGSMAEnv        = "sandbox"
	DefaultGSMAProvider   = "ORANGE"
	DefaultFraudVendorURL = "https://api.fraudlabspro.com/v1/order/verify"
	DefaultCurrency       = "BWP"
	DefaultTransferFeePct = 0.002
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:              getEnv("PORT", DefaultPort),
		Env:               getEnv("ENV", DefaultEnv),
		LogLevel:          getEnv("LOG_LEVEL", DefaultLogLevel),
		DatabaseURL:       os.Getenv("DATABASE_URL"), // Optional, uses in-memory if not set
		GSMABaseURL:       getEnv("GSMA_BASE_URL", DefaultGSMABaseURL),
		GSMAAPIKey:        os.Getenv("GSMA_API_KEY"),
		GSMAUsername:      os.Getenv("GSMA_USERNAME"),
		GSMAEnv:           getEnv("GSMA_ENV", DefaultGSMAEnv),
		GSMAProvider:      getEnv("GSMA_PROVIDER", DefaultGSMAProvider),
		FraudVendorURL:    getEnv("FRAUDLABSPRO_API_URL", DefaultFraudVendorURL),
		FraudVendorAPIKey: os.Getenv("FRAUDLABSPRO_API_KEY"),
		Currency:          getEnv("CURRENCY", DefaultCurrency),
		TransferFeePct:    getEnvFloat("TRANSFER_FEE_PCT", DefaultTransferFeePct),
		OTLPEndpoint:      os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present
func (c *Config) Validate() error {
	if c.GSMABaseURL == "" {
		return fmt.Errorf("GSMA_BASE_URL is required")
	}
	if c.GSMAEnv != "sandbox" && c.GSMAEnv != "production" {
		return fmt.Errorf("GSMA_ENV must be 'sandbox' or 'production', got %q", c.GSMAEnv)
	}
	if c.TransferFeePct < 0 || c.TransferFeePct >= 1 {
		return fmt.Errorf("TRANSFER_FEE_PCT must be in [0, 1), got %f", c.TransferFeePct)
	}
	// The sandbox gateway accepts unauthenticated calls; production does not.
	if c.IsProduction() {
		if c.GSMAAPIKey == "" {
			return fmt.Errorf("GSMA_API_KEY is required in production")
		}
		if c.FraudVendorAPIKey == "" {
			return fmt.Errorf("FRAUDLABSPRO_API_KEY is required in production")
		}
	}
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

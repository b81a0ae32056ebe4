// Package config reads application configuration from environment variables,
// with an optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds all application configuration.
type Config struct {
	Port      string
	LogLevel  string
	LogFormat string // "text" or "json"

	// StepUpThreshold is the amount above which a transaction requires OTP
	// verification before it is committed.
	StepUpThreshold decimal.Decimal

	// OTPLength is the number of digits in a generated one-time code.
	OTPLength int
}

// Defaults applied when the corresponding env var is unset.
const (
	DefaultPort      = "8080"
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
	DefaultThreshold = "10000"
	DefaultOTPLength = 6
)

// Load reads configuration from the environment. A .env file is loaded first
// if present (ignored when absent).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:      getEnv("PORT", DefaultPort),
		LogLevel:  getEnv("LOG_LEVEL", DefaultLogLevel),
		LogFormat: getEnv("LOG_FORMAT", DefaultLogFormat),
		OTPLength: getEnvInt("OTP_LENGTH", DefaultOTPLength),
	}

	raw := getEnv("STEP_UP_THRESHOLD", DefaultThreshold)
	threshold, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, fmt.Errorf("STEP_UP_THRESHOLD %q is not a valid decimal: %w", raw, err)
	}
	if threshold.Sign() <= 0 {
		return nil, fmt.Errorf("STEP_UP_THRESHOLD must be positive, got %s", threshold)
	}
	cfg.StepUpThreshold = threshold

	if cfg.OTPLength < 4 || cfg.OTPLength > 10 {
		return nil, fmt.Errorf("OTP_LENGTH must be between 4 and 10, got %d", cfg.OTPLength)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

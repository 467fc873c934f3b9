package config

import (
	"os"
	"strconv"
)

// Config holds the application configuration
// Note: This is a stateless configuration - pattern generation needs no
// database or auth secrets
type Config struct {
	// Environment
	Environment string
	Port        string

	// Observability
	SentryDSN string // Sentry DSN for error tracking

	// Generation defaults applied when a request omits them
	DefaultOctave int
	DefaultTempo  float64
}

func Load() *Config {
	return &Config{
		Environment:   getEnv("ENVIRONMENT", "development"),
		Port:          getEnv("PORT", "8080"),
		SentryDSN:     getEnv("SENTRY_DSN", ""),
		DefaultOctave: getEnvInt("DEFAULT_OCTAVE", 4),
		DefaultTempo:  getEnvFloat("DEFAULT_TEMPO", 120),
	}
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// IsProduction returns true when running with production settings
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

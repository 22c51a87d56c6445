package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port string
	Env  string

	// Database configuration
	DatabaseURL string

	// Redis configuration
	RedisURL      string
	RedisPassword string

	// JWT configuration
	JWTSecret string

	// Exchange rates provider configuration
	ExchangeAPIKey  string
	ExchangeBaseURL string

	// Currency configuration
	BaseCurrency string
	RateCacheTTL time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		Env:             getEnv("ENV", "development"),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		RedisURL:        getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		JWTSecret:       getEnv("JWT_SECRET", ""),
		ExchangeAPIKey:  getEnv("EXCHANGE_API_KEY", ""),
		ExchangeBaseURL: getEnv("EXCHANGE_BASE_URL", "https://api.exchangeratesapi.io/v1/"),
		BaseCurrency:    getEnv("BASE_CURRENCY", "ARS"),
		RateCacheTTL:    time.Duration(getEnvAsInt("RATE_CACHE_TTL_SECONDS", 15*60)) * time.Second,
	}

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures all required configuration is present
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters long")
	}

	if len(c.BaseCurrency) != 3 {
		return fmt.Errorf("BASE_CURRENCY must be a 3-letter ISO 4217 code")
	}

	// Exchange API key is required in production but optional in development
	if c.ExchangeAPIKey == "" && c.IsProduction() {
		return fmt.Errorf("EXCHANGE_API_KEY is required in production")
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

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

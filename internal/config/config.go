// Package config handles environment configuration loading.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration values for the application.
type Config struct {
	Port           string
	Environment    string
	DBUrl          string
	JWTSecret      string
	AllowedOrigins string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Background worker intervals.
	DispatchInterval time.Duration
	ExpiryInterval   time.Duration

	// Maximum lifetime of a delegation grant.
	MaxDelegationWindow time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		Port:                getEnv("PORT", "8080"),
		Environment:         getEnv("ENV", "dev"),
		DBUrl:               getEnv("DB_URL", ""),
		JWTSecret:           getEnv("JWT_SECRET", ""),
		AllowedOrigins:      getEnv("ALLOWED_ORIGINS", "*"),
		RedisAddr:           getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword:       getEnv("REDIS_PASSWORD", ""),
		RedisDB:             getEnvInt("REDIS_DB", 0),
		DispatchInterval:    getEnvDuration("DISPATCH_INTERVAL", 5*time.Second),
		ExpiryInterval:      getEnvDuration("DELEGATION_EXPIRY_INTERVAL", time.Minute),
		MaxDelegationWindow: getEnvDuration("MAX_DELEGATION_WINDOW", 30*24*time.Hour),
	}
}

// getEnv reads an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt reads an integer environment variable or returns a default value.
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// getEnvDuration reads a duration environment variable or returns a default value.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// GetPortInt returns the port as an integer.
func (c *Config) GetPortInt() int {
	port, err := strconv.Atoi(c.Port)
	if err != nil {
		return 8080
	}
	return port
}

// GetAddr returns the full address string for the server.
func (c *Config) GetAddr() string {
	return ":" + c.Port
}

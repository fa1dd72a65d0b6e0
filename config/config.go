// Package config provides configuration management for the conduit facade.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the configuration for the facade service.
type Config struct {
	// Port is the port number for the facade HTTP server
	Port string
	// ConduitAPIURL is the root of the Conduit REST API, e.g. https://api.realworld.io/api
	ConduitAPIURL string
	// RequestTimeout bounds a single upstream request
	RequestTimeout time.Duration
	// FetchTimeout bounds a feed fetch shared by joined callers
	FetchTimeout time.Duration
	// HomeCapacity is the size of the per-session home view LRU
	HomeCapacity int

	// SessionRedisURL selects the Redis session store; empty uses memory
	SessionRedisURL string
	// SessionRedisPasswordFile overrides the password in SessionRedisURL
	SessionRedisPasswordFile string
	// SessionTTL is the upper bound on session lifetime
	SessionTTL time.Duration

	CBFailureThreshold int
	CBSuccessThreshold int
	CBOpenTimeout      time.Duration

	// APIRateLimit and APIRateBurst throttle requests to the Conduit API
	APIRateLimit float64
	APIRateBurst int
	// ClientRateLimit and ClientRateBurst throttle each SPA client by IP
	ClientRateLimit float64
	ClientRateBurst int

	TagsTTL  time.Duration
	LogLevel string
}

// Load reads an optional .env file and then builds the config from the environment.
// Variables already set in the environment win over the file.
func Load(envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}
	cfg := NewConfig()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewConfig creates a new Config from environment variables with defaults.
func NewConfig() *Config {
	return &Config{
		Port:                     getEnv("FACADE_PORT", "9300"),
		ConduitAPIURL:            getEnv("CONDUIT_API_URL", "https://api.realworld.io/api"),
		RequestTimeout:           getDurationEnv("FACADE_REQUEST_TIMEOUT", 10*time.Second),
		FetchTimeout:             getDurationEnv("FACADE_FETCH_TIMEOUT", 15*time.Second),
		HomeCapacity:             getIntEnv("FACADE_HOME_CAPACITY", 1024),
		SessionRedisURL:          getEnv("SESSION_REDIS_URL", ""),
		SessionRedisPasswordFile: getEnv("SESSION_REDIS_PASSWORD_FILE", ""),
		SessionTTL:               getDurationEnv("SESSION_TTL", 24*time.Hour),
		CBFailureThreshold:       getIntEnv("CB_FAILURE_THRESHOLD", 5),
		CBSuccessThreshold:       getIntEnv("CB_SUCCESS_THRESHOLD", 2),
		CBOpenTimeout:            getDurationEnv("CB_OPEN_TIMEOUT", 30*time.Second),
		APIRateLimit:             getFloatEnv("API_RATE_LIMIT", 20),
		APIRateBurst:             getIntEnv("API_RATE_BURST", 40),
		ClientRateLimit:          getFloatEnv("CLIENT_RATE_LIMIT", 10),
		ClientRateBurst:          getIntEnv("CLIENT_RATE_BURST", 20),
		TagsTTL:                  getDurationEnv("TAGS_TTL", 5*time.Minute),
		LogLevel:                 getEnv("LOG_LEVEL", "info"),
	}
}

// LoadRedisPassword reads the Redis password file. It returns "" when no file is configured.
func (c *Config) LoadRedisPassword() (string, error) {
	if c.SessionRedisPasswordFile == "" {
		return "", nil
	}
	data, err := os.ReadFile(c.SessionRedisPasswordFile)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("FACADE_PORT is required")
	}
	if c.ConduitAPIURL == "" {
		return errors.New("CONDUIT_API_URL is required")
	}
	u, err := url.Parse(c.ConduitAPIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("CONDUIT_API_URL must be an absolute http(s) URL: %q", c.ConduitAPIURL)
	}
	if c.HomeCapacity <= 0 {
		return errors.New("FACADE_HOME_CAPACITY must be positive")
	}
	if c.SessionTTL <= 0 {
		return errors.New("SESSION_TTL must be positive")
	}
	if c.APIRateLimit < 0 || c.ClientRateLimit < 0 {
		return errors.New("rate limits must not be negative")
	}
	return nil
}

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDurationEnv returns the value of an environment variable as a duration or a default value.
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

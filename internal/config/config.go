package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultUsername = "demo"
	defaultTimeout  = 10 * time.Second
)

type Config struct {
	Username     string
	BaseURL      string
	Timeout      time.Duration
	RateLimitRPS float64
	RateBurst    int
	Logging      LoggingConfig
}

type LoggingConfig struct {
	Level  string
	Format string
	File   string
}

// LoadEnvFile loads variables from path into the environment without
// overriding ones that are already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if strings.TrimSpace(path) == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func Load() (*Config, error) {
	timeout, err := getenvDuration("GEONAMES_TIMEOUT", defaultTimeout)
	if err != nil {
		return nil, err
	}
	rps, err := getenvFloat("GEONAMES_RATE_LIMIT_RPS", 0)
	if err != nil {
		return nil, err
	}
	burst, err := getenvInt("GEONAMES_RATE_BURST", 1)
	if err != nil {
		return nil, err
	}
	cfg := &Config{
		Username:     getenv("GEONAMES_USERNAME", defaultUsername),
		BaseURL:      os.Getenv("GEONAMES_BASE_URL"),
		Timeout:      timeout,
		RateLimitRPS: rps,
		RateBurst:    burst,
		Logging: LoggingConfig{
			Level:  getenv("LOG_LEVEL", "warn"),
			Format: getenv("LOG_FORMAT", "text"),
			File:   os.Getenv("LOG_FILE"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first setting that cannot be used.
func (c *Config) Validate() error {
	if c.Timeout < 0 {
		return fmt.Errorf("GEONAMES_TIMEOUT must not be negative, got %s", c.Timeout)
	}
	if c.RateLimitRPS < 0 {
		return fmt.Errorf("GEONAMES_RATE_LIMIT_RPS must not be negative, got %v", c.RateLimitRPS)
	}
	if c.RateBurst < 0 {
		return fmt.Errorf("GEONAMES_RATE_BURST must not be negative, got %d", c.RateBurst)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.Logging.Format)
	}
	return nil
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return parsed, nil
}

func getenvFloat(key string, def float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return parsed, nil
}

func getenvInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return parsed, nil
}

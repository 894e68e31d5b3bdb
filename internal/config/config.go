// Package config provides application configuration loading from environment.
package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"gitlab.com/yelinaung/fx-calc/internal/logger"
	"gitlab.com/yelinaung/fx-calc/internal/models"
)

const defaultCacheSeconds = 3600

// Config holds all configuration for the application.
type Config struct {
	HTTPAddr    string `env:"HTTP_ADDR" env-default:":8080"`
	DatabaseURL string `env:"DATABASE_URL"`
	LogLevel    string `env:"LOG_LEVEL" env-default:"info"`
	LogFormat   string `env:"LOG_FORMAT" env-default:"console"`
	LogHashSalt string `env:"LOG_HASH_SALT"`

	Exchange  ExchangeConfig
	Telemetry TelemetryConfig
}

// ExchangeConfig configures the rate provider and its cache.
type ExchangeConfig struct {
	Provider     string        `env:"EXCHANGE_RATE_API_PROVIDER" env-default:"exchangerate-api"`
	APIKey       string        `env:"EXCHANGE_RATE_API_KEY"`
	BaseURL      string        `env:"EXCHANGE_RATE_API_URL"`
	RateLimit    float64       `env:"EXCHANGE_RATE_API_RATE_LIMIT" env-default:"2"`
	Timeout      time.Duration `env:"EXCHANGE_RATE_API_TIMEOUT" env-default:"10s"`
	MaxAttempts  int           `env:"EXCHANGE_RATE_API_MAX_ATTEMPTS" env-default:"3"`
	RetryDelay   time.Duration `env:"EXCHANGE_RATE_API_RETRY_DELAY" env-default:"1s"`
	BaseCurrency string        `env:"EXCHANGE_RATE_BASE_CURRENCY" env-default:"USD"`
	// CacheSeconds is the TTL in whole seconds. EXCHANGE_RATE_CACHE_TTL is
	// accepted as a duration when this is unset.
	CacheSeconds int `env:"EXCHANGE_RATE_CACHE_REVALIDATE_SECONDS"`
}

// TelemetryConfig selects the OpenTelemetry exporter.
type TelemetryConfig struct {
	Exporter    string `env:"OTEL_EXPORTER" env-default:"none"`
	ServiceName string `env:"OTEL_SERVICE_NAME" env-default:"fx-calc"`
}

var (
	validProviders = []string{"exchangerate-api", "frankfurter", "mock"}
	validExporters = []string{"none", "stdout", "otlp-http", "otlp-grpc"}
	validFormats   = []string{"console", "json"}
)

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	var errs []string
	errs = append(errs, cfg.applyAliases()...)
	errs = append(errs, cfg.validate()...)
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return cfg, nil
}

// applyAliases fills fields from their legacy variable names.
func (c *Config) applyAliases() []string {
	var errs []string

	if c.Exchange.BaseURL == "" {
		c.Exchange.BaseURL = os.Getenv("EXCHANGE_RATE_API_BASE_URL")
	}

	if c.Exchange.CacheSeconds == 0 {
		c.Exchange.CacheSeconds = defaultCacheSeconds
		if raw := strings.TrimSpace(os.Getenv("EXCHANGE_RATE_CACHE_TTL")); raw != "" {
			ttl, err := parseTTL(raw)
			if err != nil {
				errs = append(errs, fmt.Sprintf("EXCHANGE_RATE_CACHE_TTL is invalid: %v", err))
			} else {
				c.Exchange.CacheSeconds = int(ttl / time.Second)
			}
		}
	}

	c.Exchange.Provider = strings.ToLower(strings.TrimSpace(c.Exchange.Provider))
	c.Exchange.BaseCurrency = models.NormalizeCode(c.Exchange.BaseCurrency)
	c.Telemetry.Exporter = strings.ToLower(strings.TrimSpace(c.Telemetry.Exporter))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	return errs
}

// parseTTL accepts a Go duration ("30m") or bare seconds ("1800").
func parseTTL(raw string) (time.Duration, error) {
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(raw)
}

// validate checks that all required configuration is present and sane.
func (c *Config) validate() []string {
	var errs []string

	if c.DatabaseURL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}

	if !slices.Contains(validProviders, c.Exchange.Provider) {
		errs = append(errs, fmt.Sprintf("EXCHANGE_RATE_API_PROVIDER must be one of %s", strings.Join(validProviders, ", ")))
	}
	if c.Exchange.Provider == "exchangerate-api" && c.Exchange.APIKey == "" {
		errs = append(errs, "EXCHANGE_RATE_API_KEY is required for the exchangerate-api provider")
	}
	if c.Exchange.RateLimit <= 0 {
		errs = append(errs, "EXCHANGE_RATE_API_RATE_LIMIT must be greater than zero")
	}
	if c.Exchange.Timeout <= 0 {
		errs = append(errs, "EXCHANGE_RATE_API_TIMEOUT must be greater than zero")
	}
	if c.Exchange.MaxAttempts < 1 {
		errs = append(errs, "EXCHANGE_RATE_API_MAX_ATTEMPTS must be at least 1")
	}
	if c.Exchange.RetryDelay <= 0 {
		errs = append(errs, "EXCHANGE_RATE_API_RETRY_DELAY must be greater than zero")
	}
	if c.Exchange.CacheSeconds <= 0 {
		errs = append(errs, "EXCHANGE_RATE_CACHE_REVALIDATE_SECONDS must be greater than zero")
	}
	if _, ok := models.NewCurrencyRegistry().Lookup(c.Exchange.BaseCurrency); !ok {
		errs = append(errs, fmt.Sprintf("EXCHANGE_RATE_BASE_CURRENCY %q is not supported", c.Exchange.BaseCurrency))
	}

	if !slices.Contains(validExporters, c.Telemetry.Exporter) {
		errs = append(errs, fmt.Sprintf("OTEL_EXPORTER must be one of %s", strings.Join(validExporters, ", ")))
	}
	if !slices.Contains(validFormats, c.LogFormat) {
		errs = append(errs, "LOG_FORMAT must be console or json")
	}

	return errs
}

// CacheDuration returns the exchange rate cache TTL.
func (c *Config) CacheDuration() time.Duration {
	return time.Duration(c.Exchange.CacheSeconds) * time.Second
}

// String renders the configuration for startup logs with secrets masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"http_addr=%s provider=%s api_key=%s base_currency=%s cache=%s rate_limit=%g attempts=%d otel=%s",
		c.HTTPAddr,
		c.Exchange.Provider,
		logger.MaskSecret(c.Exchange.APIKey),
		c.Exchange.BaseCurrency,
		c.CacheDuration(),
		c.Exchange.RateLimit,
		c.Exchange.MaxAttempts,
		c.Telemetry.Exporter,
	)
}

// Package config provides application configuration loading from environment.
package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Telemetry exporter names accepted in OTEL_EXPORTER.
const (
	ExporterNone     = "none"
	ExporterStdout   = "stdout"
	ExporterOTLPHTTP = "otlp-http"
	ExporterOTLPGRPC = "otlp-grpc"
)

// Config holds all configuration for the application.
type Config struct {
	DatabaseURL      string        `env:"DATABASE_URL"`
	LogLevel         string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat        string        `env:"LOG_FORMAT" envDefault:"console"`
	LogHashSalt      string        `env:"LOG_HASH_SALT"`
	TelegramBotToken string        `env:"TELEGRAM_BOT_TOKEN"`
	GeminiAPIKey     string        `env:"GEMINI_API_KEY"`
	IndexSeries      string        `env:"INDEX_SERIES" envDefault:"IRL"`
	IndexSourceURL   string        `env:"INDEX_SOURCE_URL"`
	IndexCacheTTL    time.Duration `env:"INDEX_CACHE_TTL" envDefault:"12h"`
	IndexHTTPTimeout time.Duration `env:"INDEX_HTTP_TIMEOUT" envDefault:"5s"`
	OTelExporter     string        `env:"OTEL_EXPORTER" envDefault:"none"`
	OTelServiceName  string        `env:"OTEL_SERVICE_NAME" envDefault:"lease-engine"`
	DefaultTimezone  string        `env:"DEFAULT_TIMEZONE" envDefault:"Europe/Paris"`
	ActorUserID      int64         `env:"ACTOR_USER_ID"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.OTelExporter = strings.ToLower(strings.TrimSpace(cfg.OTelExporter))
	cfg.IndexSeries = strings.ToUpper(strings.TrimSpace(cfg.IndexSeries))

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate checks that all required configuration is present.
func (c *Config) validate() error {
	var errs []string

	if c.DatabaseURL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}

	if c.LogHashSalt != "" && len(c.LogHashSalt) < 32 {
		errs = append(errs, "LOG_HASH_SALT must be at least 32 characters")
	}

	if c.LogFormat != "console" && c.LogFormat != "json" {
		errs = append(errs, "LOG_FORMAT must be console or json")
	}

	exporters := []string{ExporterNone, ExporterStdout, ExporterOTLPHTTP, ExporterOTLPGRPC}
	if !slices.Contains(exporters, c.OTelExporter) {
		errs = append(errs, "OTEL_EXPORTER must be one of "+strings.Join(exporters, ", "))
	}

	if c.IndexSeries == "" {
		errs = append(errs, "INDEX_SERIES must not be empty")
	}

	if c.IndexCacheTTL <= 0 {
		errs = append(errs, "INDEX_CACHE_TTL must be positive")
	}

	if c.IndexHTTPTimeout <= 0 {
		errs = append(errs, "INDEX_HTTP_TIMEOUT must be positive")
	}

	if _, err := time.LoadLocation(c.DefaultTimezone); err != nil {
		errs = append(errs, fmt.Sprintf("DEFAULT_TIMEZONE %q is not a valid location", c.DefaultTimezone))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// Location returns the configured default time zone. validate guarantees it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.DefaultTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// TelegramEnabled reports whether commit notifications go to Telegram.
func (c *Config) TelegramEnabled() bool {
	return c.TelegramBotToken != ""
}

// GeminiEnabled reports whether category suggestions are available.
func (c *Config) GeminiEnabled() bool {
	return c.GeminiAPIKey != ""
}

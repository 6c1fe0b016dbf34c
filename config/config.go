package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// Server
	Port        string `envconfig:"PORT" default:"8080"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	// Database
	PostgresDSN string `envconfig:"POSTGRES_DSN" required:"true"`

	// Cache
	RedisAddr string `envconfig:"REDIS_ADDR" required:"true"`

	// Providers
	OpenAIAPIKey    string `envconfig:"OPENAI_API_KEY"`
	GeminiAPIKey    string `envconfig:"GEMINI_API_KEY"`
	AnthropicAPIKey string `envconfig:"ANTHROPIC_API_KEY"`

	// Budget
	BudgetTotalUSD       float64       `envconfig:"BUDGET_TOTAL_USD" default:"100"`
	BudgetHardCeilingPct float64       `envconfig:"BUDGET_HARD_CEILING_PCT" default:"0.95"`
	BudgetAlertCooldown  time.Duration `envconfig:"BUDGET_ALERT_COOLDOWN" default:"15m"`

	// Circuit breaker
	BreakerFailureThreshold uint32        `envconfig:"BREAKER_FAILURE_THRESHOLD" default:"5"`
	BreakerCooldown         time.Duration `envconfig:"BREAKER_COOLDOWN" default:"5m"`

	// Observability
	OTELExporterType     string `envconfig:"OTEL_EXPORTER_TYPE" default:"stdout"`
	OTELExporterEndpoint string `envconfig:"OTEL_EXPORTER_ENDPOINT" default:"localhost:4317"`

	// Rate Limiting
	DefaultRateLimitTPM int64 `envconfig:"DEFAULT_RATE_LIMIT_TPM" default:"100000"`
}

func Load() (*Config, error) {
	// Load .env file if present (non-fatal if missing)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if cfg.OpenAIAPIKey == "" && cfg.GeminiAPIKey == "" && cfg.AnthropicAPIKey == "" {
		return nil, fmt.Errorf("at least one provider API key is required")
	}
	return &cfg, nil
}

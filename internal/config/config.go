package config

import (
	"fmt"
	"time"

	"github.com/Netflix/go-env"

	"template-pipeline/internal/delivery"
)

type Config struct {
	DatabaseDSN string `env:"DATABASE_DSN,required=true"`
	RabbitMQURL string `env:"RABBITMQ_URL,required=true"`
	RedisURL    string `env:"REDIS_URL,required=true"`

	GraphAPIBaseURL string `env:"GRAPH_API_BASE_URL,default=https://graph.facebook.com/v19.0"`
	GraphAPIToken   string `env:"GRAPH_API_TOKEN,required=true"`
	PhoneNumberID   string `env:"PHONE_NUMBER_ID,required=true"`

	RateLimitPerSec   int    `env:"RATE_LIMIT_PER_SEC,default=100"`
	WorkerConcurrency int    `env:"WORKER_CONCURRENCY,default=16"`
	APIPort           int    `env:"API_PORT,default=8080"`
	LogLevel          string `env:"LOG_LEVEL,default=info"`

	MaxRetries         int     `env:"MAX_RETRIES,default=3"`
	BaseRetryDelayMS   int     `env:"BASE_RETRY_DELAY_MS,default=5000"`
	BackoffMultiplier  float64 `env:"BACKOFF_MULTIPLIER,default=2"`
	PaymentDelayFactor float64 `env:"PAYMENT_DELAY_FACTOR,default=2"`
	FallbackAnyAttempt bool    `env:"FALLBACK_ANY_ATTEMPT,default=false"`

	QualityRefreshInterval time.Duration `env:"QUALITY_REFRESH_INTERVAL,default=5m"`

	// FallbackMap is a comma separated list of original:substitute template
	// name pairs, e.g. "promo_v2:promo_v1,welcome_b:welcome_a".
	FallbackMap string `env:"FALLBACK_MAP,default="`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if _, err := cfg.FallbackPairs(); err != nil {
		return nil, fmt.Errorf("invalid FALLBACK_MAP: %w", err)
	}
	return &cfg, nil
}

// BaseRetryDelay returns the configured base retry delay as a duration.
func (c *Config) BaseRetryDelay() time.Duration {
	return time.Duration(c.BaseRetryDelayMS) * time.Millisecond
}

// FallbackPairs parses the FALLBACK_MAP pair list.
func (c *Config) FallbackPairs() (map[string]string, error) {
	return delivery.ParsePairs(c.FallbackMap)
}

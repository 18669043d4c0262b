// Package config holds the service configuration: provider credentials,
// client resilience settings, storage and durable-execution endpoints.
package config

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
)

// Provider identifiers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// ErrMissingAPIKey indicates that the selected provider has no credentials.
var ErrMissingAPIKey = errors.New("missing API key")

var validate = validator.New(validator.WithRequiredStructEnabled())

// Config is the complete service configuration.
type Config struct {
	HTTPAddr       string `json:"http_addr" validate:"required"`
	SchemesDir     string `json:"schemes_dir" validate:"required"`
	MaxConcurrency int    `json:"max_concurrency" validate:"min=1,max=64"`

	Log      LogConfig      `json:"log"`
	LLM      LLMConfig      `json:"llm"`
	Cache    CacheConfig    `json:"cache"`
	Temporal TemporalConfig `json:"temporal"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `json:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `json:"format" validate:"oneof=text json"`
}

// LLMConfig configures the completion client.
type LLMConfig struct {
	Provider    string        `json:"provider" validate:"oneof=openai anthropic"`
	Model       string        `json:"model" validate:"required"`
	MaxTokens   int           `json:"max_tokens" validate:"min=1"`
	HTTPTimeout time.Duration `json:"http_timeout" validate:"gt=0"`
	HTTPClient  *http.Client  `json:"-" validate:"-"`

	Providers map[string]ProviderConfig `json:"providers" validate:"dive"`
	Retry     RetryConfig               `json:"retry"`
	RateLimit RateLimitConfig           `json:"rate_limit"`
}

// ProviderConfig holds provider endpoint and credentials.
type ProviderConfig struct {
	Endpoint string            `json:"endpoint" validate:"omitempty,url"`
	APIKey   string            `json:"-"` // Sensitive, not serialized
	Timeout  time.Duration     `json:"timeout"`
	Headers  map[string]string `json:"headers"`
}

// RetryConfig controls retries of failed completion calls.
type RetryConfig struct {
	MaxAttempts     int           `json:"max_attempts" validate:"min=1"`
	MaxElapsedTime  time.Duration `json:"max_elapsed_time" validate:"gte=0"`
	InitialInterval time.Duration `json:"initial_interval" validate:"gt=0"`
	MaxInterval     time.Duration `json:"max_interval" validate:"gtefield=InitialInterval"`
	UseJitter       bool          `json:"use_jitter"`
}

// RateLimitConfig configures the in-process token bucket per provider/model.
type RateLimitConfig struct {
	Enabled         bool    `json:"enabled"`
	TokensPerSecond float64 `json:"tokens_per_second" validate:"required_if=Enabled true,gte=0"`
	BurstSize       int     `json:"burst_size" validate:"required_if=Enabled true,gte=0"`
}

// CacheConfig configures the Redis response cache. An empty address
// disables caching.
type CacheConfig struct {
	RedisAddr     string        `json:"redis_addr"`
	RedisPassword string        `json:"-"` // Sensitive field excluded from JSON.
	RedisDB       int           `json:"redis_db" validate:"gte=0"`
	TTL           time.Duration `json:"ttl" validate:"gte=0"`
}

// Enabled reports whether a Redis address is configured.
func (c CacheConfig) Enabled() bool { return c.RedisAddr != "" }

// TemporalConfig locates the Temporal frontend. An empty host:port
// lets the SDK use its default.
type TemporalConfig struct {
	HostPort  string `json:"host_port"`
	Namespace string `json:"namespace"`
	TaskQueue string `json:"task_queue" validate:"required"`
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// ActiveProvider returns the configuration of the selected provider and
// fails when it has no API key.
func (c *LLMConfig) ActiveProvider() (ProviderConfig, error) {
	p := c.Providers[c.Provider]
	if p.APIKey == "" {
		return p, fmt.Errorf("%w for provider %q", ErrMissingAPIKey, c.Provider)
	}
	return p, nil
}

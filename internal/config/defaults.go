package config

import "time"

// HTTP and connection constants.
const (
	DefaultHTTPAddr           = ":8080"
	DefaultHTTPTimeoutSeconds = 60
	DefaultMaxTokens          = 1000
)

// Retry constants.
const (
	DefaultMaxAttempts     = 3
	DefaultMaxElapsedTime  = 2 * time.Minute
	DefaultInitialInterval = 500 * time.Millisecond
	DefaultMaxInterval     = 10 * time.Second
)

// Rate limiting constants.
const (
	DefaultTokensPerSecond = 5
	DefaultBurstSize       = 10
)

// Evaluation, cache and worker constants.
const (
	DefaultMaxConcurrency = 5
	DefaultCacheTTL       = 24 * time.Hour
	DefaultSchemesDir     = "schemes"
	DefaultModel          = "gpt-4.1-mini"
	DefaultTaskQueue      = "rubric-evaluation"
)

// DefaultConfig returns a configuration with production defaults and no
// credentials.
func DefaultConfig() *Config {
	return &Config{
		HTTPAddr:       DefaultHTTPAddr,
		SchemesDir:     DefaultSchemesDir,
		MaxConcurrency: DefaultMaxConcurrency,
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		LLM: LLMConfig{
			Provider:    ProviderOpenAI,
			Model:       DefaultModel,
			MaxTokens:   DefaultMaxTokens,
			HTTPTimeout: DefaultHTTPTimeoutSeconds * time.Second,
			Providers: map[string]ProviderConfig{
				ProviderOpenAI:    {},
				ProviderAnthropic: {},
			},
			Retry: RetryConfig{
				MaxAttempts:     DefaultMaxAttempts,
				MaxElapsedTime:  DefaultMaxElapsedTime,
				InitialInterval: DefaultInitialInterval,
				MaxInterval:     DefaultMaxInterval,
				UseJitter:       true,
			},
			RateLimit: RateLimitConfig{
				Enabled:         true,
				TokensPerSecond: DefaultTokensPerSecond,
				BurstSize:       DefaultBurstSize,
			},
		},
		Cache: CacheConfig{
			TTL: DefaultCacheTTL,
		},
		Temporal: TemporalConfig{
			TaskQueue: DefaultTaskQueue,
		},
	}
}

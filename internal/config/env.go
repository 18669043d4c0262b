package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// LookupFunc has the signature of os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// Load returns the defaults overridden by the process environment.
func Load() (*Config, error) {
	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables. Unset and empty
// variables leave the current value alone.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	openai := c.LLM.Providers[ProviderOpenAI]
	if v, ok := get("OPENAI_API_KEY"); ok {
		openai.APIKey = v
	}
	if v, ok := get("OPENAI_BASE_URL"); ok {
		openai.Endpoint = strings.TrimRight(v, "/")
	}
	anthropic := c.LLM.Providers[ProviderAnthropic]
	if v, ok := get("ANTHROPIC_API_KEY"); ok {
		anthropic.APIKey = v
	}
	if v, ok := get("ANTHROPIC_BASE_URL"); ok {
		anthropic.Endpoint = strings.TrimRight(v, "/")
	}
	if c.LLM.Providers == nil {
		c.LLM.Providers = make(map[string]ProviderConfig, 2)
	}
	c.LLM.Providers[ProviderOpenAI] = openai
	c.LLM.Providers[ProviderAnthropic] = anthropic

	if v, ok := get("LLM_PROVIDER"); ok {
		c.LLM.Provider = strings.ToLower(v)
	}
	if v, ok := get("OPENAI_MODEL"); ok {
		c.LLM.Model = v
	}
	if v, ok := get("LOG_LEVEL"); ok {
		c.Log.Level = strings.ToLower(v)
	}
	if v, ok := get("LOG_FORMAT"); ok {
		c.Log.Format = strings.ToLower(v)
	}
	if v, ok := get("SCHEMES_DIR"); ok {
		c.SchemesDir = v
	}
	if v, ok := get("HTTP_ADDR"); ok {
		c.HTTPAddr = v
	}
	if v, ok := get("REDIS_ADDR"); ok {
		c.Cache.RedisAddr = v
	}
	if v, ok := get("REDIS_PASSWORD"); ok {
		c.Cache.RedisPassword = v
	}
	if v, ok := get("TEMPORAL_HOSTPORT"); ok {
		c.Temporal.HostPort = v
	}
	if v, ok := get("TEMPORAL_NAMESPACE"); ok {
		c.Temporal.Namespace = v
	}
	if v, ok := get("TEMPORAL_TASK_QUEUE"); ok {
		c.Temporal.TaskQueue = v
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"MAX_CONCURRENCY", &c.MaxConcurrency},
		{"LLM_MAX_TOKENS", &c.LLM.MaxTokens},
		{"LLM_MAX_ATTEMPTS", &c.LLM.Retry.MaxAttempts},
		{"REDIS_DB", &c.Cache.RedisDB},
	}
	for _, f := range ints {
		if v, ok := get(f.key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("parsing %s: %w", f.key, err)
			}
			*f.dst = n
		}
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"LLM_HTTP_TIMEOUT", &c.LLM.HTTPTimeout},
		{"CACHE_TTL", &c.Cache.TTL},
	}
	for _, f := range durations {
		if v, ok := get(f.key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("parsing %s: %w", f.key, err)
			}
			*f.dst = d
		}
	}

	if v, ok := get("LLM_RATE_LIMIT_RPS"); ok {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("parsing LLM_RATE_LIMIT_RPS: %w", err)
		}
		c.LLM.RateLimit.TokensPerSecond = rps
		c.LLM.RateLimit.Enabled = rps > 0
	}
	return nil
}

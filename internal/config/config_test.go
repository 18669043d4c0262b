package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultModel, cfg.LLM.Model)
	assert.Equal(t, DefaultTaskQueue, cfg.Temporal.TaskQueue)
	assert.False(t, cfg.Cache.Enabled())
}

func TestApplyEnv(t *testing.T) {
	t.Run("overrides", func(t *testing.T) {
		cfg := DefaultConfig()
		err := cfg.ApplyEnv(envMap(map[string]string{
			"OPENAI_API_KEY":      "sk-test",
			"OPENAI_BASE_URL":     "http://localhost:9999/v1/",
			"OPENAI_MODEL":        "gpt-4.1",
			"LLM_PROVIDER":        "OpenAI",
			"LOG_LEVEL":           "DEBUG",
			"SCHEMES_DIR":         "/etc/schemes",
			"MAX_CONCURRENCY":     "8",
			"REDIS_ADDR":          "localhost:6379",
			"CACHE_TTL":           "1h",
			"TEMPORAL_TASK_QUEUE": "q",
			"LLM_RATE_LIMIT_RPS":  "0",
		}))
		require.NoError(t, err)
		require.NoError(t, cfg.Validate())

		p, err := cfg.LLM.ActiveProvider()
		require.NoError(t, err)
		assert.Equal(t, "sk-test", p.APIKey)
		assert.Equal(t, "http://localhost:9999/v1", p.Endpoint)
		assert.Equal(t, "gpt-4.1", cfg.LLM.Model)
		assert.Equal(t, "openai", cfg.LLM.Provider)
		assert.Equal(t, "debug", cfg.Log.Level)
		assert.Equal(t, "/etc/schemes", cfg.SchemesDir)
		assert.Equal(t, 8, cfg.MaxConcurrency)
		assert.True(t, cfg.Cache.Enabled())
		assert.Equal(t, time.Hour, cfg.Cache.TTL)
		assert.Equal(t, "q", cfg.Temporal.TaskQueue)
		assert.False(t, cfg.LLM.RateLimit.Enabled)
	})

	t.Run("empty values are ignored", func(t *testing.T) {
		cfg := DefaultConfig()
		require.NoError(t, cfg.ApplyEnv(envMap(map[string]string{"OPENAI_MODEL": "  "})))
		assert.Equal(t, DefaultModel, cfg.LLM.Model)
	})

	t.Run("malformed numbers", func(t *testing.T) {
		cfg := DefaultConfig()
		err := cfg.ApplyEnv(envMap(map[string]string{"MAX_CONCURRENCY": "many"}))
		require.ErrorContains(t, err, "MAX_CONCURRENCY")

		err = DefaultConfig().ApplyEnv(envMap(map[string]string{"CACHE_TTL": "forever"}))
		require.ErrorContains(t, err, "CACHE_TTL")
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{name: "unknown provider", mutate: func(c *Config) { c.LLM.Provider = "google" }},
		{name: "zero concurrency", mutate: func(c *Config) { c.MaxConcurrency = 0 }},
		{name: "bad log level", mutate: func(c *Config) { c.Log.Level = "loud" }},
		{name: "max interval below initial", mutate: func(c *Config) { c.LLM.Retry.MaxInterval = time.Millisecond }},
		{name: "enabled limiter without rate", mutate: func(c *Config) { c.LLM.RateLimit.TokensPerSecond = 0 }},
		{name: "missing task queue", mutate: func(c *Config) { c.Temporal.TaskQueue = "" }},
		{name: "bad endpoint", mutate: func(c *Config) {
			c.LLM.Providers[ProviderOpenAI] = ProviderConfig{Endpoint: "not a url"}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			require.ErrorContains(t, cfg.Validate(), "invalid configuration")
		})
	}
}

func TestActiveProviderRequiresKey(t *testing.T) {
	cfg := DefaultConfig()
	_, err := cfg.LLM.ActiveProvider()
	require.ErrorIs(t, err, ErrMissingAPIKey)
}

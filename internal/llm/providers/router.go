// Package providers adapts the provider-agnostic transport types to the
// OpenAI chat completions and Anthropic messages HTTP APIs.
package providers

import (
	"fmt"

	"github.com/ahrav/go-rubric/internal/config"
	llmerrors "github.com/ahrav/go-rubric/internal/llm/errors"
	"github.com/ahrav/go-rubric/internal/llm/transport"
)

// Supported provider identifiers. They match the configuration keys.
const (
	ProviderOpenAI    = config.ProviderOpenAI
	ProviderAnthropic = config.ProviderAnthropic
)

// NewRouter creates a router over the configured providers. Providers
// without an API key are skipped.
func NewRouter(configs map[string]config.ProviderConfig) (transport.Router, error) {
	adapters := make(map[string]transport.ProviderAdapter, len(configs))

	for name, cfg := range configs {
		if cfg.APIKey == "" {
			continue
		}
		switch name {
		case ProviderOpenAI:
			adapters[name] = NewOpenAIAdapter(cfg)
		case ProviderAnthropic:
			adapters[name] = NewAnthropicAdapter(cfg)
		default:
			return nil, fmt.Errorf("%w: %s", llmerrors.ErrUnknownProvider, name)
		}
	}

	return &router{adapters: adapters}, nil
}

type router struct {
	adapters map[string]transport.ProviderAdapter
}

// Pick returns the adapter registered for provider.
func (r *router) Pick(provider, _ string) (transport.ProviderAdapter, error) {
	adapter, ok := r.adapters[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", llmerrors.ErrUnknownProvider, provider)
	}
	return adapter, nil
}

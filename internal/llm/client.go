// Package llm provides the completion client used by the evaluators. It
// routes prompts to OpenAI or Anthropic through a middleware chain of
// logging, response caching, retries and rate limiting.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ahrav/go-rubric/internal/config"
	"github.com/ahrav/go-rubric/internal/domain"
	"github.com/ahrav/go-rubric/internal/llm/cache"
	"github.com/ahrav/go-rubric/internal/llm/providers"
	"github.com/ahrav/go-rubric/internal/llm/ratelimit"
	"github.com/ahrav/go-rubric/internal/llm/retry"
	"github.com/ahrav/go-rubric/internal/llm/transport"
)

// Client implements scoring.Completer over the configured provider.
type Client struct {
	handler   transport.Handler
	cache     *cache.Middleware
	provider  string
	model     string
	maxTokens int
	timeout   time.Duration
}

type clientOptions struct {
	logger   *slog.Logger
	store    cache.Store
	cacheTTL time.Duration
	core     transport.Handler
}

// Option configures a Client.
type Option func(*clientOptions)

// WithLogger sets the logger shared by all middleware.
func WithLogger(l *slog.Logger) Option {
	return func(o *clientOptions) { o.logger = l }
}

// WithCache enables the response cache over store.
func WithCache(store cache.Store, ttl time.Duration) Option {
	return func(o *clientOptions) {
		o.store = store
		o.cacheTTL = ttl
	}
}

// WithCoreHandler replaces the HTTP handler at the end of the chain.
func WithCoreHandler(h transport.Handler) Option {
	return func(o *clientOptions) { o.core = h }
}

// NewClient builds the middleware chain:
// logging -> cache -> retry -> rate limit -> HTTP.
// Rate limiting sits inside the retry loop so every attempt takes a token.
func NewClient(cfg config.LLMConfig, opts ...Option) (*Client, error) {
	o := clientOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	active, err := cfg.ActiveProvider()
	if err != nil && o.core == nil {
		return nil, err
	}

	core := o.core
	if core == nil {
		router, err := providers.NewRouter(cfg.Providers)
		if err != nil {
			return nil, fmt.Errorf("building provider router: %w", err)
		}
		httpClient := cfg.HTTPClient
		if httpClient == nil {
			httpClient = &http.Client{}
		}
		core = transport.NewHTTPHandler(httpClient, router)
	}

	var attempt []transport.Middleware
	if cfg.RateLimit.Enabled {
		rl, err := ratelimit.NewRateLimitMiddleware(cfg.RateLimit, o.logger)
		if err != nil {
			return nil, fmt.Errorf("building rate limiter: %w", err)
		}
		attempt = append(attempt, rl)
	}
	retryMW, err := retry.NewRetryMiddleware(cfg.Retry, o.logger)
	if err != nil {
		return nil, fmt.Errorf("building retry middleware: %w", err)
	}
	respCache := cache.New(o.store, o.cacheTTL, o.logger)

	handler := transport.Chain(
		retryMW(transport.Chain(core, attempt...)),
		NewLoggingMiddleware(o.logger),
		respCache.Wrap,
	)

	timeout := active.Timeout
	if timeout <= 0 {
		timeout = cfg.HTTPTimeout
	}
	return &Client{
		handler:   handler,
		cache:     respCache,
		provider:  cfg.Provider,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		timeout:   timeout,
	}, nil
}

// DefaultModel returns the model used when a request names none.
func (c *Client) DefaultModel() string { return c.model }

// CacheStats returns the response cache counters.
func (c *Client) CacheStats() cache.Stats { return c.cache.Stats() }

// Complete sends one prompt and returns the answer text.
func (c *Client) Complete(ctx context.Context, req domain.CompletionRequest) (domain.Completion, error) {
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = c.model
	}
	treq := &transport.Request{
		Operation:   transport.OpCompletion,
		Provider:    c.provider,
		Model:       model,
		Prompt:      req.Prompt,
		MaxTokens:   c.maxTokens,
		Temperature: req.Temperature,
		Timeout:     c.timeout,
	}
	key, err := transport.GenerateIdemKey(treq)
	if err != nil {
		return domain.Completion{}, err
	}
	treq.IdempotencyKey = key.String()

	resp, err := c.handler.Handle(ctx, treq)
	if err != nil {
		return domain.Completion{}, fmt.Errorf("completion via %s/%s: %w", c.provider, model, err)
	}
	return domain.Completion{Text: resp.Content}, nil
}

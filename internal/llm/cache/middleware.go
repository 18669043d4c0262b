// Package cache stores successful completion responses in Redis keyed by
// their idempotency key. Redis failures never fail a request; the cache
// degrades to a passthrough.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ahrav/go-rubric/internal/config"
	"github.com/ahrav/go-rubric/internal/llm/transport"
)

const (
	defaultPoolSize   = 10
	connectionTimeout = 5 * time.Second
)

// Store is the subset of the Redis client the cache uses.
type Store interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// Connect dials Redis and verifies the connection with PING.
func Connect(ctx context.Context, cfg config.CacheConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		PoolSize: defaultPoolSize,
	})

	pingCtx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.RedisAddr, err)
	}
	return client, nil
}

// Entry is the persisted form of a cached response. Provider and model are
// kept for inspection; the key already folds them in through the
// request's idempotency key.
type Entry struct {
	Provider       string                    `json:"provider"`
	Model          string                    `json:"model"`
	Content        string                    `json:"content"`
	FinishReason   transport.FinishReason    `json:"finish_reason"`
	Usage          transport.NormalizedUsage `json:"usage"`
	StoredAtUnixMs int64                     `json:"stored_at_ms"`
}

// Stats reports cache effectiveness.
type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Errors int64 `json:"errors"`
}

// Middleware is the Redis response cache. Only successful responses are
// stored, and any Redis failure degrades to calling the next handler.
// Its Stats are safe to read concurrently.
type Middleware struct {
	store  Store
	ttl    time.Duration
	logger *slog.Logger

	hits   atomic.Int64
	misses atomic.Int64
	errors atomic.Int64
}

// New returns a cache over store. A nil store disables caching.
func New(store Store, ttl time.Duration, logger *slog.Logger) *Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return &Middleware{
		store:  store,
		ttl:    ttl,
		logger: logger.With("component", "cache"),
	}
}

// Stats returns a snapshot of the counters.
func (c *Middleware) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load(), Errors: c.errors.Load()}
}

// Wrap implements transport.Middleware. Lookups use the request's
// idempotency key; a hit returns without calling next.
func (c *Middleware) Wrap(next transport.Handler) transport.Handler {
	return transport.HandlerFunc(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
		if c.store == nil || req.IdempotencyKey == "" {
			return next.Handle(ctx, req)
		}

		key := transport.CacheKey(req.Operation, transport.IdemKey(req.IdempotencyKey))
		if resp, err := c.get(ctx, key); err == nil {
			c.hits.Add(1)
			c.logger.DebugContext(ctx, "cache hit", "key", key, "provider", req.Provider, "model", req.Model)
			return resp, nil
		} else if !errors.Is(err, redis.Nil) {
			c.errors.Add(1)
			c.logger.WarnContext(ctx, "cache read failed", "key", key, "error", err)
		}
		c.misses.Add(1)

		resp, err := next.Handle(ctx, req)
		if err != nil {
			return nil, err
		}

		if setErr := c.set(ctx, key, req, resp); setErr != nil {
			c.errors.Add(1)
			c.logger.WarnContext(ctx, "cache write failed", "key", key, "error", setErr)
		}
		return resp, nil
	})
}

func (c *Middleware) get(ctx context.Context, key string) (*transport.Response, error) {
	raw, err := c.store.Get(ctx, key).Bytes()
	if err != nil {
		return nil, err
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("decoding cache entry: %w", err)
	}
	if e.Content == "" {
		return nil, fmt.Errorf("cache entry %s has no content", key)
	}
	return &transport.Response{
		Content:      e.Content,
		FinishReason: e.FinishReason,
		Usage:        e.Usage,
		Cached:       true,
	}, nil
}

func (c *Middleware) set(ctx context.Context, key string, req *transport.Request, resp *transport.Response) error {
	b, err := json.Marshal(Entry{
		Provider:       req.Provider,
		Model:          req.Model,
		Content:        resp.Content,
		FinishReason:   resp.FinishReason,
		Usage:          resp.Usage,
		StoredAtUnixMs: time.Now().UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("encoding cache entry: %w", err)
	}
	return c.store.Set(ctx, key, b, c.ttl).Err()
}

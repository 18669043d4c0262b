// Package ratelimit throttles completion calls with one in-process token
// bucket per provider and model.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ahrav/go-rubric/internal/config"
	llmerrors "github.com/ahrav/go-rubric/internal/llm/errors"
	"github.com/ahrav/go-rubric/internal/llm/transport"
)

var (
	errTokensPerSecondInvalid = errors.New("tokens per second must be greater than 0")
	errBurstSizeInvalid       = errors.New("burst size must be greater than 0")
)

type rateLimitMiddleware struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	config   config.RateLimitConfig
	logger   *slog.Logger
}

// NewRateLimitMiddleware returns middleware that waits for a token before
// each call. When the wait would outlast the context deadline the call
// fails fast with a local RateLimitError instead.
func NewRateLimitMiddleware(cfg config.RateLimitConfig, logger *slog.Logger) (transport.Middleware, error) {
	if cfg.TokensPerSecond <= 0 {
		return nil, fmt.Errorf("%w, got %v", errTokensPerSecondInvalid, cfg.TokensPerSecond)
	}
	if cfg.BurstSize <= 0 {
		return nil, fmt.Errorf("%w, got %d", errBurstSizeInvalid, cfg.BurstSize)
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &rateLimitMiddleware{
		limiters: make(map[string]*rate.Limiter),
		config:   cfg,
		logger:   logger.With("component", "ratelimit"),
	}
	return r.middleware(), nil
}

func (r *rateLimitMiddleware) middleware() transport.Middleware {
	return func(next transport.Handler) transport.Handler {
		return transport.HandlerFunc(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
			if err := r.wait(ctx, limiterKey(req)); err != nil {
				return nil, err
			}
			return next.Handle(ctx, req)
		})
	}
}

func limiterKey(req *transport.Request) string {
	return req.Provider + ":" + req.Model
}

func (r *rateLimitMiddleware) limiter(key string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.limiters[key]
	if !ok {
		l = rate.NewLimiter(rate.Limit(r.config.TokensPerSecond), r.config.BurstSize)
		r.limiters[key] = l
	}
	return l
}

func (r *rateLimitMiddleware) wait(ctx context.Context, key string) error {
	res := r.limiter(key).Reserve()
	delay := res.Delay()
	if delay == 0 {
		return nil
	}

	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < delay {
		// Return the token so a rejected call does not drain the bucket.
		res.Cancel()
		return &llmerrors.RateLimitError{
			Provider:   key,
			Limit:      int(r.config.TokensPerSecond),
			RetryAfter: max(int(math.Ceil(delay.Seconds())), 1),
			LocalLimit: true,
		}
	}

	r.logger.DebugContext(ctx, "waiting for rate limit token", "key", key, "delay", delay)
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		res.Cancel()
		return ctx.Err()
	}
}

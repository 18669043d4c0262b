// Package retry provides the middleware that retries transient completion
// failures with capped exponential backoff and jitter.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goretry "github.com/sethvargo/go-retry"

	"github.com/ahrav/go-rubric/internal/config"
	llmerrors "github.com/ahrav/go-rubric/internal/llm/errors"
	"github.com/ahrav/go-rubric/internal/llm/transport"
)

// jitterPercent spreads concurrent retries of the same request.
const jitterPercent = 20

var (
	errMaxAttemptsInvalid     = errors.New("maxAttempts must be greater than 0")
	errInitialIntervalInvalid = errors.New("initialInterval must be greater than 0")
	errMaxIntervalInvalid     = errors.New("maxInterval must be >= initialInterval")
	errMaxElapsedTimeInvalid  = errors.New("maxElapsedTime must be >= 0")
)

type retryMiddleware struct {
	config config.RetryConfig
	logger *slog.Logger
}

// NewRetryMiddleware returns middleware that retries retryable errors up to
// cfg.MaxAttempts times. A Retry-After hint longer than the computed
// backoff replaces it; MaxElapsedTime caps every wait.
func NewRetryMiddleware(cfg config.RetryConfig, logger *slog.Logger) (transport.Middleware, error) {
	if cfg.MaxAttempts <= 0 {
		return nil, fmt.Errorf("%w, got %d", errMaxAttemptsInvalid, cfg.MaxAttempts)
	}
	if cfg.InitialInterval <= 0 {
		return nil, fmt.Errorf("%w, got %v", errInitialIntervalInvalid, cfg.InitialInterval)
	}
	if cfg.MaxInterval < cfg.InitialInterval {
		return nil, fmt.Errorf("%w, MaxInterval: %v, InitialInterval: %v", errMaxIntervalInvalid, cfg.MaxInterval, cfg.InitialInterval)
	}
	if cfg.MaxElapsedTime < 0 {
		return nil, fmt.Errorf("%w, got %v", errMaxElapsedTimeInvalid, cfg.MaxElapsedTime)
	}
	if logger == nil {
		logger = slog.Default()
	}

	rm := &retryMiddleware{
		config: cfg,
		logger: logger.With("component", "retry"),
	}
	return rm.middleware(), nil
}

func (r *retryMiddleware) middleware() transport.Middleware {
	return func(next transport.Handler) transport.Handler {
		return transport.HandlerFunc(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
			var (
				resp     *transport.Response
				lastErr  error
				attempts int
			)

			err := goretry.Do(ctx, r.backoff(func() error { return lastErr }), func(ctx context.Context) error {
				attempts++
				var callErr error
				resp, callErr = next.Handle(ctx, req)
				if callErr == nil {
					return nil
				}
				lastErr = callErr
				if !llmerrors.IsRetryableError(callErr) {
					return callErr
				}
				r.logger.WarnContext(ctx, "completion attempt failed",
					"attempt", attempts,
					"max_attempts", r.config.MaxAttempts,
					"provider", req.Provider,
					"model", req.Model,
					"error", callErr)
				return goretry.RetryableError(callErr)
			})

			switch {
			case err == nil:
				return resp, nil
			case ctx.Err() != nil && lastErr != nil && !errors.Is(err, lastErr):
				return nil, fmt.Errorf("retry aborted after %d attempts (last error: %v): %w", attempts, lastErr, err)
			case attempts > 1 && llmerrors.IsRetryableError(lastErr):
				return nil, fmt.Errorf("%w after %d attempts: %w", llmerrors.ErrMaxRetriesExceeded, attempts, err)
			default:
				return nil, err
			}
		})
	}
}

// backoff builds a fresh backoff per request; go-retry backoffs are stateful.
func (r *retryMiddleware) backoff(lastErr func() error) goretry.Backoff {
	var b goretry.Backoff = goretry.NewExponential(r.config.InitialInterval)
	if r.config.UseJitter {
		b = goretry.WithJitterPercent(jitterPercent, b)
	}
	b = goretry.WithCappedDuration(r.config.MaxInterval, b)
	b = goretry.WithMaxRetries(uint64(r.config.MaxAttempts-1), b) //nolint:gosec // validated positive

	b = withRetryAfter(b, lastErr)

	if r.config.MaxElapsedTime > 0 {
		b = goretry.WithMaxDuration(r.config.MaxElapsedTime, b)
	}
	return b
}

// withRetryAfter stretches a delay to the provider's Retry-After hint.
func withRetryAfter(next goretry.Backoff, lastErr func() error) goretry.Backoff {
	return goretry.BackoffFunc(func() (time.Duration, bool) {
		d, stop := next.Next()
		if stop {
			return 0, true
		}
		if hint := llmerrors.GetRetryAfter(lastErr()); hint > d {
			return hint, false
		}
		return d, false
	})
}

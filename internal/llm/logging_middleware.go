package llm

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	llmerrors "github.com/ahrav/go-rubric/internal/llm/errors"
	"github.com/ahrav/go-rubric/internal/llm/transport"
)

// NewLoggingMiddleware logs each completion call with its latency, token
// usage and, on failure, the classified error type. Prompts are never logged.
func NewLoggingMiddleware(logger *slog.Logger) transport.Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "llm")

	return func(next transport.Handler) transport.Handler {
		return transport.HandlerFunc(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
			if req.TraceID == "" {
				req.TraceID = uuid.NewString()
			}
			fields := []any{
				"trace_id", req.TraceID,
				"provider", req.Provider,
				"model", req.Model,
				"temperature", req.Temperature,
				"prompt_chars", len(req.Prompt),
			}
			logger.DebugContext(ctx, "completion started", fields...)

			start := time.Now()
			resp, err := next.Handle(ctx, req)
			fields = append(fields, "duration", time.Since(start))

			if err != nil {
				wf := llmerrors.ClassifyLLMError(err)
				logger.WarnContext(ctx, "completion failed",
					append(fields, "error_type", wf.Type, "retryable", wf.Retryable, "error", err)...)
				return nil, err
			}

			logger.InfoContext(ctx, "completion finished",
				append(fields,
					"cached", resp.Cached,
					"finish_reason", resp.FinishReason,
					"prompt_tokens", resp.Usage.PromptTokens,
					"completion_tokens", resp.Usage.CompletionTokens)...)
			return resp, nil
		})
	}
}

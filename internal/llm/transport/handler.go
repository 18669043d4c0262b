package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// ErrEmptyContent is returned when a provider answers without any text.
var ErrEmptyContent = errors.New("provider returned empty content")

// Router selects the provider adapter for a request.
type Router interface {
	Pick(provider, model string) (ProviderAdapter, error)
}

// ProviderAdapter translates between Request/Response and a provider's HTTP API.
type ProviderAdapter interface {
	Build(ctx context.Context, req *Request) (*http.Request, error)
	Parse(httpResp *http.Response) (*Response, error)
	Name() string
}

// Handler processes completion requests through a composable pipeline.
// Every middleware and the HTTP core implement it, so stages can be
// reordered or tested in isolation.
type Handler interface {
	Handle(ctx context.Context, req *Request) (*Response, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(context.Context, *Request) (*Response, error)

// Handle implements the Handler interface.
func (f HandlerFunc) Handle(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// Middleware wraps a Handler with additional behavior.
type Middleware func(Handler) Handler

// Chain builds a middleware pipeline around a core handler.
// The first middleware is the outermost.
func Chain(h Handler, middlewares ...Middleware) Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// NewHTTPHandler creates the core handler that performs the provider call.
// It sits at the end of the chain and is the only stage doing network I/O.
func NewHTTPHandler(client *http.Client, router Router) Handler {
	if client == nil {
		client = http.DefaultClient
	}
	return &httpHandler{client: client, router: router}
}

type httpHandler struct {
	client *http.Client
	router Router
}

// Handle implements Handler by making one HTTP request to the selected provider.
func (h *httpHandler) Handle(ctx context.Context, req *Request) (*Response, error) {
	adapter, err := h.router.Pick(req.Provider, req.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to select provider: %w", err)
	}

	reqCtx := ctx
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	httpReq, err := adapter.Build(reqCtx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	start := time.Now()
	httpResp, err := h.client.Do(httpReq)
	latency := time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer func() {
		if closeErr := httpResp.Body.Close(); closeErr != nil {
			slog.Debug("closing provider response body", "provider", adapter.Name(), "error", closeErr)
		}
	}()

	resp, err := adapter.Parse(httpResp)
	if err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	resp.Usage.LatencyMs = latency.Milliseconds()

	if resp.Content == "" {
		return nil, fmt.Errorf("%s/%s: %w", adapter.Name(), req.Model, ErrEmptyContent)
	}
	return resp, nil
}

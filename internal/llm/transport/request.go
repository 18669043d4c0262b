// Package transport defines the request and response types exchanged with
// completion providers and the handler/middleware pipeline that carries them.
package transport

import (
	"net/http"
	"time"
)

// OperationType names the kind of call a request performs.
type OperationType string

// OpCompletion is a single-prompt text completion.
const OpCompletion OperationType = "completion"

// FinishReason normalizes why a provider stopped producing tokens.
type FinishReason string

// Normalized finish reasons.
const (
	FinishStop          FinishReason = "stop"
	FinishLength        FinishReason = "length"
	FinishContentFilter FinishReason = "content_filter"
	FinishToolUse       FinishReason = "tool_use"
)

// Request is a provider-agnostic completion request.
type Request struct {
	Operation    OperationType `json:"operation"`
	Provider     string        `json:"provider"`
	Model        string        `json:"model"`
	Prompt       string        `json:"prompt"`
	SystemPrompt string        `json:"system_prompt,omitempty"`
	MaxTokens    int           `json:"max_tokens"`
	Temperature  float64       `json:"temperature"`

	// Timeout bounds the single HTTP exchange, not the retry loop.
	Timeout time.Duration `json:"timeout"`

	IdempotencyKey string `json:"idempotency_key,omitempty"`
	TraceID        string `json:"trace_id,omitempty"`
}

// NormalizedUsage holds token counts in a provider-independent shape.
type NormalizedUsage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
	LatencyMs        int64 `json:"latency_ms"`
}

// Response is a provider-agnostic completion response.
type Response struct {
	Content            string          `json:"content"`
	FinishReason       FinishReason    `json:"finish_reason"`
	ProviderRequestIDs []string        `json:"provider_request_ids,omitempty"`
	Usage              NormalizedUsage `json:"usage"`
	Headers            http.Header     `json:"-"`
	RawBody            []byte          `json:"-"`

	// Cached is set when the response was served from the response cache.
	Cached bool `json:"cached,omitempty"`
}

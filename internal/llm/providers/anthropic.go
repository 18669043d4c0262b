package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ahrav/go-rubric/internal/config"
	"github.com/ahrav/go-rubric/internal/llm/transport"
)

const (
	defaultAnthropicEndpoint = "https://api.anthropic.com/v1"
	anthropicVersion         = "2023-06-01"
	anthropicMaxTokens       = 1024
)

// AnthropicAdapter implements transport.ProviderAdapter for the messages API.
type AnthropicAdapter struct {
	config config.ProviderConfig
}

// NewAnthropicAdapter creates an adapter, defaulting the endpoint to Anthropic's API.
func NewAnthropicAdapter(cfg config.ProviderConfig) *AnthropicAdapter {
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultAnthropicEndpoint
	}
	return &AnthropicAdapter{config: cfg}
}

// Name returns the provider name.
func (a *AnthropicAdapter) Name() string {
	return ProviderAnthropic
}

type anthropicRequest struct {
	Model       string          `json:"model"`
	System      string          `json:"system,omitempty"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float64         `json:"temperature"`
}

// Build constructs a messages request. The system prompt is a top-level
// field and max_tokens is mandatory.
func (a *AnthropicAdapter) Build(ctx context.Context, req *transport.Request) (*http.Request, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = anthropicMaxTokens
	}
	body := anthropicRequest{
		Model:       req.Model,
		System:      req.SystemPrompt,
		Messages:    []openAIMessage{{Role: "user", Content: req.Prompt}},
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := a.config.Endpoint + "/messages"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.config.APIKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)
	if req.IdempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)
	}
	for k, v := range a.config.Headers {
		httpReq.Header.Set(k, v)
	}
	return httpReq, nil
}

// Parse joins the text blocks of a messages response.
func (a *AnthropicAdapter) Parse(httpResp *http.Response) (*transport.Response, error) {
	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, parseAnthropicError(httpResp, body)
	}

	var resp struct {
		ID      string `json:"id"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		StopReason string `json:"stop_reason"`
		Usage      struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	out := &transport.Response{
		Content:      sb.String(),
		FinishReason: mapAnthropicStopReason(resp.StopReason),
		Usage: transport.NormalizedUsage{
			PromptTokens:     int64(resp.Usage.InputTokens),
			CompletionTokens: int64(resp.Usage.OutputTokens),
			TotalTokens:      int64(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		},
		Headers: httpResp.Header,
		RawBody: body,
	}
	if reqID := httpResp.Header.Get("request-id"); reqID != "" {
		out.ProviderRequestIDs = append(out.ProviderRequestIDs, reqID)
	}
	return out, nil
}

func mapAnthropicStopReason(reason string) transport.FinishReason {
	switch reason {
	case "max_tokens":
		return transport.FinishLength
	case "refusal":
		return transport.FinishContentFilter
	case "tool_use":
		return transport.FinishToolUse
	default:
		return transport.FinishStop
	}
}

func parseAnthropicError(httpResp *http.Response, body []byte) error {
	var errResp struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		return newProviderError(ProviderAnthropic, httpResp, errResp.Error.Message, errResp.Error.Type)
	}
	return newProviderError(ProviderAnthropic, httpResp, string(body), "")
}

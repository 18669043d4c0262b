package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/ahrav/go-rubric/internal/config"
	"github.com/ahrav/go-rubric/internal/llm/transport"
)

const defaultOpenAIEndpoint = "https://api.openai.com/v1"

// OpenAIAdapter implements transport.ProviderAdapter for the chat
// completions API and any endpoint compatible with it.
type OpenAIAdapter struct {
	config config.ProviderConfig
}

// NewOpenAIAdapter creates an adapter, defaulting the endpoint to OpenAI's API.
func NewOpenAIAdapter(cfg config.ProviderConfig) *OpenAIAdapter {
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultOpenAIEndpoint
	}
	return &OpenAIAdapter{config: cfg}
}

// Name returns the provider name.
func (a *OpenAIAdapter) Name() string {
	return ProviderOpenAI
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature"`
}

// Build constructs a chat/completions request with the prompt as the only
// user message.
func (a *OpenAIAdapter) Build(ctx context.Context, req *transport.Request) (*http.Request, error) {
	body := openAIRequest{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if req.SystemPrompt != "" {
		body.Messages = append(body.Messages, openAIMessage{Role: "system", Content: req.SystemPrompt})
	}
	body.Messages = append(body.Messages, openAIMessage{Role: "user", Content: req.Prompt})

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := a.config.Endpoint + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.config.APIKey)
	if req.IdempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)
	}
	for k, v := range a.config.Headers {
		httpReq.Header.Set(k, v)
	}
	return httpReq, nil
}

// Parse extracts content, finish reason and usage from a chat/completions response.
func (a *OpenAIAdapter) Parse(httpResp *http.Response) (*transport.Response, error) {
	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, parseOpenAIError(httpResp, body)
	}

	var resp struct {
		ID      string `json:"id"`
		Model   string `json:"model"`
		Choices []struct {
			Message struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
			TotalTokens      int `json:"total_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	out := &transport.Response{
		Usage: transport.NormalizedUsage{
			PromptTokens:     int64(resp.Usage.PromptTokens),
			CompletionTokens: int64(resp.Usage.CompletionTokens),
			TotalTokens:      int64(resp.Usage.TotalTokens),
		},
		Headers: httpResp.Header,
		RawBody: body,
	}
	if len(resp.Choices) > 0 {
		out.Content = resp.Choices[0].Message.Content
		out.FinishReason = mapOpenAIFinishReason(resp.Choices[0].FinishReason)
	}
	if reqID := httpResp.Header.Get("x-request-id"); reqID != "" {
		out.ProviderRequestIDs = append(out.ProviderRequestIDs, reqID)
	}
	return out, nil
}

func mapOpenAIFinishReason(reason string) transport.FinishReason {
	switch reason {
	case "length":
		return transport.FinishLength
	case "content_filter":
		return transport.FinishContentFilter
	case "tool_calls", "function_call":
		return transport.FinishToolUse
	default:
		return transport.FinishStop
	}
}

func parseOpenAIError(httpResp *http.Response, body []byte) error {
	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		code := errResp.Error.Code
		if code == "" {
			code = errResp.Error.Type
		}
		return newProviderError(ProviderOpenAI, httpResp, errResp.Error.Message, code)
	}
	return newProviderError(ProviderOpenAI, httpResp, string(body), "")
}

package transport

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// CurrentCanonicalVersion is mixed into every key. Bump it when
// canonicalization changes so stale cache entries are never matched.
const CurrentCanonicalVersion = "v1"

// CanonicalPayload is the normalized form of a request that feeds the
// idempotency key. Equivalent requests must produce equal payloads.
type CanonicalPayload struct {
	Operation   OperationType `json:"operation"`
	Provider    string        `json:"provider"`
	Model       string        `json:"model"`
	System      string        `json:"system,omitempty"`
	Prompt      string        `json:"prompt"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
	Version     string        `json:"version"`
}

// IdemKey is a hex-encoded SHA-256 over a canonical payload.
type IdemKey string

// String returns the key as a string.
func (k IdemKey) String() string { return string(k) }

// BuildCanonicalPayload normalizes req into its canonical form.
func BuildCanonicalPayload(req *Request) *CanonicalPayload {
	op := req.Operation
	if op == "" {
		op = OpCompletion
	}
	return &CanonicalPayload{
		Operation:   op,
		Provider:    strings.ToLower(strings.TrimSpace(req.Provider)),
		Model:       strings.TrimSpace(req.Model),
		System:      normalizeText(req.SystemPrompt),
		Prompt:      normalizeText(req.Prompt),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Version:     CurrentCanonicalVersion,
	}
}

// BuildIdemKey hashes a canonical payload. Struct fields marshal in
// declaration order, so the encoding is stable.
func BuildIdemKey(payload *CanonicalPayload) (IdemKey, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal canonical payload: %w", err)
	}
	sum := sha256.Sum256(b)
	return IdemKey(hex.EncodeToString(sum[:])), nil
}

// GenerateIdemKey canonicalizes req and returns its idempotency key.
func GenerateIdemKey(req *Request) (IdemKey, error) {
	return BuildIdemKey(BuildCanonicalPayload(req))
}

// CacheKey builds the Redis key for a cached response.
func CacheKey(operation OperationType, key IdemKey) string {
	return fmt.Sprintf("llm:%s:%s", operation, key)
}

// normalizeText trims surrounding whitespace and normalizes line endings.
// Inner whitespace is significant to the prompts and is kept.
func normalizeText(text string) string {
	return strings.ReplaceAll(strings.TrimSpace(text), "\r\n", "\n")
}

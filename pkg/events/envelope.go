// Package events defines the envelope used to publish evaluation events and
// the sinks that receive them.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// Event types emitted by the evaluation activities.
const (
	TypeEvaluationCompleted = "evaluation.completed"
	TypeEvaluationRejected  = "evaluation.rejected"
)

// CurrentVersion is the schema version stamped on new envelopes.
const CurrentVersion = "1.0.0"

// Envelope wraps an event payload with routing and deduplication metadata.
type Envelope struct {
	// ID is a fresh UUID per emission.
	ID string `json:"id"`

	// Type identifies the event, e.g. "evaluation.completed".
	Type string `json:"type"`

	// Source names the emitting component.
	Source string `json:"source"`

	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`

	// IdempotencyKey is stable across activity retries so consumers can drop
	// duplicates.
	IdempotencyKey string `json:"idempotency_key"`

	// RequestID correlates the event with the evaluation request.
	RequestID string `json:"request_id"`

	WorkflowID string `json:"workflow_id,omitempty"`
	RunID      string `json:"run_id,omitempty"`

	Payload json.RawMessage `json:"payload"`
}

// EventSink receives envelopes. Append is best effort; callers never fail
// their primary operation because of a sink error.
type EventSink interface {
	Append(ctx context.Context, envelope Envelope) error
}

// NoOpEventSink drops every event.
type NoOpEventSink struct{}

// Append implements EventSink.
func (n *NoOpEventSink) Append(_ context.Context, _ Envelope) error {
	return nil
}

// NewNoOpEventSink returns a sink that discards events.
func NewNoOpEventSink() EventSink {
	return &NoOpEventSink{}
}

// LogEventSink writes each envelope as a structured log record.
type LogEventSink struct {
	logger *slog.Logger
}

// NewLogEventSink returns a sink logging to logger, or slog.Default when nil.
func NewLogEventSink(logger *slog.Logger) *LogEventSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogEventSink{logger: logger.With("component", "events")}
}

// Append implements EventSink.
func (s *LogEventSink) Append(ctx context.Context, e Envelope) error {
	s.logger.InfoContext(ctx, "event",
		"event_id", e.ID,
		"event_type", e.Type,
		"source", e.Source,
		"idempotency_key", e.IdempotencyKey,
		"request_id", e.RequestID,
		"workflow_id", e.WorkflowID,
		"payload", string(e.Payload))
	return nil
}

// MemoryEventSink keeps envelopes in memory and ignores repeated
// idempotency keys.
type MemoryEventSink struct {
	mu     sync.Mutex
	seen   map[string]struct{}
	events []Envelope
}

// NewMemoryEventSink returns an empty in-memory sink.
func NewMemoryEventSink() *MemoryEventSink {
	return &MemoryEventSink{seen: make(map[string]struct{})}
}

// Append implements EventSink.
func (s *MemoryEventSink) Append(_ context.Context, e Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.IdempotencyKey != "" {
		if _, dup := s.seen[e.IdempotencyKey]; dup {
			return nil
		}
		s.seen[e.IdempotencyKey] = struct{}{}
	}
	s.events = append(s.events, e)
	return nil
}

// Events returns a copy of the stored envelopes in arrival order.
func (s *MemoryEventSink) Events() []Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Envelope, len(s.events))
	copy(out, s.events)
	return out
}

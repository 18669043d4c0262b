// Package activity implements the Temporal activities that run evaluations
// on a worker.
package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ahrav/go-rubric/internal/catalog"
	"github.com/ahrav/go-rubric/internal/domain"
	"github.com/ahrav/go-rubric/pkg/activity"
	"github.com/ahrav/go-rubric/pkg/events"
)

const (
	eventSource = "evaluation-activity"

	// heartbeatInterval is kept well under the workflow's heartbeat timeout.
	heartbeatInterval = 10 * time.Second
)

// eventNamespace seeds the deterministic event idempotency keys.
var eventNamespace = uuid.MustParse("6f1c2a4e-8d0b-4f7a-9c35-2b1e0d7a5c91")

// Evaluator runs one evaluation request. *evaluation.Engine implements it.
type Evaluator interface {
	Evaluate(ctx context.Context, req domain.EvaluationRequest) (*domain.EvaluationOutcome, error)
	Catalog() *catalog.Catalog
	DefaultModel() string
}

// EvaluateTextInput is the activity input.
type EvaluateTextInput struct {
	Request domain.EvaluationRequest `json:"request"`
}

// EvaluateTextOutput is the activity result.
type EvaluateTextOutput struct {
	Outcome    domain.EvaluationOutcome `json:"outcome"`
	ModelUsed  string                   `json:"model_used"`
	DurationMs int64                    `json:"duration_ms"`
}

// Activities groups the evaluation activities and their dependencies.
type Activities struct {
	activity.BaseActivities
	evaluator Evaluator
}

// NewActivities returns activities evaluating through evaluator.
func NewActivities(base activity.BaseActivities, evaluator Evaluator) *Activities {
	return &Activities{BaseActivities: base, evaluator: evaluator}
}

// evaluationEvent is the payload of evaluation.completed and
// evaluation.rejected events.
type evaluationEvent struct {
	RequestID    string   `json:"request_id"`
	Schemes      []string `json:"schemes"`
	GatesPassed  bool     `json:"gates_passed"`
	OverallScore *float64 `json:"overall_score"`
	OverallLabel *string  `json:"overall_label"`
	Unavailable  []string `json:"unavailable,omitempty"`
	Model        string   `json:"model"`
	DurationMs   int64    `json:"duration_ms"`
}

// EvaluateText evaluates a text against the requested schemes.
//
// Invalid input and unknown scheme IDs fail without retry. Per-scheme
// completion failures do not fail the activity; they surface as unavailable
// results in the outcome.
func (a *Activities) EvaluateText(ctx context.Context, input EvaluateTextInput) (*EvaluateTextOutput, error) {
	req := input.Request
	if err := req.ValidateLimits(); err != nil {
		return nil, nonRetryable(ErrTypeValidation, err, "invalid input")
	}
	if unknown := a.evaluator.Catalog().Unknown(req.SchemeIDs); len(unknown) > 0 {
		return nil, nonRetryable(ErrTypeUnknownScheme,
			fmt.Errorf("%w: %v", domain.ErrSchemeNotFound, unknown),
			fmt.Sprintf("Unknown schemes: %v", unknown))
	}

	wfCtx := a.GetWorkflowContext(ctx)
	if req.RequestID == "" {
		req.RequestID = wfCtx.WorkflowID
	}
	activity.SafeLog(ctx, "Starting EvaluateText activity",
		"request_id", req.RequestID,
		"schemes", len(req.SchemeIDs),
		"attempt", wfCtx.Attempt)

	stop := a.heartbeat(ctx, req.RequestID)
	start := time.Now()
	outcome, err := a.evaluator.Evaluate(ctx, req)
	stop()
	if err != nil {
		activity.SafeLogError(ctx, "EvaluateText failed", "request_id", req.RequestID, "error", err)
		return nil, classify(err)
	}

	model := req.Model
	if model == "" {
		model = a.evaluator.DefaultModel()
	}
	out := &EvaluateTextOutput{
		Outcome:    *outcome,
		ModelUsed:  model,
		DurationMs: time.Since(start).Milliseconds(),
	}

	a.emitOutcome(ctx, req, out, wfCtx)

	activity.SafeLog(ctx, "EvaluateText completed",
		"request_id", req.RequestID,
		"results", len(outcome.Results),
		"gates_passed", outcome.GatesPassed,
		"latency_ms", out.DurationMs)
	return out, nil
}

// heartbeat records progress periodically until the returned func is called.
func (a *Activities) heartbeat(ctx context.Context, requestID string) func() {
	a.RecordHeartbeat(ctx, requestID)

	done := make(chan struct{})
	go func() {
		t := time.NewTicker(heartbeatInterval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				a.RecordHeartbeat(ctx, requestID)
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	return func() { close(done) }
}

func (a *Activities) emitOutcome(
	ctx context.Context,
	req domain.EvaluationRequest,
	out *EvaluateTextOutput,
	wfCtx activity.WorkflowContext,
) {
	evt := evaluationEvent{
		RequestID:    req.RequestID,
		Schemes:      req.SchemeIDs,
		GatesPassed:  out.Outcome.GatesPassed,
		OverallScore: out.Outcome.OverallScore,
		OverallLabel: out.Outcome.OverallLabel,
		Model:        out.ModelUsed,
		DurationMs:   out.DurationMs,
	}
	for _, r := range out.Outcome.Results {
		if r.IsUnavailable() {
			evt.Unavailable = append(evt.Unavailable, r.SchemeID)
		}
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		activity.SafeLogError(ctx, "Failed to marshal evaluation event", "error", err)
		return
	}

	typ := events.TypeEvaluationCompleted
	if !out.Outcome.GatesPassed {
		typ = events.TypeEvaluationRejected
	}
	envelope := events.Envelope{
		ID:             uuid.NewString(),
		Type:           typ,
		Source:         eventSource,
		Version:        events.CurrentVersion,
		Timestamp:      time.Now(),
		IdempotencyKey: EventIdempotencyKey(wfCtx.WorkflowID, req.RequestID, typ),
		RequestID:      req.RequestID,
		WorkflowID:     wfCtx.WorkflowID,
		RunID:          wfCtx.RunID,
		Payload:        payload,
	}
	a.EmitEventSafe(ctx, envelope, fmt.Sprintf("%s[%s]", typ, req.RequestID))
}

// EventIdempotencyKey derives a key that stays the same across retries of
// the same request within one workflow.
func EventIdempotencyKey(workflowID, requestID, eventType string) string {
	return uuid.NewSHA1(eventNamespace, []byte(workflowID+"\x00"+requestID+"\x00"+eventType)).String()
}

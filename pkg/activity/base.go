// Package activity holds the infrastructure shared by Temporal activities:
// workflow context extraction, logging that is safe outside an activity, and
// best-effort event emission.
package activity

import (
	"context"
	"fmt"
	"time"

	goretry "github.com/sethvargo/go-retry"
	"go.temporal.io/sdk/activity"

	"github.com/ahrav/go-rubric/pkg/events"
)

// Event emission retry budget.
const (
	emitAttempts   = 2
	emitRetryDelay = 200 * time.Millisecond
)

// WorkflowContext identifies the workflow execution running an activity.
// Events and idempotency keys are derived from it, so it must be stable
// across retries of the same workflow.
type WorkflowContext struct {
	WorkflowID string
	RunID      string
	ActivityID string
	Attempt    int32
}

// BaseActivities is embedded by activity structs for event emission and
// context access. Its helpers work both inside a Temporal activity and in
// plain unit tests.
type BaseActivities struct {
	eventSink events.EventSink
}

// NewBaseActivities returns BaseActivities emitting to sink. A nil sink
// disables emission.
func NewBaseActivities(sink events.EventSink) BaseActivities {
	return BaseActivities{eventSink: sink}
}

// GetWorkflowContext reads execution details from ctx. Outside an activity,
// where activity.GetInfo panics, it returns fixed local identifiers.
func (b *BaseActivities) GetWorkflowContext(ctx context.Context) WorkflowContext {
	wfCtx := WorkflowContext{
		WorkflowID: "local",
		RunID:      "local",
		ActivityID: "local",
		Attempt:    1,
	}

	func() {
		defer func() { _ = recover() }()

		info := activity.GetInfo(ctx)
		wfCtx = WorkflowContext{
			WorkflowID: info.WorkflowExecution.ID,
			RunID:      info.WorkflowExecution.RunID,
			ActivityID: info.ActivityID,
			Attempt:    info.Attempt,
		}
	}()

	return wfCtx
}

// EmitEventSafe appends envelope to the sink, retrying once after a short
// delay. Failures are logged and never returned.
func (b *BaseActivities) EmitEventSafe(ctx context.Context, envelope events.Envelope, description string) {
	if b.eventSink == nil {
		return
	}

	backoff := goretry.WithMaxRetries(emitAttempts-1, goretry.NewConstant(emitRetryDelay))
	err := goretry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := b.eventSink.Append(ctx, envelope); err != nil {
			return goretry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		SafeLogError(ctx, fmt.Sprintf("Failed to emit %s", description),
			"event_type", envelope.Type,
			"attempts", emitAttempts,
			"error", err)
		return
	}

	SafeLog(ctx, fmt.Sprintf("Event emitted: %s", description),
		"event_type", envelope.Type,
		"idempotency_key", envelope.IdempotencyKey)
}

// RecordHeartbeat records a heartbeat for the running activity.
// Outside an activity the call is ignored.
func (b *BaseActivities) RecordHeartbeat(ctx context.Context, details ...any) {
	RecordHeartbeat(ctx, details...)
}

// SafeLog logs at info level through the activity logger, and does nothing
// outside an activity.
func SafeLog(ctx context.Context, msg string, keyvals ...any) {
	defer func() { _ = recover() }()
	activity.GetLogger(ctx).Info(msg, keyvals...)
}

// SafeLogError is SafeLog at error level, for failures that are handled
// but still need operator attention.
func SafeLogError(ctx context.Context, msg string, keyvals ...any) {
	defer func() { _ = recover() }()
	activity.GetLogger(ctx).Error(msg, keyvals...)
}

// RecordHeartbeat records activity progress with details. Long evaluations
// call it periodically to stay inside the heartbeat timeout; outside an
// activity it is a no-op.
func RecordHeartbeat(ctx context.Context, details ...any) {
	defer func() { _ = recover() }()
	activity.RecordHeartbeat(ctx, details...)
}

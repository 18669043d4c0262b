package workflow

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/ahrav/go-rubric/internal/activity"
	"github.com/ahrav/go-rubric/internal/domain"
)

// Activity limits for one evaluation. A request carries at most ten schemes,
// each bounded by the LLM client's own timeout and retries.
const (
	evaluateTimeout   = 10 * time.Minute
	heartbeatTimeout  = 30 * time.Second
	maxActivityTries  = 3
	evaluationVersion = 1
)

// EvaluationWorkflow evaluates req on a worker and returns the outcome.
//
// The request is validated before any activity is scheduled. A request
// without an ID takes the workflow ID so retries and events share it.
func EvaluationWorkflow(ctx workflow.Context, req domain.EvaluationRequest) (*activity.EvaluateTextOutput, error) {
	_ = workflow.GetVersion(ctx, "evaluation.v", workflow.DefaultVersion, evaluationVersion)

	if err := req.ValidateLimits(); err != nil {
		return nil, temporal.NewNonRetryableApplicationError(
			"invalid evaluation request",
			activity.ErrTypeValidation,
			err,
		)
	}
	if req.RequestID == "" {
		req.RequestID = workflow.GetInfo(ctx).WorkflowExecution.ID
	}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: evaluateTimeout,
		HeartbeatTimeout:    heartbeatTimeout,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        time.Second,
			BackoffCoefficient:     2.0,
			MaximumInterval:        time.Minute,
			MaximumAttempts:        maxActivityTries,
			NonRetryableErrorTypes: []string{activity.ErrTypeValidation, activity.ErrTypeUnknownScheme},
		},
	})

	logger := workflow.GetLogger(ctx)
	logger.Info("evaluation scheduled", "request_id", req.RequestID, "schemes", len(req.SchemeIDs))

	var a *activity.Activities
	var out activity.EvaluateTextOutput
	if err := workflow.ExecuteActivity(ctx, a.EvaluateText, activity.EvaluateTextInput{Request: req}).Get(ctx, &out); err != nil {
		logger.Error("evaluation failed", "request_id", req.RequestID, "error", err)
		return nil, err
	}

	logger.Info("evaluation finished",
		"request_id", req.RequestID,
		"gates_passed", out.Outcome.GatesPassed)
	return &out, nil
}

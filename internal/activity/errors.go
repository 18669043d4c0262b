package activity

import (
	"context"
	"errors"

	"go.temporal.io/sdk/temporal"

	"github.com/ahrav/go-rubric/internal/domain"
	llmerrors "github.com/ahrav/go-rubric/internal/llm/errors"
)

// Application error types reported to the workflow.
const (
	ErrTypeValidation    = "Validation"
	ErrTypeUnknownScheme = "UnknownScheme"
	ErrTypeEvaluation    = "Evaluation"
)

// nonRetryable wraps cause as an application error Temporal will not retry.
func nonRetryable(tag string, cause error, msg string) error {
	return temporal.NewNonRetryableApplicationError(msg, tag, cause)
}

// retryable wraps cause as an application error subject to the activity's
// retry policy.
func retryable(tag string, cause error, msg string) error {
	return temporal.NewApplicationError(msg, tag, cause)
}

// classify maps an engine error onto a Temporal application error.
func classify(err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		return nonRetryable(ErrTypeValidation, err, "invalid evaluation request")
	case errors.Is(err, domain.ErrNoCompleter):
		return nonRetryable(ErrTypeEvaluation, err, "evaluation engine misconfigured")
	case errors.Is(err, context.Canceled):
		return err
	}
	if wf := llmerrors.ClassifyLLMError(err); wf.ShouldRetry() {
		return retryable(ErrTypeEvaluation, err, wf.Message)
	}
	return nonRetryable(ErrTypeEvaluation, err, "evaluation failed")
}

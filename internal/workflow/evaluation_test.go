package workflow

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"github.com/ahrav/go-rubric/internal/activity"
	"github.com/ahrav/go-rubric/internal/catalog"
	"github.com/ahrav/go-rubric/internal/domain"
	"github.com/ahrav/go-rubric/internal/evaluation"
	"github.com/ahrav/go-rubric/internal/scoring"
	pkgactivity "github.com/ahrav/go-rubric/pkg/activity"
	"github.com/ahrav/go-rubric/pkg/events"
)

const sampleText = "Dieser Beitrag erklärt die neue Regelung verständlich."

func newActivities(t *testing.T, calls *atomic.Int32) (*activity.Activities, *events.MemoryEventSink) {
	t.Helper()
	cat, err := catalog.New(
		domain.SchemeDefinition{
			ID:        "verstaendlichkeit",
			Kind:      domain.KindOrdinalRubric,
			Dimension: "verstaendlichkeit",
			Anchors:   []domain.Anchor{{Level: 1, Label: "schwer"}, {Level: 5, Label: "leicht"}},
		},
		domain.SchemeDefinition{
			ID:          "strafrecht",
			Kind:        domain.KindBinaryGate,
			Dimension:   "strafrecht",
			Description: "gate_marker",
		},
	)
	require.NoError(t, err)

	completer := scoring.CompleterFunc(func(_ context.Context, req domain.CompletionRequest) (domain.Completion, error) {
		calls.Add(1)
		if strings.Contains(req.Prompt, "gate_marker") {
			return domain.Completion{Text: "RESULT: JA"}, nil
		}
		return domain.Completion{Text: "SCORE: 5\nREASONING: sehr verständlich"}, nil
	})
	sink := events.NewMemoryEventSink()
	engine := evaluation.NewEngine(cat, completer, evaluation.WithDefaultModel("test-model"))
	return activity.NewActivities(pkgactivity.NewBaseActivities(sink), engine), sink
}

func TestEvaluationWorkflow(t *testing.T) {
	var ts testsuite.WorkflowTestSuite

	t.Run("runs the evaluation activity", func(t *testing.T) {
		var calls atomic.Int32
		acts, sink := newActivities(t, &calls)

		env := ts.NewTestWorkflowEnvironment()
		env.RegisterActivity(acts.EvaluateText)

		req := domain.EvaluationRequest{
			Text:      sampleText,
			SchemeIDs: []string{"strafrecht", "verstaendlichkeit"},
		}
		env.ExecuteWorkflow(EvaluationWorkflow, req)
		require.True(t, env.IsWorkflowCompleted())
		require.NoError(t, env.GetWorkflowError())

		var out activity.EvaluateTextOutput
		require.NoError(t, env.GetWorkflowResult(&out))
		assert.True(t, out.Outcome.GatesPassed)
		assert.NotEmpty(t, out.Outcome.RequestID)
		assert.Equal(t, "test-model", out.ModelUsed)
		require.NotNil(t, out.Outcome.OverallScore)
		assert.InDelta(t, 5.0, *out.Outcome.OverallScore, 1e-9)
		assert.EqualValues(t, 2, calls.Load())

		evts := sink.Events()
		require.Len(t, evts, 1)
		assert.Equal(t, out.Outcome.RequestID, evts[0].RequestID)
	})

	t.Run("invalid request fails before scheduling", func(t *testing.T) {
		var calls atomic.Int32
		acts, _ := newActivities(t, &calls)

		env := ts.NewTestWorkflowEnvironment()
		env.RegisterActivity(acts.EvaluateText)
		env.ExecuteWorkflow(EvaluationWorkflow, domain.EvaluationRequest{})

		require.True(t, env.IsWorkflowCompleted())
		err := env.GetWorkflowError()
		require.Error(t, err)

		var appErr *temporal.ApplicationError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, activity.ErrTypeValidation, appErr.Type())
		assert.True(t, appErr.NonRetryable())
		assert.Zero(t, calls.Load())
	})

	t.Run("unknown scheme is not retried", func(t *testing.T) {
		var calls atomic.Int32
		acts, _ := newActivities(t, &calls)

		env := ts.NewTestWorkflowEnvironment()
		env.RegisterActivity(acts.EvaluateText)
		env.ExecuteWorkflow(EvaluationWorkflow, domain.EvaluationRequest{
			Text:      sampleText,
			SchemeIDs: []string{"fehlt"},
		})

		err := env.GetWorkflowError()
		require.Error(t, err)
		var appErr *temporal.ApplicationError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, activity.ErrTypeUnknownScheme, appErr.Type())
	})

	t.Run("retryable activity failure is retried", func(t *testing.T) {
		env := ts.NewTestWorkflowEnvironment()
		var a *activity.Activities
		var attempts atomic.Int32
		env.RegisterActivity(a.EvaluateText)
		env.OnActivity(a.EvaluateText, mock.Anything, mock.Anything).Return(
			func(context.Context, activity.EvaluateTextInput) (*activity.EvaluateTextOutput, error) {
				if attempts.Add(1) == 1 {
					return nil, temporal.NewApplicationError("provider overloaded", activity.ErrTypeEvaluation, errors.New("503"))
				}
				return &activity.EvaluateTextOutput{Outcome: domain.EvaluationOutcome{GatesPassed: true}}, nil
			})

		env.ExecuteWorkflow(EvaluationWorkflow, domain.EvaluationRequest{
			Text:      sampleText,
			SchemeIDs: []string{"verstaendlichkeit"},
		})
		require.NoError(t, env.GetWorkflowError())
		assert.EqualValues(t, 2, attempts.Load())
	})
}

func TestEvaluationWorkflowDeterminism(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	req := domain.EvaluationRequest{}

	var first string
	for i := range 3 {
		env := ts.NewTestWorkflowEnvironment()
		env.ExecuteWorkflow(EvaluationWorkflow, req)
		err := env.GetWorkflowError()
		require.Error(t, err)
		if i == 0 {
			first = err.Error()
			continue
		}
		assert.Equal(t, first, err.Error(), "execution %d", i)
	}
}

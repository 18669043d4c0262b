// Package worker registers and runs the evaluation workflow and activities
// on a Temporal worker.
package worker

import (
	sdkworker "go.temporal.io/sdk/worker"

	"github.com/ahrav/go-rubric/internal/activity"
	"github.com/ahrav/go-rubric/internal/workflow"
	pkgactivity "github.com/ahrav/go-rubric/pkg/activity"
	"github.com/ahrav/go-rubric/pkg/events"
)

// Deps are the dependencies shared by all registered activities.
type Deps struct {
	Evaluator activity.Evaluator

	// EventSink receives evaluation events. Nil drops them.
	EventSink events.EventSink
}

// RegisterAll registers the workflow and its activities with r. Call it once
// before the worker starts.
func RegisterAll(r sdkworker.Registry, deps Deps) {
	sink := deps.EventSink
	if sink == nil {
		sink = events.NewNoOpEventSink()
	}
	base := pkgactivity.NewBaseActivities(sink)

	acts := activity.NewActivities(base, deps.Evaluator)

	r.RegisterWorkflow(workflow.EvaluationWorkflow)
	r.RegisterActivity(acts.EvaluateText)
}

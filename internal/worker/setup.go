package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"
	sdkworker "go.temporal.io/sdk/worker"

	"github.com/ahrav/go-rubric/internal/activity"
	"github.com/ahrav/go-rubric/internal/config"
	"github.com/ahrav/go-rubric/internal/domain"
	"github.com/ahrav/go-rubric/internal/workflow"
)

// ErrNoEvaluator is returned when Run is called without an evaluator.
var ErrNoEvaluator = errors.New("worker requires an evaluator")

// Dial connects to the Temporal frontend described by cfg.
func Dial(cfg config.TemporalConfig, logger *slog.Logger) (client.Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c, err := client.Dial(client.Options{
		HostPort:  cfg.HostPort,
		Namespace: cfg.Namespace,
		Logger:    tlog.NewStructuredLogger(logger.With("component", "temporal")),
	})
	if err != nil {
		return nil, fmt.Errorf("dialing temporal at %s: %w", cfg.HostPort, err)
	}
	return c, nil
}

// Run dials Temporal, registers everything and polls cfg.TaskQueue until
// ctx is canceled.
func Run(ctx context.Context, cfg config.TemporalConfig, deps Deps, logger *slog.Logger) error {
	if deps.Evaluator == nil {
		return ErrNoEvaluator
	}
	if logger == nil {
		logger = slog.Default()
	}

	c, err := Dial(cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	w := sdkworker.New(c, cfg.TaskQueue, sdkworker.Options{})
	RegisterAll(w, deps)

	stop := make(chan any)
	go func() {
		<-ctx.Done()
		close(stop)
	}()

	logger.Info("temporal worker started",
		"host_port", cfg.HostPort,
		"namespace", cfg.Namespace,
		"task_queue", cfg.TaskQueue)
	if err := w.Run(stop); err != nil {
		return fmt.Errorf("running temporal worker: %w", err)
	}
	logger.Info("temporal worker stopped")
	return nil
}

// Submit starts EvaluationWorkflow for req and waits for its result.
func Submit(
	ctx context.Context,
	c client.Client,
	taskQueue string,
	req domain.EvaluationRequest,
) (*activity.EvaluateTextOutput, error) {
	opts := client.StartWorkflowOptions{TaskQueue: taskQueue}
	if req.RequestID != "" {
		opts.ID = "evaluation-" + req.RequestID
	}

	run, err := c.ExecuteWorkflow(ctx, opts, workflow.EvaluationWorkflow, req)
	if err != nil {
		return nil, fmt.Errorf("starting evaluation workflow: %w", err)
	}

	var out activity.EvaluateTextOutput
	if err := run.Get(ctx, &out); err != nil {
		return nil, fmt.Errorf("evaluation workflow %s: %w", run.GetID(), err)
	}
	return &out, nil
}

package main

import (
	"github.com/spf13/cobra"

	"github.com/ahrav/go-rubric/internal/worker"
	"github.com/ahrav/go-rubric/pkg/events"
)

func newWorkerCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the Temporal evaluation worker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			engine, cleanup, err := a.buildEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			deps := worker.Deps{
				Evaluator: engine,
				EventSink: events.NewLogEventSink(a.logger),
			}
			return worker.Run(cmd.Context(), a.cfg.Temporal, deps, a.logger)
		},
	}
}

package main

import (
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/ahrav/go-rubric/internal/api"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the evaluation HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				a.cfg.HTTPAddr = addr
			}
			engine, cleanup, err := a.buildEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			gin.SetMode(gin.ReleaseMode)
			srv := api.NewServer(engine, api.WithLogger(a.logger))
			return srv.ListenAndServe(cmd.Context(), a.cfg.HTTPAddr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (env HTTP_ADDR)")
	return cmd
}

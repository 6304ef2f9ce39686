package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/chris/dayplan/internal/api"
)

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if addr == "" {
				addr = a.cfg.HTTPAddr
			}
			srv := api.New(api.Config{
				Addr:          addr,
				Agent:         a.agent,
				Conversations: a.db,
				Resolver:      a.resolver,
				Metrics:       a.metrics,
				Health:        a.db,
				Log:           a.log,
				TurnTimeout:   a.cfg.TurnTimeout + 30*time.Second,
			})
			return srv.Start(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to DAYPLAN_HTTP_ADDR)")
	return cmd
}

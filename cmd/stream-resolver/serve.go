package main

import (
	"github.com/spf13/cobra"

	"stream-resolver-go/internal/app"
)

func newServeCmd(load loaderFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and HLS proxy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := load()
			if err != nil {
				return err
			}

			application, err := app.New(cfg, log, version)
			if err != nil {
				return err
			}
			defer application.Shutdown()

			return application.Run(cmd.Context())
		},
	}
}

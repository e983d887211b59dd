package main

import (
	"os"

	"github.com/spf13/cobra"

	"stream-resolver-go/pkg/config"
	"stream-resolver-go/pkg/logging"
)

func newRootCmd() *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:           "stream-resolver",
		Short:         "Resolve Twitch channels and VODs into playable HLS variants",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL (debug, info, warn, error)")

	load := func() (*config.Config, *logging.Logger, error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, nil, err
		}
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}
		return cfg, logging.New(cfg.LogLevel, cfg.LogJSON, os.Stderr), nil
	}

	root.AddCommand(newServeCmd(load), newResolveCmd(load))
	return root
}

type loaderFunc func() (*config.Config, *logging.Logger, error)

package main

import (
	"log/slog"

	appconfig "github.com/fedutinova/speechcoach/internal/config"
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var cfg appconfig.Config

	rootCmd := &cobra.Command{
		Use:           "speechd",
		Short:         "Speech analysis job service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg = appconfig.Load()
			logger, err := newLogger(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	config := func() appconfig.Config { return cfg }
	rootCmd.AddCommand(newServeCommand(config))
	rootCmd.AddCommand(newAnalyzeCommand(config))

	return rootCmd
}

package main

import (
	"github.com/layer-3/pairsync/config"
	"github.com/layer-3/pairsync/logging"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const appName = "pairsync"

type rootOptions struct {
	configPath string
	logLevel   string

	cfg    *config.Config
	logger zerolog.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{logger: zerolog.Nop()}

	rootCmd := &cobra.Command{
		Use:           appName,
		Short:         "Pair devices over an untrusted relay and stream an export between them",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(viper.New(), opts.configPath)
			if err != nil {
				return err
			}
			if opts.logLevel != "" {
				cfg.Log.Level = opts.logLevel
			}
			logger, err := logging.NewWithWriter(cmd.ErrOrStderr(), appName, cfg.Log.Level)
			if err != nil {
				return err
			}
			opts.cfg, opts.logger = cfg, logger
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (yaml or toml)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level override")

	rootCmd.AddCommand(
		newServeCmd(opts),
		newShareCmd(opts),
		newReceiveCmd(opts),
	)

	return rootCmd
}

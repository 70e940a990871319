package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ivlev/solarscope/internal/config"
	"github.com/ivlev/solarscope/pkg/log"
)

var (
	configFile string
	logLevel   string

	cfg        *config.Config
	restoreLog = func() {}
)

var rootCmd = &cobra.Command{
	Use:           "solarscope",
	Short:         "Estimate usable rooftop area and solar ROI from an image",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configFile)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			loaded.LogLevel = logLevel
			if err := loaded.Validate(); err != nil {
				return err
			}
		}
		cfg = loaded

		_, restoreLog = log.Setup(cfg.LogLevel)
		zap.S().Named("cli").Debugw("configuration loaded", "file", configFile, "config", cfg.String())
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		restoreLog()
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(serveCmd)

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
}

// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

// logtally watches the log output of containers of configured images,
// counting the requests per domain and HTTP status code found in the logs,
// and serves these counts as Prometheus metrics.
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/thediveo/lxkns/log"

	"github.com/siemens/logtally/config"

	_ "github.com/thediveo/lxkns/log/logrus" // use logrus for logging
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		log.Errorf("%s", err.Error())
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string
	var debug bool

	cmd := &cobra.Command{
		Use:           "logtally",
		Short:         "Counts requests per domain found in container logs",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(debug)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFile, "configuration file")
	cmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	return cmd
}

func setupLogging(debug bool) {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logrus.SetOutput(os.Stderr)
	if debug {
		logrus.SetLevel(logrus.DebugLevel)
		return
	}
	logrus.SetLevel(logrus.InfoLevel)
}

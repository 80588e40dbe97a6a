// Copyright 2024 The BaseDB Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"basedb/config"
	internallogging "basedb/internal/logging"
	"basedb/logging"
	"basedb/runtime"
)

func init() {
	var configFile string
	var logLevel string
	var logFormat string

	runCommand := &cobra.Command{
		Use:   "run",
		Short: "Start the BaseDB server",
		Long: `Start an instance of the BaseDB server.

The server loads its catalog and part store locations, listen address,
connection pool bounds and wire compression from a TOML configuration
file, then accepts client connections speaking the ClickHouse-compatible
wire protocol until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if configFile == "" {
				return fmt.Errorf("--config-file is required")
			}

			raw, err := os.ReadFile(configFile)
			if err != nil {
				return fmt.Errorf("reading config file: %w", err)
			}

			cfg, err := config.ParseConfig(raw)
			if err != nil {
				return err
			}

			level, err := internallogging.GetLevel(logLevel)
			if err != nil {
				return err
			}
			logger := logging.New()
			logger.SetLevel(level)
			logger.Entry().Logger.SetFormatter(internallogging.GetFormatter(logFormat, ""))

			ctx := context.Background()

			rt, err := runtime.New(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("initializing runtime: %w", err)
			}
			defer rt.Close()

			return rt.Serve(ctx)
		},
	}

	addConfigFileFlag(runCommand.Flags(), &configFile)
	runCommand.Flags().StringVarP(&logLevel, "log-level", "l", "info", "set log level: debug, info, warn, error")
	runCommand.Flags().StringVarP(&logFormat, "log-format", "", "json", "set log format: text, json, json-pretty")

	RootCommand.AddCommand(runCommand)
}

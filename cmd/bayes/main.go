// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"log"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianBayes/pkg/logging"
)

// Config holds the optional CLI configuration read from config.yaml.
type Config struct {
	// LogLevel is one of debug, info, warn, error. Default: info.
	LogLevel string `yaml:"log_level"`

	// LogDir enables file logging when set.
	LogDir string `yaml:"log_dir"`

	// TableCap bounds intermediate factor tables. 0 means the engine
	// default, negative disables the cap.
	TableCap int `yaml:"table_cap"`

	// Parallel eliminates independent network components concurrently.
	Parallel bool `yaml:"parallel"`
}

var config Config
var logger *logging.Logger

var rootCmd = &cobra.Command{
	Use:   "bayes",
	Short: "Exact inference over discrete Bayesian networks",
	Long: `bayes runs exact MAP and marginal queries against YAML network
definitions using two-phase variable elimination.

Examples:
  bayes validate models/burglary.yaml
  bayes query map models/burglary.yaml --variables Burglary,Earthquake
  bayes query marginal models/burglary.yaml --retain Burglary \
      --evidence JohnCalls=True --evidence MaryCalls=True --normalize`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}

func init() {
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		// config.yaml is optional for the CLI: queries against local files
		// work with defaults.
		if yamlFile, err := os.ReadFile("config.yaml"); err == nil {
			if err := yaml.Unmarshal(yamlFile, &config); err != nil {
				log.Fatalf("Error parsing config.yaml: %v", err)
			}
		}

		logger = logging.New(logging.Config{
			Level:   parseLogLevel(config.LogLevel),
			LogDir:  config.LogDir,
			Service: "cli",
		})
		slog.SetDefault(logger.Slog())
	}
	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Close()
		}
	}
}

func parseLogLevel(level string) logging.Level {
	switch level {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

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
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianBayes/services/bayes/loader"
)

// validateCmd checks network definition files without running a query.
var validateCmd = &cobra.Command{
	Use:   "validate FILE...",
	Short: "Validate YAML network definitions",
	Long: `Validate one or more YAML network definitions.

Checks YAML syntax, schema, CPT shapes, row normalization, and graph
acyclicity. Exits non-zero if any file fails.

Examples:
  bayes validate models/burglary.yaml
  bayes validate models/*.yaml`,
	Args: cobra.MinimumNArgs(1),
	Run:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) {
	failed := 0
	for _, path := range args {
		net, err := loader.Load(path)
		if err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "FAIL %s: %v\n", path, err)
			continue
		}
		fmt.Printf("OK   %s: network %q, %d variables\n", path, net.Name(), len(net.Variables()))
	}
	if failed > 0 {
		os.Exit(1)
	}
}

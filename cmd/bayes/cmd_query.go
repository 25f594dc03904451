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
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianBayes/services/bayes"
	"github.com/AleutianAI/AleutianBayes/services/bayes/loader"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	// Shared flags
	queryJSONOutput bool
	queryEvidence   []string

	// MAP-specific
	queryMapVariables []string

	// Marginal-specific
	queryRetain    []string
	queryNormalize bool
)

// =============================================================================
// COMMAND DEFINITIONS
// =============================================================================

// queryCmd is the parent query command.
var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Run inference queries against a network file",
	Long: `Commands for running exact inference against a YAML network definition.

Subcommands:
  map      - Most probable assignment to a set of variables
  marginal - Marginal distribution over a set of variables

Examples:
  bayes query map models/burglary.yaml --variables Burglary,Earthquake
  bayes query marginal models/burglary.yaml --retain Burglary --normalize`,
}

// queryMapCmd runs a MAP query.
var queryMapCmd = &cobra.Command{
	Use:   "map FILE",
	Short: "Find the most probable assignment to the query variables",
	Long: `Find the most probable joint assignment to the query variables given
the evidence, marginalizing everything else.

With no --variables flag, every non-evidence variable is queried (the most
probable explanation).

Examples:
  bayes query map models/burglary.yaml --variables Burglary,Earthquake
  bayes query map models/burglary.yaml --evidence JohnCalls=True --json`,
	Args: cobra.ExactArgs(1),
	Run:  runQueryMap,
}

// queryMarginalCmd runs a marginal query.
var queryMarginalCmd = &cobra.Command{
	Use:   "marginal FILE",
	Short: "Compute the marginal distribution over the retained variables",
	Long: `Sum out every variable except the retained set and the evidence.

Without --normalize the entries are joint masses; with it they form a
posterior distribution.

Examples:
  bayes query marginal models/burglary.yaml --retain Burglary \
      --evidence JohnCalls=True --evidence MaryCalls=True --normalize`,
	Args: cobra.ExactArgs(1),
	Run:  runQueryMarginal,
}

func init() {
	queryCmd.PersistentFlags().BoolVar(&queryJSONOutput, "json", false,
		"Emit JSON instead of text")
	queryCmd.PersistentFlags().StringArrayVar(&queryEvidence, "evidence", nil,
		"Observed value as Variable=Value (repeatable)")

	queryMapCmd.Flags().StringSliceVar(&queryMapVariables, "variables", nil,
		"Comma-separated query variables (default: all non-evidence variables)")

	queryMarginalCmd.Flags().StringSliceVar(&queryRetain, "retain", nil,
		"Comma-separated variables the marginal ranges over")
	queryMarginalCmd.Flags().BoolVar(&queryNormalize, "normalize", false,
		"Rescale the marginal to sum to one")

	queryCmd.AddCommand(queryMapCmd)
	queryCmd.AddCommand(queryMarginalCmd)
	rootCmd.AddCommand(queryCmd)
}

// =============================================================================
// COMMAND IMPLEMENTATIONS
// =============================================================================

func newEngine(net *bayes.Network) *bayes.Engine {
	engine, err := bayes.NewEngine(net, bayes.EngineConfig{
		TableCap: config.TableCap,
		Parallel: config.Parallel,
		Logger:   logger.Slog(),
	})
	if err != nil {
		log.Fatalf("Error creating engine: %v", err)
	}
	return engine
}

func runQueryMap(cmd *cobra.Command, args []string) {
	net, err := loader.Load(args[0])
	if err != nil {
		log.Fatalf("Error loading network: %v", err)
	}
	evidence, err := parseEvidence(queryEvidence)
	if err != nil {
		log.Fatalf("Error parsing evidence: %v", err)
	}

	engine := newEngine(net)
	ctx := context.Background()

	var res *bayes.MAPResult
	if len(queryMapVariables) == 0 {
		res, err = engine.ComputeMPE(ctx, evidence)
	} else {
		res, err = engine.ComputeMAP(ctx, queryMapVariables, evidence)
	}
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}

	if queryJSONOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			log.Fatalf("Error encoding result: %v", err)
		}
		return
	}

	names := make([]string, 0, len(res.Assignment))
	for name := range res.Assignment {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("%s = %s\n", name, res.Assignment[name])
	}
	fmt.Printf("probability = %.9g\n", res.Probability)
}

func runQueryMarginal(cmd *cobra.Command, args []string) {
	net, err := loader.Load(args[0])
	if err != nil {
		log.Fatalf("Error loading network: %v", err)
	}
	evidence, err := parseEvidence(queryEvidence)
	if err != nil {
		log.Fatalf("Error parsing evidence: %v", err)
	}

	engine := newEngine(net)
	f, err := engine.ComputeMarginal(context.Background(), queryRetain, evidence)
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}
	if queryNormalize {
		if f, err = f.Normalize(); err != nil {
			log.Fatalf("Normalization failed: %v", err)
		}
	}

	entries, err := enumerateFactor(f)
	if err != nil {
		log.Fatalf("Error enumerating marginal: %v", err)
	}

	if queryJSONOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(entries); err != nil {
			log.Fatalf("Error encoding result: %v", err)
		}
		return
	}
	for _, entry := range entries {
		names := make([]string, 0, len(entry.Assignment))
		for name := range entry.Assignment {
			names = append(names, name)
		}
		sort.Strings(names)
		for i, name := range names {
			if i > 0 {
				fmt.Print(", ")
			}
			fmt.Printf("%s=%s", name, entry.Assignment[name])
		}
		if len(names) == 0 {
			fmt.Print("(total)")
		}
		fmt.Printf(": %.9g\n", entry.Probability)
	}
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package bayes implements exact MAP/MPE inference over discrete Bayesian
// networks by two-phase variable elimination.
//
// # Description
//
// A Network is an immutable set of discrete variables plus one conditional
// probability table (CPT) per variable. Queries run against an Engine:
//
//   - ComputeMAP: most probable joint assignment to a designated subset of
//     variables, marginalizing the rest, with its (unnormalized) probability.
//   - ComputeMPE: ComputeMAP over every non-evidence variable.
//   - ComputeMarginal: pure sum-out elimination down to a retained set.
//
// The engine eliminates nuisance variables by summing first, then query
// variables by maximizing. The phase boundary is load-bearing: sum and max
// do not commute, so no max-out may run while a nuisance variable remains.
// Each max-out step emits a backtrack record; walking the records in reverse
// elimination order reconstructs the maximizing assignment.
//
// # Basic Usage
//
//	net, err := bayes.NewNetwork("burglary", vars, nodes)
//	if err != nil { ... }
//	eng, err := bayes.NewEngine(net, bayes.EngineConfig{})
//	if err != nil { ... }
//	res, err := eng.ComputeMAP(ctx, []string{"JohnCalls", "Burglary"}, nil)
//
// # Thread Safety
//
// Network is immutable after construction and safe to share. Engine is safe
// for concurrent queries; all per-query state (working factors, backtrack
// records) lives on the query goroutine and is discarded when the query
// returns.
package bayes

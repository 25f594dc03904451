// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package bayes

import (
	"fmt"
	"math"
)

// normalizeTolerance is the allowed deviation of a CPT row sum from 1.0.
const normalizeTolerance = 1e-6

// Network is an immutable, validated discrete Bayesian network.
//
// Every variable owns exactly one CPT node, the parent relation is acyclic,
// and every CPT row sums to 1 within normalizeTolerance. Construct with
// NewNetwork; a Network that exists is valid.
type Network struct {
	name      string
	variables []*Variable
	position  map[string]int // name -> declaration position
	nodes     map[string]*Node
}

// NewNetwork validates the variable and node definitions and builds an
// immutable network.
//
// Inputs:
//
//	name - Human-readable network name (used in logs and errors).
//	variables - Variable declarations. Order fixes the tie-break used by
//	    the elimination order selector.
//	nodes - Exactly one CPT node per variable.
//
// Outputs:
//
//	*Network - The validated network.
//	error - Wraps ErrMalformedNetwork on any validation failure.
func NewNetwork(name string, variables []Variable, nodes []Node) (*Network, error) {
	if len(variables) == 0 {
		return nil, fmt.Errorf("%w: network declares no variables", ErrMalformedNetwork)
	}
	net := &Network{
		name:     name,
		position: make(map[string]int, len(variables)),
		nodes:    make(map[string]*Node, len(nodes)),
	}

	for i := range variables {
		v := variables[i]
		if v.Name == "" {
			return nil, fmt.Errorf("%w: variable %d has an empty name", ErrMalformedNetwork, i)
		}
		if len(v.Domain) == 0 {
			return nil, fmt.Errorf("%w: variable %q has an empty domain", ErrMalformedNetwork, v.Name)
		}
		if _, dup := net.position[v.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate variable %q", ErrMalformedNetwork, v.Name)
		}
		seen := make(map[string]struct{}, len(v.Domain))
		for _, label := range v.Domain {
			if _, dup := seen[label]; dup {
				return nil, fmt.Errorf("%w: variable %q repeats domain label %q",
					ErrMalformedNetwork, v.Name, label)
			}
			seen[label] = struct{}{}
		}
		net.position[v.Name] = i
		net.variables = append(net.variables, &v)
	}

	for i := range nodes {
		n := nodes[i]
		if _, ok := net.position[n.Variable]; !ok {
			return nil, fmt.Errorf("%w: CPT owner %q is not a declared variable",
				ErrMalformedNetwork, n.Variable)
		}
		if _, dup := net.nodes[n.Variable]; dup {
			return nil, fmt.Errorf("%w: variable %q owns more than one CPT",
				ErrMalformedNetwork, n.Variable)
		}
		if err := net.validateNode(&n); err != nil {
			return nil, err
		}
		net.nodes[n.Variable] = &n
	}

	for _, v := range net.variables {
		if _, ok := net.nodes[v.Name]; !ok {
			return nil, fmt.Errorf("%w: variable %q lacks an owning CPT",
				ErrMalformedNetwork, v.Name)
		}
	}

	if err := net.checkAcyclic(); err != nil {
		return nil, err
	}
	return net, nil
}

// validateNode checks parent references, table length, value range, and
// per-row normalization for one CPT node.
func (n *Network) validateNode(node *Node) error {
	owner := n.variables[n.position[node.Variable]]

	rows := 1
	seen := map[string]struct{}{node.Variable: {}}
	for _, p := range node.Parents {
		pos, ok := n.position[p]
		if !ok {
			return fmt.Errorf("%w: CPT for %q references unknown parent %q",
				ErrMalformedNetwork, node.Variable, p)
		}
		if _, dup := seen[p]; dup {
			return fmt.Errorf("%w: CPT for %q repeats scope variable %q",
				ErrMalformedNetwork, node.Variable, p)
		}
		seen[p] = struct{}{}
		rows *= n.variables[pos].Cardinality()
	}

	want := rows * owner.Cardinality()
	if len(node.Table) != want {
		return fmt.Errorf("%w: CPT for %q has %d values, want %d",
			ErrMalformedNetwork, node.Variable, len(node.Table), want)
	}

	// Owner varies fastest, so each parent configuration is one contiguous
	// run of |domain(owner)| values.
	k := owner.Cardinality()
	for row := 0; row < rows; row++ {
		sum := 0.0
		for i := 0; i < k; i++ {
			p := node.Table[row*k+i]
			if p < 0 || math.IsNaN(p) || math.IsInf(p, 0) {
				return fmt.Errorf("%w: CPT for %q has invalid probability %v",
					ErrMalformedNetwork, node.Variable, p)
			}
			sum += p
		}
		if math.Abs(sum-1.0) > normalizeTolerance {
			return fmt.Errorf("%w: CPT row %d for %q sums to %v, want 1.0",
				ErrMalformedNetwork, row, node.Variable, sum)
		}
	}
	return nil
}

// checkAcyclic verifies the parent relation defines a DAG via Kahn's
// algorithm.
func (n *Network) checkAcyclic() error {
	indegree := make(map[string]int, len(n.variables))
	children := make(map[string][]string, len(n.variables))
	for _, node := range n.nodes {
		indegree[node.Variable] += len(node.Parents)
		for _, p := range node.Parents {
			children[p] = append(children[p], node.Variable)
		}
	}

	var queue []string
	for _, v := range n.variables {
		if indegree[v.Name] == 0 {
			queue = append(queue, v.Name)
		}
	}
	visited := 0
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		visited++
		for _, c := range children[name] {
			indegree[c]--
			if indegree[c] == 0 {
				queue = append(queue, c)
			}
		}
	}
	if visited != len(n.variables) {
		return fmt.Errorf("%w: parent relation contains a cycle", ErrMalformedNetwork)
	}
	return nil
}

// Name returns the network name.
func (n *Network) Name() string {
	return n.name
}

// Variables returns the variables in declaration order. Callers must not
// mutate the returned slice.
func (n *Network) Variables() []*Variable {
	return n.variables
}

// Variable looks a variable up by name.
func (n *Network) Variable(name string) (*Variable, bool) {
	pos, ok := n.position[name]
	if !ok {
		return nil, false
	}
	return n.variables[pos], true
}

// declPosition returns the declaration position of a variable the network is
// known to contain.
func (n *Network) declPosition(name string) int {
	return n.position[name]
}

// factors builds the initial working factor per CPT node. The factor scope
// is [P1..Pk, owner]: with the engine's row-major convention (last scope
// variable fastest) the interchange flat table is already in canonical
// order, so the values are copied verbatim.
func (n *Network) factors() []*Factor {
	out := make([]*Factor, 0, len(n.variables))
	for _, v := range n.variables {
		node := n.nodes[v.Name]
		scope := make([]*Variable, 0, len(node.Parents)+1)
		for _, p := range node.Parents {
			scope = append(scope, n.variables[n.position[p]])
		}
		scope = append(scope, v)

		table := make([]float64, len(node.Table))
		copy(table, node.Table)
		out = append(out, &Factor{scope: scope, table: table})
	}
	return out
}

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

// Selector chooses which variable to eliminate next within a phase.
//
// The choice affects peak table size and latency only, never the query
// result. Implementations must be deterministic.
type Selector interface {
	// Next picks one variable from remaining, given the current working
	// factors. remaining is non-empty; the returned variable must be one of
	// its elements.
	Next(factors []*Factor, remaining []*Variable) *Variable
}

// MinTableSelector is the default greedy heuristic: eliminate the variable
// whose combined factor (the product of every factor mentioning it) has the
// smallest table, breaking ties by declaration position.
//
// Peak memory during elimination equals the largest combined-scope table, so
// minimizing the next combined table bounds resident size step by step.
type MinTableSelector struct {
	net *Network
}

// NewMinTableSelector returns the greedy min-table selector for net.
func NewMinTableSelector(net *Network) *MinTableSelector {
	return &MinTableSelector{net: net}
}

// Next implements Selector.
func (s *MinTableSelector) Next(factors []*Factor, remaining []*Variable) *Variable {
	var best *Variable
	bestCost := 0
	for _, v := range remaining {
		cost := s.combinedTableSize(factors, v)
		switch {
		case best == nil || cost < bestCost:
			best, bestCost = v, cost
		case cost == bestCost &&
			s.net.declPosition(v.Name) < s.net.declPosition(best.Name):
			best = v
		}
	}
	return best
}

// combinedTableSize returns the product of domain sizes over the union of
// the scopes of every factor mentioning v.
func (s *MinTableSelector) combinedTableSize(factors []*Factor, v *Variable) int {
	union := make(map[*Variable]struct{})
	for _, f := range factors {
		if f.positionOf(v) < 0 {
			continue
		}
		for _, sv := range f.scope {
			union[sv] = struct{}{}
		}
	}
	size := 1
	for sv := range union {
		size *= sv.Cardinality()
	}
	return size
}

// FixedOrderSelector eliminates variables in a caller-supplied order.
// Variables absent from the order are picked last, in remaining order. Used
// to pin elimination orders in tests and to reproduce traces.
type FixedOrderSelector struct {
	order []string
}

// NewFixedOrderSelector returns a selector that follows order.
func NewFixedOrderSelector(order []string) *FixedOrderSelector {
	return &FixedOrderSelector{order: order}
}

// Next implements Selector.
func (s *FixedOrderSelector) Next(factors []*Factor, remaining []*Variable) *Variable {
	for _, name := range s.order {
		for _, v := range remaining {
			if v.Name == name {
				return v
			}
		}
	}
	return remaining[0]
}

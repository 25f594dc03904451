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

// Variable is a discrete random variable with an ordered, finite outcome
// domain. Domain order is significant: the position of a label in Domain is
// the canonical index used in every table that mentions the variable.
type Variable struct {
	// Name uniquely identifies the variable within its network.
	Name string

	// Domain lists the outcome labels in canonical order.
	Domain []string
}

// Cardinality returns the number of outcomes in the variable's domain.
func (v *Variable) Cardinality() int {
	return len(v.Domain)
}

// domainIndex returns the canonical index of label, or -1 if the label is
// not in the domain. Lookups are by position, never by parsing the label.
func (v *Variable) domainIndex(label string) int {
	for i, d := range v.Domain {
		if d == label {
			return i
		}
	}
	return -1
}

// Node attaches a conditional probability table to its owner variable.
//
// Table follows the interchange convention: the owner's domain varies
// fastest, and among the parents, Parents[0] varies slowest. Its length must
// equal |domain(owner)| times the product of the parent domain sizes.
type Node struct {
	// Variable names the owner.
	Variable string

	// Parents lists the conditioning variables in declared order.
	Parents []string

	// Table holds the flat CPT values.
	Table []float64
}

// Assignment maps variable names to outcome labels.
type Assignment map[string]string

// MAPResult is the outcome of a ComputeMAP or ComputeMPE query.
type MAPResult struct {
	// QueryID uniquely identifies the query invocation for log correlation.
	QueryID string `json:"query_id"`

	// Assignment is the most probable joint assignment to the query
	// variables (evidence variables are included at their fixed values).
	Assignment Assignment `json:"assignment"`

	// Probability is the joint probability of Assignment with the nuisance
	// variables marginalized out. It is not normalized by the evidence
	// likelihood.
	Probability float64 `json:"probability"`
}

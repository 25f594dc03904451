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
	"strings"

	"github.com/AleutianAI/AleutianBayes/services/bayes"
)

// marginalEntry is one row of a printed marginal distribution.
type marginalEntry struct {
	Assignment  map[string]string `json:"assignment"`
	Probability float64           `json:"probability"`
}

// parseEvidence converts repeated Variable=Value flags into an assignment.
func parseEvidence(pairs []string) (bayes.Assignment, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	evidence := make(bayes.Assignment, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" || value == "" {
			return nil, fmt.Errorf("evidence must be Variable=Value, got %q", pair)
		}
		if _, dup := evidence[name]; dup {
			return nil, fmt.Errorf("evidence variable %q given twice", name)
		}
		evidence[name] = value
	}
	return evidence, nil
}

// enumerateFactor walks every assignment of the factor's scope in canonical
// order and pairs it with its probability.
func enumerateFactor(f *bayes.Factor) ([]marginalEntry, error) {
	scope := f.Scope()
	entries := make([]marginalEntry, 0, f.Size())

	indices := make([]int, len(scope))
	for {
		assignment := make(map[string]int, len(scope))
		labels := make(map[string]string, len(scope))
		for i, v := range scope {
			assignment[v.Name] = indices[i]
			labels[v.Name] = v.Domain[indices[i]]
		}
		p, err := f.Value(assignment)
		if err != nil {
			return nil, err
		}
		entries = append(entries, marginalEntry{Assignment: labels, Probability: p})

		i := len(indices) - 1
		for ; i >= 0; i-- {
			indices[i]++
			if indices[i] < scope[i].Cardinality() {
				break
			}
			indices[i] = 0
		}
		if i < 0 {
			return entries, nil
		}
	}
}

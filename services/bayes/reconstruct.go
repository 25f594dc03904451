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

import "fmt"

// reconstruct walks max-out backtrack records in reverse elimination order
// and returns the maximizing assignment as domain indices.
//
// Description:
//
//	The record of the LAST max-out has an empty key scope. Walking
//	backwards, every variable in a record's key scope was eliminated after
//	the record's variable, so it is already resolved by the time the record
//	is looked up. A missing value during lookup therefore signals broken
//	elimination-order bookkeeping and surfaces as ErrVariableNotInScope.
//
// Inputs:
//
//	records - Max-out records in forward elimination order.
//	evidence - Fixed domain indices for evidence variables; copied into the
//	    partial assignment (record scopes never mention evidence variables,
//	    but callers fold evidence into the reported result).
func reconstruct(records []*Record, evidence map[*Variable]int) (map[string]int, error) {
	assignment := make(map[string]int, len(records)+len(evidence))
	for v, idx := range evidence {
		assignment[v.Name] = idx
	}

	for i := len(records) - 1; i >= 0; i-- {
		rec := records[i]
		idx, err := rec.Lookup(assignment)
		if err != nil {
			return nil, fmt.Errorf("reconstruct %q: %w", rec.Variable().Name, err)
		}
		if idx < 0 || idx >= rec.Variable().Cardinality() {
			return nil, fmt.Errorf("reconstruct %q: argmax index %d out of range",
				rec.Variable().Name, idx)
		}
		assignment[rec.Variable().Name] = idx
	}
	return assignment, nil
}

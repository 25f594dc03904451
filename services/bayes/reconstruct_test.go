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
	"context"
	"errors"
	"testing"
)

// Backtrack consistency: each record's key scope may only mention variables
// eliminated after it, and the record carries one argmax entry per joint
// key assignment. The last record's key scope is empty.
func TestEliminate_RecordScopesNest(t *testing.T) {
	net := burglaryNetwork(t, 0.01, 0.02)
	e := newTestEngine(t, net, EngineConfig{})

	q, err := e.resolveQuery([]string{"MaryCalls", "JohnCalls", "Burglary", "Earthquake"}, nil)
	if err != nil {
		t.Fatalf("resolveQuery: %v", err)
	}
	elim, err := e.eliminate(context.Background(), net.factors(), q.nuisance, q.queryVars)
	if err != nil {
		t.Fatalf("eliminate: %v", err)
	}
	if len(elim.records) != 4 {
		t.Fatalf("record count = %d, want 4", len(elim.records))
	}

	for i, rec := range elim.records {
		laterVars := make(map[string]struct{})
		for _, later := range elim.records[i+1:] {
			laterVars[later.Variable().Name] = struct{}{}
		}

		size := 1
		for _, v := range rec.Scope() {
			if _, ok := laterVars[v.Name]; !ok {
				t.Errorf("record %d (%s): key scope mentions %q, which is not eliminated later",
					i, rec.Variable().Name, v.Name)
			}
			size *= v.Cardinality()
		}
		if rec.Size() != size {
			t.Errorf("record %d (%s): %d argmax entries, want %d",
				i, rec.Variable().Name, rec.Size(), size)
		}
	}
	if last := elim.records[len(elim.records)-1]; len(last.Scope()) != 0 {
		t.Errorf("last record (%s) has non-empty key scope", last.Variable().Name)
	}
}

func TestReconstruct_WalksRecordsInReverse(t *testing.T) {
	a := &Variable{Name: "A", Domain: boolDomain}
	b := &Variable{Name: "B", Domain: boolDomain}

	// A was maxed out first, so its record is keyed by B; B's record is the
	// final scalar-scope record. B resolves to 1, then A looks up argmax[B=1].
	records := []*Record{
		{variable: a, scope: []*Variable{b}, argmax: []int{0, 1}},
		{variable: b, scope: nil, argmax: []int{1}},
	}

	got, err := reconstruct(records, nil)
	if err != nil {
		t.Fatalf("reconstruct: %v", err)
	}
	if got["B"] != 1 {
		t.Errorf("B = %d, want 1", got["B"])
	}
	if got["A"] != 1 {
		t.Errorf("A = %d, want 1 (argmax for B=1)", got["A"])
	}
}

func TestReconstruct_SeedsEvidence(t *testing.T) {
	a := &Variable{Name: "A", Domain: boolDomain}
	ev := &Variable{Name: "E", Domain: boolDomain}

	records := []*Record{
		{variable: a, scope: nil, argmax: []int{0}},
	}
	got, err := reconstruct(records, map[*Variable]int{ev: 1})
	if err != nil {
		t.Fatalf("reconstruct: %v", err)
	}
	if got["E"] != 1 {
		t.Errorf("evidence E = %d, want 1", got["E"])
	}
	if got["A"] != 0 {
		t.Errorf("A = %d, want 0", got["A"])
	}
}

func TestReconstruct_MissingScopeValue(t *testing.T) {
	a := &Variable{Name: "A", Domain: boolDomain}
	b := &Variable{Name: "B", Domain: boolDomain}

	// A's record needs B, but no record resolves B.
	records := []*Record{
		{variable: a, scope: []*Variable{b}, argmax: []int{0, 1}},
	}
	_, err := reconstruct(records, nil)
	if err == nil {
		t.Fatal("expected error for unresolved key variable")
	}
	if !errors.Is(err, ErrVariableNotInScope) {
		t.Fatalf("expected ErrVariableNotInScope, got: %v", err)
	}
}

func TestReconstruct_ArgmaxOutOfRange(t *testing.T) {
	a := &Variable{Name: "A", Domain: boolDomain}

	records := []*Record{
		{variable: a, scope: nil, argmax: []int{-1}},
	}
	if _, err := reconstruct(records, nil); err == nil {
		t.Fatal("expected error for out-of-range argmax index")
	}
}

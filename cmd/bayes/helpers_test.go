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
	"testing"

	"github.com/AleutianAI/AleutianBayes/services/bayes"
)

func TestParseEvidence(t *testing.T) {
	got, err := parseEvidence([]string{"JohnCalls=True", "MaryCalls=False"})
	if err != nil {
		t.Fatalf("parseEvidence: %v", err)
	}
	if got["JohnCalls"] != "True" || got["MaryCalls"] != "False" {
		t.Errorf("unexpected evidence: %v", got)
	}
}

func TestParseEvidence_Empty(t *testing.T) {
	got, err := parseEvidence(nil)
	if err != nil {
		t.Fatalf("parseEvidence: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil assignment, got %v", got)
	}
}

func TestParseEvidence_Invalid(t *testing.T) {
	for _, pair := range []string{"NoEquals", "=Value", "Name=", "A=1=2ok"} {
		_, err := parseEvidence([]string{pair})
		if pair == "A=1=2ok" {
			// Values may contain '='; only the first split counts.
			if err != nil {
				t.Errorf("parseEvidence(%q) unexpectedly failed: %v", pair, err)
			}
			continue
		}
		if err == nil {
			t.Errorf("parseEvidence(%q) expected error", pair)
		}
	}
}

func TestParseEvidence_Duplicate(t *testing.T) {
	if _, err := parseEvidence([]string{"A=x", "A=y"}); err == nil {
		t.Error("expected error for duplicate evidence variable")
	}
}

func TestEnumerateFactor(t *testing.T) {
	x := &bayes.Variable{Name: "X", Domain: []string{"a", "b"}}
	f, err := bayes.NewFactor([]*bayes.Variable{x}, []float64{0.3, 0.7})
	if err != nil {
		t.Fatalf("NewFactor: %v", err)
	}

	entries, err := enumerateFactor(f)
	if err != nil {
		t.Fatalf("enumerateFactor: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entry count = %d, want 2", len(entries))
	}
	if entries[0].Assignment["X"] != "a" || entries[0].Probability != 0.3 {
		t.Errorf("first entry = %+v", entries[0])
	}
	if entries[1].Assignment["X"] != "b" || entries[1].Probability != 0.7 {
		t.Errorf("second entry = %+v", entries[1])
	}
}

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

import "testing"

// boolDomain orders True before False, so index 0 is True everywhere.
var boolDomain = []string{"True", "False"}

// burglaryNetwork is the five-variable alarm network used by the worked MAP
// examples: B and E are root causes, A depends on both, J and M depend on A.
//
// pB and pE are the True-probabilities of the two roots; the remaining CPTs
// are fixed (P(A=T|B,E) = .95/.94/.29/.001, P(J=T|A) = .9/.05,
// P(M=T|A) = .7/.01).
func burglaryNetwork(t *testing.T, pB, pE float64) *Network {
	t.Helper()
	net, err := NewNetwork("burglary",
		[]Variable{
			{Name: "Burglary", Domain: boolDomain},
			{Name: "Earthquake", Domain: boolDomain},
			{Name: "Alarm", Domain: boolDomain},
			{Name: "JohnCalls", Domain: boolDomain},
			{Name: "MaryCalls", Domain: boolDomain},
		},
		[]Node{
			{Variable: "Burglary", Table: []float64{pB, 1 - pB}},
			{Variable: "Earthquake", Table: []float64{pE, 1 - pE}},
			{
				Variable: "Alarm",
				Parents:  []string{"Burglary", "Earthquake"},
				Table: []float64{
					0.95, 0.05, // B=T E=T
					0.94, 0.06, // B=T E=F
					0.29, 0.71, // B=F E=T
					0.001, 0.999, // B=F E=F
				},
			},
			{
				Variable: "JohnCalls",
				Parents:  []string{"Alarm"},
				Table:    []float64{0.90, 0.10, 0.05, 0.95},
			},
			{
				Variable: "MaryCalls",
				Parents:  []string{"Alarm"},
				Table:    []float64{0.70, 0.30, 0.01, 0.99},
			},
		},
	)
	if err != nil {
		t.Fatalf("burglaryNetwork: %v", err)
	}
	return net
}

// sprinklerNetwork is the four-variable wet-grass network (Cloudy,
// Sprinkler, Rain, WetGrass).
func sprinklerNetwork(t *testing.T) *Network {
	t.Helper()
	net, err := NewNetwork("sprinkler",
		[]Variable{
			{Name: "Cloudy", Domain: boolDomain},
			{Name: "Sprinkler", Domain: boolDomain},
			{Name: "Rain", Domain: boolDomain},
			{Name: "WetGrass", Domain: boolDomain},
		},
		[]Node{
			{Variable: "Cloudy", Table: []float64{0.5, 0.5}},
			{
				Variable: "Sprinkler",
				Parents:  []string{"Cloudy"},
				Table:    []float64{0.10, 0.90, 0.50, 0.50},
			},
			{
				Variable: "Rain",
				Parents:  []string{"Cloudy"},
				Table:    []float64{0.80, 0.20, 0.20, 0.80},
			},
			{
				Variable: "WetGrass",
				Parents:  []string{"Sprinkler", "Rain"},
				Table: []float64{
					0.99, 0.01,
					0.90, 0.10,
					0.90, 0.10,
					0.00, 1.00,
				},
			},
		},
	)
	if err != nil {
		t.Fatalf("sprinklerNetwork: %v", err)
	}
	return net
}

// twoIslandNetwork has two connected components of two variables each:
// {A -> B} and {C -> D}. Used by the component-parallelism tests.
func twoIslandNetwork(t *testing.T) *Network {
	t.Helper()
	net, err := NewNetwork("islands",
		[]Variable{
			{Name: "A", Domain: boolDomain},
			{Name: "B", Domain: boolDomain},
			{Name: "C", Domain: boolDomain},
			{Name: "D", Domain: boolDomain},
		},
		[]Node{
			{Variable: "A", Table: []float64{0.3, 0.7}},
			{Variable: "B", Parents: []string{"A"}, Table: []float64{0.8, 0.2, 0.4, 0.6}},
			{Variable: "C", Table: []float64{0.6, 0.4}},
			{Variable: "D", Parents: []string{"C"}, Table: []float64{0.25, 0.75, 0.9, 0.1}},
		},
	)
	if err != nil {
		t.Fatalf("twoIslandNetwork: %v", err)
	}
	return net
}

// mustVariable fetches a variable the fixture is known to declare.
func mustVariable(t *testing.T, net *Network, name string) *Variable {
	t.Helper()
	v, ok := net.Variable(name)
	if !ok {
		t.Fatalf("fixture is missing variable %q", name)
	}
	return v
}

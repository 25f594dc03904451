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
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
	"testing"
)

// goldenMAPProbability is the hand-checked MAP value for the burglary
// network with P(B)=.01, P(E)=.02, querying {M, J, B, E} with Alarm as the
// sole nuisance variable:
//
//	.99 * .98 * (.999*.95*.99 + .001*.1*.3) = 0.91158974
const goldenMAPProbability = 0.91158974

func newTestEngine(t *testing.T, net *Network, cfg EngineConfig) *Engine {
	t.Helper()
	e, err := NewEngine(net, cfg)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func TestComputeMAP_GoldenBurglary(t *testing.T) {
	net := burglaryNetwork(t, 0.01, 0.02)
	e := newTestEngine(t, net, EngineConfig{})

	res, err := e.ComputeMAP(context.Background(),
		[]string{"MaryCalls", "JohnCalls", "Burglary", "Earthquake"}, nil)
	if err != nil {
		t.Fatalf("ComputeMAP: %v", err)
	}

	want := Assignment{
		"Burglary":   "False",
		"Earthquake": "False",
		"JohnCalls":  "False",
		"MaryCalls":  "False",
	}
	for name, label := range want {
		if res.Assignment[name] != label {
			t.Errorf("assignment[%s] = %q, want %q", name, res.Assignment[name], label)
		}
	}
	if !almostEqual(res.Probability, goldenMAPProbability, 1e-6) {
		t.Errorf("probability = %.9f, want %.9f", res.Probability, goldenMAPProbability)
	}
	if res.QueryID == "" {
		t.Error("empty query ID")
	}
}

// The elimination order changes latency and memory only; probability and
// assignment must be identical across orders within each phase.
func TestComputeMAP_OrderIndependence(t *testing.T) {
	net := burglaryNetwork(t, 0.01, 0.02)
	mapVars := []string{"MaryCalls", "JohnCalls", "Burglary", "Earthquake"}

	orders := [][]string{
		{"Alarm", "MaryCalls", "JohnCalls", "Burglary", "Earthquake"},
		{"Alarm", "Earthquake", "Burglary", "JohnCalls", "MaryCalls"},
		{"Alarm", "JohnCalls", "Earthquake", "MaryCalls", "Burglary"},
	}

	var first *MAPResult
	for _, order := range orders {
		e := newTestEngine(t, net, EngineConfig{Selector: NewFixedOrderSelector(order)})
		res, err := e.ComputeMAP(context.Background(), mapVars, nil)
		if err != nil {
			t.Fatalf("ComputeMAP with order %v: %v", order, err)
		}
		if first == nil {
			first = res
			continue
		}
		if !almostEqual(res.Probability, first.Probability, 1e-9) {
			t.Errorf("order %v: probability %.12f diverges from %.12f",
				order, res.Probability, first.Probability)
		}
		for name, label := range first.Assignment {
			if res.Assignment[name] != label {
				t.Errorf("order %v: assignment[%s] = %q, want %q",
					order, name, res.Assignment[name], label)
			}
		}
	}
}

// Max-out before sum-out is wrong, not merely slow: maxing the nuisance
// Alarm variable first yields a different number than the phase-ordered
// engine. This pins the sum-before-max requirement as a correctness
// property.
func TestPhaseOrdering_MaxBeforeSumDiverges(t *testing.T) {
	net := burglaryNetwork(t, 0.01, 0.02)
	alarm := mustVariable(t, net, "Alarm")

	// Mis-ordered: combine every factor mentioning Alarm and max it out
	// while J and M are still uneliminated, then finish with max everywhere.
	factors := net.factors()
	var combined *Factor
	rest := make([]*Factor, 0, len(factors))
	for _, f := range factors {
		if f.positionOf(alarm) < 0 {
			rest = append(rest, f)
			continue
		}
		if combined == nil {
			combined = f
			continue
		}
		var err error
		combined, err = Multiply(combined, f, 0)
		if err != nil {
			t.Fatalf("Multiply: %v", err)
		}
	}
	maxed, _, err := combined.MaxOut(alarm)
	if err != nil {
		t.Fatalf("MaxOut: %v", err)
	}

	wrong := maxed
	for _, f := range rest {
		if wrong, err = Multiply(wrong, f, 0); err != nil {
			t.Fatalf("Multiply: %v", err)
		}
	}
	for _, name := range []string{"Burglary", "Earthquake", "JohnCalls", "MaryCalls"} {
		v := mustVariable(t, net, name)
		if wrong, _, err = wrong.MaxOut(v); err != nil {
			t.Fatalf("MaxOut(%s): %v", name, err)
		}
	}
	wrongValue, err := wrong.Value(map[string]int{})
	if err != nil {
		t.Fatalf("Value: %v", err)
	}

	if math.Abs(wrongValue-goldenMAPProbability) < 1e-6 {
		t.Errorf("mis-ordered elimination produced %.9f, expected divergence from %.9f",
			wrongValue, goldenMAPProbability)
	}
}

// MAP with E=False as evidence must land on the same joint probability as
// the unconditioned MAP (which itself picks E=False), and the value must
// match the maximum of the evidence-restricted marginal.
func TestComputeMAP_EvidenceMatchesMarginalSlice(t *testing.T) {
	net := burglaryNetwork(t, 0.01, 0.02)
	e := newTestEngine(t, net, EngineConfig{})
	ctx := context.Background()

	res, err := e.ComputeMAP(ctx, []string{"MaryCalls", "JohnCalls", "Burglary"},
		Assignment{"Earthquake": "False"})
	if err != nil {
		t.Fatalf("ComputeMAP: %v", err)
	}
	if res.Assignment["Earthquake"] != "False" {
		t.Errorf("evidence not folded into assignment: %v", res.Assignment)
	}
	if !almostEqual(res.Probability, goldenMAPProbability, 1e-6) {
		t.Errorf("conditioned MAP probability = %.9f, want %.9f",
			res.Probability, goldenMAPProbability)
	}

	marginal, err := e.ComputeMarginal(ctx,
		[]string{"MaryCalls", "JohnCalls", "Burglary"}, Assignment{"Earthquake": "False"})
	if err != nil {
		t.Fatalf("ComputeMarginal: %v", err)
	}
	if !almostEqual(marginal.MaxValue(), res.Probability, 1e-9) {
		t.Errorf("marginal max = %.12f, MAP probability = %.12f",
			marginal.MaxValue(), res.Probability)
	}
}

// Summing the entire joint must give 1.0 for any valid network.
func TestComputeMarginal_Normalization(t *testing.T) {
	ctx := context.Background()
	for _, net := range []*Network{
		burglaryNetwork(t, 0.01, 0.02),
		sprinklerNetwork(t),
		twoIslandNetwork(t),
	} {
		e := newTestEngine(t, net, EngineConfig{})
		f, err := e.ComputeMarginal(ctx, nil, nil)
		if err != nil {
			t.Fatalf("%s: ComputeMarginal: %v", net.Name(), err)
		}
		if len(f.Scope()) != 0 {
			t.Fatalf("%s: expected scalar factor, scope %v", net.Name(), f.Scope())
		}
		total, _ := f.Value(map[string]int{})
		if !almostEqual(total, 1.0, 1e-6) {
			t.Errorf("%s: joint mass = %v, want 1.0", net.Name(), total)
		}
	}
}

// Posterior golden from the classic alarm example: P(Burglary | J=T, M=T)
// with priors .001/.002 is about (0.284, 0.716).
func TestComputeMarginal_BurglaryPosterior(t *testing.T) {
	net := burglaryNetwork(t, 0.001, 0.002)
	e := newTestEngine(t, net, EngineConfig{})

	f, err := e.ComputeMarginal(context.Background(), []string{"Burglary"},
		Assignment{"JohnCalls": "True", "MaryCalls": "True"})
	if err != nil {
		t.Fatalf("ComputeMarginal: %v", err)
	}
	posterior, err := f.Normalize()
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	pTrue, _ := posterior.Value(map[string]int{"Burglary": 0})
	pFalse, _ := posterior.Value(map[string]int{"Burglary": 1})
	if !almostEqual(pTrue, 0.2841718, 1e-4) {
		t.Errorf("P(B=T|j,m) = %.7f, want 0.2841718", pTrue)
	}
	if !almostEqual(pFalse, 0.7158282, 1e-4) {
		t.Errorf("P(B=F|j,m) = %.7f, want 0.7158282", pFalse)
	}
}

func TestComputeMarginal_Sprinkler(t *testing.T) {
	net := sprinklerNetwork(t)
	e := newTestEngine(t, net, EngineConfig{})

	f, err := e.ComputeMarginal(context.Background(), []string{"Rain"}, nil)
	if err != nil {
		t.Fatalf("ComputeMarginal: %v", err)
	}
	pRain, _ := f.Value(map[string]int{"Rain": 0})
	if !almostEqual(pRain, 0.5, 1e-9) {
		t.Errorf("P(Rain=T) = %v, want 0.5", pRain)
	}
}

// Parallel component elimination is an optimization only: the islands
// network decomposes into {A,B} and {C,D}, and both modes must agree.
func TestComputeMAP_ParallelComponents(t *testing.T) {
	net := twoIslandNetwork(t)
	ctx := context.Background()
	mapVars := []string{"A", "B", "C", "D"}

	sequential := newTestEngine(t, net, EngineConfig{})
	parallel := newTestEngine(t, net, EngineConfig{Parallel: true})

	seqRes, err := sequential.ComputeMAP(ctx, mapVars, nil)
	if err != nil {
		t.Fatalf("sequential: %v", err)
	}
	parRes, err := parallel.ComputeMAP(ctx, mapVars, nil)
	if err != nil {
		t.Fatalf("parallel: %v", err)
	}

	// Per-island maxima: (A=F,B=F) = .42 and (C=T,D=F) = .45.
	want := 0.42 * 0.45
	if !almostEqual(seqRes.Probability, want, 1e-9) {
		t.Errorf("sequential probability = %v, want %v", seqRes.Probability, want)
	}
	if seqRes.Probability != parRes.Probability {
		t.Errorf("parallel probability %v differs from sequential %v",
			parRes.Probability, seqRes.Probability)
	}
	for name, label := range seqRes.Assignment {
		if parRes.Assignment[name] != label {
			t.Errorf("parallel assignment[%s] = %q, want %q",
				name, parRes.Assignment[name], label)
		}
	}
	wantAssign := Assignment{"A": "False", "B": "False", "C": "True", "D": "False"}
	for name, label := range wantAssign {
		if seqRes.Assignment[name] != label {
			t.Errorf("assignment[%s] = %q, want %q", name, seqRes.Assignment[name], label)
		}
	}
}

func TestComputeMAP_Cancelled(t *testing.T) {
	net := burglaryNetwork(t, 0.01, 0.02)
	e := newTestEngine(t, net, EngineConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.ComputeMAP(ctx, []string{"Burglary"}, nil)
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got: %v", err)
	}
}

func TestComputeMAP_ScopeOverflow(t *testing.T) {
	net := burglaryNetwork(t, 0.01, 0.02)
	e := newTestEngine(t, net, EngineConfig{TableCap: 4})

	_, err := e.ComputeMAP(context.Background(),
		[]string{"MaryCalls", "JohnCalls", "Burglary", "Earthquake"}, nil)
	if err == nil {
		t.Fatal("expected overflow error")
	}
	if !errors.Is(err, ErrScopeOverflow) {
		t.Fatalf("expected ErrScopeOverflow, got: %v", err)
	}
}

func TestCheckUnderflow_Warns(t *testing.T) {
	net := burglaryNetwork(t, 0.01, 0.02)
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	e := newTestEngine(t, net, EngineConfig{Logger: logger})

	a := &Variable{Name: "A", Domain: boolDomain}
	tiny, _ := NewFactor([]*Variable{a}, []float64{1e-310, 1e-312})
	e.checkUnderflow(tiny, a)

	if !strings.Contains(buf.String(), "precision floor") {
		t.Errorf("expected underflow warning, log output: %s", buf.String())
	}
}

func TestComputeMPE_EqualsMAPOverAllVariables(t *testing.T) {
	net := burglaryNetwork(t, 0.001, 0.002)
	e := newTestEngine(t, net, EngineConfig{})
	ctx := context.Background()
	evidence := Assignment{"JohnCalls": "True", "MaryCalls": "True"}

	mpe, err := e.ComputeMPE(ctx, evidence)
	if err != nil {
		t.Fatalf("ComputeMPE: %v", err)
	}
	full, err := e.ComputeMAP(ctx, []string{"Burglary", "Earthquake", "Alarm"}, evidence)
	if err != nil {
		t.Fatalf("ComputeMAP: %v", err)
	}

	if !almostEqual(mpe.Probability, full.Probability, 1e-12) {
		t.Errorf("MPE probability %v != MAP probability %v", mpe.Probability, full.Probability)
	}
	for name, label := range full.Assignment {
		if mpe.Assignment[name] != label {
			t.Errorf("MPE assignment[%s] = %q, want %q", name, mpe.Assignment[name], label)
		}
	}
}

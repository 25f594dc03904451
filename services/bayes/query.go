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
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// query holds the validated inputs of one invocation.
type query struct {
	queryVars []*Variable
	nuisance  []*Variable
	evidence  map[*Variable]int
}

// resolveQuery validates the query inputs eagerly, before any elimination
// begins. All ErrInvalidQuery conditions surface here.
func (e *Engine) resolveQuery(queryNames []string, evidence Assignment) (*query, error) {
	q := &query{evidence: make(map[*Variable]int, len(evidence))}

	inQuery := make(map[string]struct{}, len(queryNames))
	for _, name := range queryNames {
		v, ok := e.net.Variable(name)
		if !ok {
			return nil, fmt.Errorf("%w: unknown query variable %q", ErrInvalidQuery, name)
		}
		if _, dup := inQuery[name]; dup {
			return nil, fmt.Errorf("%w: query variable %q listed twice", ErrInvalidQuery, name)
		}
		inQuery[name] = struct{}{}
		q.queryVars = append(q.queryVars, v)
	}

	for name, label := range evidence {
		v, ok := e.net.Variable(name)
		if !ok {
			return nil, fmt.Errorf("%w: unknown evidence variable %q", ErrInvalidQuery, name)
		}
		if _, both := inQuery[name]; both {
			return nil, fmt.Errorf("%w: variable %q is both query and evidence", ErrInvalidQuery, name)
		}
		idx := v.domainIndex(label)
		if idx < 0 {
			return nil, fmt.Errorf("%w: value %q is not in the domain of %q",
				ErrInvalidQuery, label, name)
		}
		q.evidence[v] = idx
	}

	for _, v := range e.net.variables {
		if _, ok := inQuery[v.Name]; ok {
			continue
		}
		if _, ok := q.evidence[v]; ok {
			continue
		}
		q.nuisance = append(q.nuisance, v)
	}
	return q, nil
}

// ComputeMAP returns the most probable joint assignment to mapVariables
// given the evidence, marginalizing every other variable, together with its
// joint probability.
//
// Inputs:
//
//	ctx - Cancellation context, polled at elimination step boundaries.
//	mapVariables - The query set M. Must be disjoint from the evidence.
//	evidence - Observed values, or nil.
//
// Outputs:
//
//	*MAPResult - Assignment over M plus the evidence, with probability.
//	error - ErrInvalidQuery, ErrScopeOverflow, or ErrCancelled (via
//	    errors.Is).
func (e *Engine) ComputeMAP(ctx context.Context, mapVariables []string, evidence Assignment) (*MAPResult, error) {
	if ctx == nil {
		return nil, errors.New("nil context")
	}
	queryID := uuid.NewString()
	ctx, span := tracer.Start(ctx, "bayes.ComputeMAP")
	defer span.End()
	span.SetAttributes(
		attribute.String("network", e.net.name),
		attribute.String("query_id", queryID),
		attribute.Int("map_variables", len(mapVariables)),
	)
	start := time.Now()

	q, err := e.resolveQuery(mapVariables, evidence)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	factors, err := e.applyEvidence(e.net.factors(), q.evidence)
	if err != nil {
		return nil, err
	}

	elim, err := e.eliminate(ctx, factors, q.nuisance, q.queryVars)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	indices, err := reconstruct(elim.records, q.evidence)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	assignment := make(Assignment, len(indices))
	for name, idx := range indices {
		v, _ := e.net.Variable(name)
		assignment[name] = v.Domain[idx]
	}

	e.logger.Info("MAP query complete",
		"network", e.net.name,
		"query_id", queryID,
		"map_variables", len(mapVariables),
		"evidence_variables", len(evidence),
		"probability", elim.scalar,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return &MAPResult{QueryID: queryID, Assignment: assignment, Probability: elim.scalar}, nil
}

// ComputeMPE returns the most probable explanation: ComputeMAP over every
// non-evidence variable.
func (e *Engine) ComputeMPE(ctx context.Context, evidence Assignment) (*MAPResult, error) {
	var names []string
	for _, v := range e.net.variables {
		if _, ok := evidence[v.Name]; !ok {
			names = append(names, v.Name)
		}
	}
	return e.ComputeMAP(ctx, names, evidence)
}

// ComputeMarginal sums out every variable outside retainVariables and the
// evidence, returning the (unnormalized) joint factor over the retained
// variables. With an empty retain set and no evidence the result is a scalar
// factor holding the total joint mass, 1.0 for any valid network.
//
// Marginal queries never max out, so they exercise the factor algebra
// independently of the MAP path.
func (e *Engine) ComputeMarginal(ctx context.Context, retainVariables []string, evidence Assignment) (*Factor, error) {
	if ctx == nil {
		return nil, errors.New("nil context")
	}
	ctx, span := tracer.Start(ctx, "bayes.ComputeMarginal")
	defer span.End()
	span.SetAttributes(
		attribute.String("network", e.net.name),
		attribute.Int("retain_variables", len(retainVariables)),
	)

	q, err := e.resolveQuery(retainVariables, evidence)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	factors, err := e.applyEvidence(e.net.factors(), q.evidence)
	if err != nil {
		return nil, err
	}

	e.initMetrics()
	factors, _, err = e.runPhase(ctx, factors, q.nuisance, false)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	result := factors[0]
	for _, f := range factors[1:] {
		result, err = Multiply(result, f, e.tableCap)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
	}
	return result, nil
}

// ComputeMAP is a convenience wrapper that runs one MAP query with a default
// engine.
func ComputeMAP(ctx context.Context, net *Network, mapVariables []string, evidence Assignment) (*MAPResult, error) {
	e, err := NewEngine(net, EngineConfig{})
	if err != nil {
		return nil, err
	}
	return e.ComputeMAP(ctx, mapVariables, evidence)
}

// ComputeMarginal is a convenience wrapper that runs one marginal query with
// a default engine.
func ComputeMarginal(ctx context.Context, net *Network, retainVariables []string, evidence Assignment) (*Factor, error) {
	e, err := NewEngine(net, EngineConfig{})
	if err != nil {
		return nil, err
	}
	return e.ComputeMarginal(ctx, retainVariables, evidence)
}

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
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"
)

var (
	tracer = otel.Tracer("aleutian.bayes")
	meter  = otel.Meter("aleutian.bayes")
)

const (
	// defaultTableCap bounds intermediate factor tables. A five-variable
	// binary network never comes close; the cap exists to turn runaway
	// combinatorial blow-up on large networks into ErrScopeOverflow instead
	// of an OOM kill.
	defaultTableCap = 1 << 20

	// underflowFloor is the representable-precision floor. A working factor
	// whose largest entry falls below it triggers a NumericInstability
	// warning: the query still completes, but long elimination chains in
	// plain probability space may have lost precision.
	underflowFloor = 1e-300
)

// EngineConfig configures an inference Engine.
//
// The zero value is usable: default table cap, greedy min-table elimination
// order, sequential execution, slog.Default() logging.
type EngineConfig struct {
	// TableCap is the maximum entries allowed in any intermediate factor
	// table. 0 means defaultTableCap; negative disables the cap.
	TableCap int

	// Selector picks the elimination order within each phase. Nil means
	// the greedy min-table heuristic.
	Selector Selector

	// Parallel eliminates independent connected components of the factor
	// graph concurrently. Purely an optimization; results are identical.
	Parallel bool

	// Logger receives engine logs. Nil means slog.Default().
	Logger *slog.Logger
}

// Engine runs elimination queries against one network.
//
// Thread Safety:
//
//	Engine is safe for concurrent use. The network is read-only and every
//	query owns its working factor collection.
type Engine struct {
	net      *Network
	tableCap int
	selector Selector
	parallel bool
	logger   *slog.Logger

	// Metrics (initialized lazily)
	metricsOnce   sync.Once
	stepLatency   metric.Float64Histogram
	eliminations  metric.Int64Counter
	underflows    metric.Int64Counter
	peakTableSize metric.Int64Histogram
}

// NewEngine creates an engine for the given network.
func NewEngine(net *Network, cfg EngineConfig) (*Engine, error) {
	if net == nil {
		return nil, fmt.Errorf("%w: nil network", ErrMalformedNetwork)
	}
	e := &Engine{
		net:      net,
		tableCap: cfg.TableCap,
		selector: cfg.Selector,
		parallel: cfg.Parallel,
		logger:   cfg.Logger,
	}
	if e.tableCap == 0 {
		e.tableCap = defaultTableCap
	}
	if e.selector == nil {
		e.selector = NewMinTableSelector(net)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e, nil
}

// initMetrics lazily initializes metrics. Failures degrade observability but
// never fail a query.
func (e *Engine) initMetrics() {
	e.metricsOnce.Do(func() {
		var initErrors []string

		var err error
		e.stepLatency, err = meter.Float64Histogram("bayes_elimination_step_duration_seconds",
			metric.WithDescription("Time spent eliminating one variable"),
			metric.WithUnit("s"),
		)
		if err != nil {
			initErrors = append(initErrors, "step_latency: "+err.Error())
		}

		e.eliminations, err = meter.Int64Counter("bayes_eliminations_total",
			metric.WithDescription("Number of variable eliminations by operator"),
		)
		if err != nil {
			initErrors = append(initErrors, "eliminations: "+err.Error())
		}

		e.underflows, err = meter.Int64Counter("bayes_underflow_warnings_total",
			metric.WithDescription("Working factors whose mass fell below the precision floor"),
		)
		if err != nil {
			initErrors = append(initErrors, "underflows: "+err.Error())
		}

		e.peakTableSize, err = meter.Int64Histogram("bayes_combined_table_entries",
			metric.WithDescription("Entries in each combined factor before elimination"),
		)
		if err != nil {
			initErrors = append(initErrors, "peak_table_size: "+err.Error())
		}

		if len(initErrors) > 0 {
			e.logger.Error("failed to initialize some engine metrics (observability degraded)",
				slog.Int("failed_count", len(initErrors)),
				slog.Any("errors", initErrors),
			)
		}
	})
}

// elimination is the raw outcome of a completed MAP elimination: the final
// scalar plus the max-out backtrack records in elimination order.
type elimination struct {
	scalar  float64
	records []*Record
}

// eliminate runs the full two-phase elimination: sum out every nuisance
// variable, then max out every query variable.
func (e *Engine) eliminate(ctx context.Context, factors []*Factor, nuisance, query []*Variable) (*elimination, error) {
	e.initMetrics()

	comps := e.components(factors)
	if !e.parallel || len(comps) < 2 {
		return e.eliminateComponent(ctx, factors, nuisance, query)
	}

	// Independent components share no variables, so their eliminations are
	// independent and the joint MAP is the product of per-component scalars
	// with the concatenated records.
	results := make([]*elimination, len(comps))
	g, gctx := errgroup.WithContext(ctx)
	for i, comp := range comps {
		g.Go(func() error {
			res, err := e.eliminateComponent(gctx, comp.factors,
				intersect(nuisance, comp.vars), intersect(query, comp.vars))
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	combined := &elimination{scalar: 1.0}
	for _, res := range results {
		combined.scalar *= res.scalar
		combined.records = append(combined.records, res.records...)
	}
	return combined, nil
}

// eliminateComponent runs both phases sequentially over one factor
// collection. The collection is owned by this call: factors are replaced,
// never mutated in place, so cancellation can simply discard the slice.
func (e *Engine) eliminateComponent(ctx context.Context, factors []*Factor, nuisance, query []*Variable) (*elimination, error) {
	ctx, span := tracer.Start(ctx, "bayes.eliminate")
	defer span.End()
	span.SetAttributes(
		attribute.Int("nuisance_count", len(nuisance)),
		attribute.Int("query_count", len(query)),
	)

	// NuisancePhase. No max-out may run while any nuisance variable
	// remains: sum and max do not commute.
	factors, _, err := e.runPhase(ctx, factors, nuisance, false)
	if err != nil {
		return nil, err
	}

	// MapPhase.
	factors, records, err := e.runPhase(ctx, factors, query, true)
	if err != nil {
		return nil, err
	}

	// Done: every surviving factor must be a scalar.
	scalar := 1.0
	for _, f := range factors {
		if len(f.scope) != 0 {
			return nil, fmt.Errorf("elimination finished with non-empty scope %q", f.scope[0].Name)
		}
		scalar *= f.table[0]
	}
	return &elimination{scalar: scalar, records: records}, nil
}

// runPhase eliminates every variable in toEliminate from the working
// collection, using the configured selector to order the steps. maximize
// selects the reduction operator; only max-out steps produce records.
//
// Cancellation is polled once per step, at the boundary between eliminating
// one variable and starting the next, so a cancelled query never leaves a
// half-updated table behind.
func (e *Engine) runPhase(ctx context.Context, factors []*Factor, toEliminate []*Variable, maximize bool) ([]*Factor, []*Record, error) {
	remaining := append([]*Variable(nil), toEliminate...)
	var records []*Record

	for len(remaining) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrCancelled, err)
		}

		v := e.selector.Next(factors, remaining)
		start := time.Now()

		next, rec, err := e.eliminateVariable(factors, v, maximize)
		if err != nil {
			return nil, nil, err
		}
		factors = next
		if rec != nil {
			records = append(records, rec)
		}

		op := "sum"
		if maximize {
			op = "max"
		}
		if e.stepLatency != nil {
			e.stepLatency.Record(ctx, time.Since(start).Seconds())
		}
		if e.eliminations != nil {
			e.eliminations.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
		}
		e.logger.Debug("eliminated variable",
			"network", e.net.name,
			"variable", v.Name,
			"op", op,
			"working_factors", len(factors),
		)

		remaining = removeVariable(remaining, v)
	}
	return factors, records, nil
}

// eliminateVariable gathers every factor mentioning v, multiplies them into
// one combined factor, reduces v out of it, and returns the collection with
// the gathered factors replaced by the result.
func (e *Engine) eliminateVariable(factors []*Factor, v *Variable, maximize bool) ([]*Factor, *Record, error) {
	var combined *Factor
	next := make([]*Factor, 0, len(factors))
	for _, f := range factors {
		if f.positionOf(v) < 0 {
			next = append(next, f)
			continue
		}
		if combined == nil {
			combined = f
			continue
		}
		var err error
		combined, err = Multiply(combined, f, e.tableCap)
		if err != nil {
			return nil, nil, err
		}
	}
	if combined == nil {
		return nil, nil, fmt.Errorf("%w: no working factor mentions %q", ErrVariableNotInScope, v.Name)
	}

	if e.peakTableSize != nil {
		e.peakTableSize.Record(context.Background(), int64(combined.Size()))
	}
	e.checkUnderflow(combined, v)

	var rec *Record
	var reduced *Factor
	var err error
	if maximize {
		reduced, rec, err = combined.MaxOut(v)
	} else {
		reduced, err = combined.SumOut(v)
	}
	if err != nil {
		return nil, nil, err
	}
	return append(next, reduced), rec, nil
}

// checkUnderflow emits the NumericInstability warning when a combined
// factor's best entry sinks below the precision floor.
func (e *Engine) checkUnderflow(f *Factor, v *Variable) {
	max := f.MaxValue()
	if max > 0 && max < underflowFloor {
		e.logger.Warn("working factor mass below precision floor; consider a smaller model",
			"network", e.net.name,
			"variable", v.Name,
			"max_value", max,
		)
		if e.underflows != nil {
			e.underflows.Add(context.Background(), 1)
		}
	}
}

// component is a connected component of the working factor graph.
type component struct {
	factors []*Factor
	vars    map[*Variable]struct{}
}

// components partitions factors into connected components: two factors are
// connected when their scopes share a variable. Scalar factors attach to the
// first component (ordering of scalar multiplication is immaterial).
// Components are ordered by the smallest declaration position they contain,
// which keeps parallel runs deterministic.
func (e *Engine) components(factors []*Factor) []*component {
	parent := make([]int, len(factors))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	owner := make(map[*Variable]int)
	for i, f := range factors {
		for _, v := range f.scope {
			if j, ok := owner[v]; ok {
				parent[find(i)] = find(j)
			} else {
				owner[v] = i
			}
		}
	}

	byRoot := make(map[int]*component)
	var order []int
	for i, f := range factors {
		if len(f.scope) == 0 {
			continue
		}
		root := find(i)
		c, ok := byRoot[root]
		if !ok {
			c = &component{vars: make(map[*Variable]struct{})}
			byRoot[root] = c
			order = append(order, root)
		}
		c.factors = append(c.factors, f)
		for _, v := range f.scope {
			c.vars[v] = struct{}{}
		}
	}

	comps := make([]*component, 0, len(order))
	for _, root := range order {
		comps = append(comps, byRoot[root])
	}
	sort.SliceStable(comps, func(i, j int) bool {
		return e.minPosition(comps[i]) < e.minPosition(comps[j])
	})

	// Scalars left over from evidence restriction still carry mass.
	for _, f := range factors {
		if len(f.scope) == 0 {
			if len(comps) == 0 {
				comps = append(comps, &component{vars: make(map[*Variable]struct{})})
			}
			comps[0].factors = append(comps[0].factors, f)
		}
	}
	return comps
}

func (e *Engine) minPosition(c *component) int {
	min := len(e.net.variables)
	for v := range c.vars {
		if p := e.net.declPosition(v.Name); p < min {
			min = p
		}
	}
	return min
}

// applyEvidence restricts every factor mentioning an evidence variable to
// its fixed value, dropping the variable from all scopes.
func (e *Engine) applyEvidence(factors []*Factor, evidence map[*Variable]int) ([]*Factor, error) {
	for ev, value := range evidence {
		for i, f := range factors {
			if f.positionOf(ev) < 0 {
				continue
			}
			restricted, err := f.Restrict(ev, value)
			if err != nil {
				return nil, err
			}
			factors[i] = restricted
		}
	}
	return factors, nil
}

func intersect(vars []*Variable, set map[*Variable]struct{}) []*Variable {
	out := make([]*Variable, 0, len(vars))
	for _, v := range vars {
		if _, ok := set[v]; ok {
			out = append(out, v)
		}
	}
	return out
}

func removeVariable(vars []*Variable, v *Variable) []*Variable {
	out := vars[:0]
	for _, x := range vars {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}

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
	"fmt"
	"math"
)

// Factor is a table-backed function from joint assignments over an ordered
// variable scope to non-negative reals.
//
// # Canonical enumeration
//
// Tables are row-major: the FIRST scope variable's domain index varies
// slowest and the LAST varies fastest. Every operation in this package
// (Multiply, SumOut, MaxOut, Restrict) produces tables in this order, and
// the CPT interchange convention maps onto it directly with the scope
// ordered parents-then-owner. Mixing enumeration conventions is the classic
// silent bug in elimination code, which is why the order is fixed here once
// and asserted by tests rather than configurable.
//
// A factor with an empty scope is a scalar: its table holds exactly one
// value.
type Factor struct {
	scope []*Variable
	table []float64
}

// NewFactor builds a factor over scope with the given canonical-order table.
//
// Outputs:
//
//	*Factor - The factor; the table slice is used directly, not copied.
//	error - Non-nil if scope repeats a variable or the table length does
//	    not equal the product of the scope's domain sizes.
func NewFactor(scope []*Variable, table []float64) (*Factor, error) {
	size := 1
	seen := make(map[*Variable]struct{}, len(scope))
	for _, v := range scope {
		if _, dup := seen[v]; dup {
			return nil, fmt.Errorf("factor scope repeats variable %q", v.Name)
		}
		seen[v] = struct{}{}
		size *= v.Cardinality()
	}
	if len(table) != size {
		return nil, fmt.Errorf("factor table has %d entries, scope requires %d", len(table), size)
	}
	return &Factor{scope: scope, table: table}, nil
}

// Scope returns the factor's ordered scope. Callers must not mutate it.
func (f *Factor) Scope() []*Variable {
	return f.scope
}

// Size returns the number of table entries.
func (f *Factor) Size() int {
	return len(f.table)
}

// Sum returns the total mass of the table.
func (f *Factor) Sum() float64 {
	total := 0.0
	for _, v := range f.table {
		total += v
	}
	return total
}

// MaxValue returns the largest table entry.
func (f *Factor) MaxValue() float64 {
	max := math.Inf(-1)
	for _, v := range f.table {
		if v > max {
			max = v
		}
	}
	return max
}

// positionOf returns v's position in the scope, or -1.
func (f *Factor) positionOf(v *Variable) int {
	for i, s := range f.scope {
		if s == v {
			return i
		}
	}
	return -1
}

// strides returns the row-major stride of each scope position: the last
// position has stride 1.
func strides(scope []*Variable) []int {
	out := make([]int, len(scope))
	acc := 1
	for i := len(scope) - 1; i >= 0; i-- {
		out[i] = acc
		acc *= scope[i].Cardinality()
	}
	return out
}

// advance increments digits as a mixed-radix odometer over scope, last
// position fastest.
func advance(digits []int, scope []*Variable) {
	for j := len(digits) - 1; j >= 0; j-- {
		digits[j]++
		if digits[j] < scope[j].Cardinality() {
			return
		}
		digits[j] = 0
	}
}

// Value looks up the table entry for the given assignment of domain indices
// to scope variable names. Every scope variable must be assigned.
func (f *Factor) Value(assignment map[string]int) (float64, error) {
	idx := 0
	str := strides(f.scope)
	for i, v := range f.scope {
		d, ok := assignment[v.Name]
		if !ok {
			return 0, fmt.Errorf("%w: no value for %q", ErrVariableNotInScope, v.Name)
		}
		if d < 0 || d >= v.Cardinality() {
			return 0, fmt.Errorf("index %d out of range for variable %q", d, v.Name)
		}
		idx += d * str[i]
	}
	return f.table[idx], nil
}

// Multiply computes the pointwise product of a and b.
//
// Description:
//
//	The result scope is a's scope followed by the variables of b's scope
//	not already present. Each entry is the product of a's and b's entries
//	under the restriction of the joint assignment to their own scopes.
//
// Inputs:
//
//	a, b - Operand factors. Shared variables must be the same *Variable.
//	tableCap - Maximum permitted entries in the result; <= 0 means no cap.
//
// Outputs:
//
//	*Factor - The product.
//	error - *ScopeOverflowError if the result would exceed tableCap.
func Multiply(a, b *Factor, tableCap int) (*Factor, error) {
	scope := make([]*Variable, 0, len(a.scope)+len(b.scope))
	scope = append(scope, a.scope...)
	for _, v := range b.scope {
		if a.positionOf(v) < 0 {
			scope = append(scope, v)
		}
	}

	size := 1
	for _, v := range scope {
		size *= v.Cardinality()
		if tableCap > 0 && size > tableCap {
			return nil, &ScopeOverflowError{Entries: size, Cap: tableCap}
		}
	}

	posA := make([]int, len(scope))
	posB := make([]int, len(scope))
	for i, v := range scope {
		posA[i] = a.positionOf(v)
		posB[i] = b.positionOf(v)
	}
	strA := strides(a.scope)
	strB := strides(b.scope)

	table := make([]float64, size)
	digits := make([]int, len(scope))
	for idx := 0; idx < size; idx++ {
		ia, ib := 0, 0
		for j, d := range digits {
			if posA[j] >= 0 {
				ia += d * strA[posA[j]]
			}
			if posB[j] >= 0 {
				ib += d * strB[posB[j]]
			}
		}
		table[idx] = a.table[ia] * b.table[ib]
		advance(digits, scope)
	}
	return &Factor{scope: scope, table: table}, nil
}

// SumOut eliminates v from the factor by summing over its domain. The
// result scope is the factor's scope with v removed; no backtrack record is
// produced.
func (f *Factor) SumOut(v *Variable) (*Factor, error) {
	p := f.positionOf(v)
	if p < 0 {
		return nil, fmt.Errorf("%w: sum-out %q", ErrVariableNotInScope, v.Name)
	}

	outScope := removeAt(f.scope, p)
	outStr := strides(outScope)
	out := make([]float64, len(f.table)/v.Cardinality())

	digits := make([]int, len(f.scope))
	for i := range f.table {
		oidx := 0
		oj := 0
		for j, d := range digits {
			if j == p {
				continue
			}
			oidx += d * outStr[oj]
			oj++
		}
		out[oidx] += f.table[i]
		advance(digits, f.scope)
	}
	return &Factor{scope: outScope, table: out}, nil
}

// MaxOut eliminates v from the factor by maximizing over its domain.
//
// Description:
//
//	The scope reduction matches SumOut, but each result entry is the
//	maximum over v's domain, and the returned Record maps every
//	post-elimination assignment to the domain index of v that achieved it.
//	Ties break to the smallest domain index so reconstruction is
//	reproducible.
func (f *Factor) MaxOut(v *Variable) (*Factor, *Record, error) {
	p := f.positionOf(v)
	if p < 0 {
		return nil, nil, fmt.Errorf("%w: max-out %q", ErrVariableNotInScope, v.Name)
	}

	outScope := removeAt(f.scope, p)
	outStr := strides(outScope)
	outSize := len(f.table) / v.Cardinality()
	out := make([]float64, outSize)
	argmax := make([]int, outSize)
	for i := range out {
		out[i] = math.Inf(-1)
		argmax[i] = -1
	}

	// Within one post-elimination assignment the enumeration visits v's
	// domain indices in increasing order, so a strict comparison keeps the
	// smallest index on ties.
	digits := make([]int, len(f.scope))
	for i := range f.table {
		oidx := 0
		oj := 0
		for j, d := range digits {
			if j == p {
				continue
			}
			oidx += d * outStr[oj]
			oj++
		}
		if f.table[i] > out[oidx] {
			out[oidx] = f.table[i]
			argmax[oidx] = digits[p]
		}
		advance(digits, f.scope)
	}

	rec := &Record{variable: v, scope: outScope, argmax: argmax}
	return &Factor{scope: outScope, table: out}, rec, nil
}

// Restrict fixes v to the given domain index and drops it from the scope.
// Used to apply evidence before elimination begins.
func (f *Factor) Restrict(v *Variable, value int) (*Factor, error) {
	p := f.positionOf(v)
	if p < 0 {
		return nil, fmt.Errorf("%w: restrict %q", ErrVariableNotInScope, v.Name)
	}
	if value < 0 || value >= v.Cardinality() {
		return nil, fmt.Errorf("index %d out of range for variable %q", value, v.Name)
	}

	outScope := removeAt(f.scope, p)
	outStr := strides(outScope)
	out := make([]float64, len(f.table)/v.Cardinality())

	digits := make([]int, len(f.scope))
	for i := range f.table {
		if digits[p] == value {
			oidx := 0
			oj := 0
			for j, d := range digits {
				if j == p {
					continue
				}
				oidx += d * outStr[oj]
				oj++
			}
			out[oidx] = f.table[i]
		}
		advance(digits, f.scope)
	}
	return &Factor{scope: outScope, table: out}, nil
}

// Normalize returns a copy of the factor scaled to total mass 1. Mirrors
// marginal queries that report a proper distribution over the retained
// variables.
func (f *Factor) Normalize() (*Factor, error) {
	total := f.Sum()
	if total <= 0 {
		return nil, fmt.Errorf("cannot normalize factor with total mass %v", total)
	}
	table := make([]float64, len(f.table))
	for i, v := range f.table {
		table[i] = v / total
	}
	return &Factor{scope: f.scope, table: table}, nil
}

func removeAt(scope []*Variable, p int) []*Variable {
	out := make([]*Variable, 0, len(scope)-1)
	out = append(out, scope[:p]...)
	out = append(out, scope[p+1:]...)
	return out
}

// Record is the backtrack record of one max-out step: for every assignment
// over the post-elimination scope, the domain index of the eliminated
// variable that achieved the maximum.
type Record struct {
	variable *Variable
	scope    []*Variable
	argmax   []int
}

// Variable returns the variable this record eliminates.
func (r *Record) Variable() *Variable {
	return r.variable
}

// Scope returns the post-elimination key scope of the record.
func (r *Record) Scope() []*Variable {
	return r.scope
}

// Size returns the number of argmax entries.
func (r *Record) Size() int {
	return len(r.argmax)
}

// Lookup returns the maximizing domain index for the given assignment.
// Every scope variable must already be assigned; a missing variable means
// elimination-order bookkeeping is broken, not that the query was invalid.
func (r *Record) Lookup(assignment map[string]int) (int, error) {
	idx := 0
	str := strides(r.scope)
	for i, v := range r.scope {
		d, ok := assignment[v.Name]
		if !ok {
			return 0, fmt.Errorf("%w: backtrack record for %q has no value for %q",
				ErrVariableNotInScope, r.variable.Name, v.Name)
		}
		idx += d * str[i]
	}
	return r.argmax[idx], nil
}

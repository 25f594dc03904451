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
	"errors"
	"fmt"
)

// Sentinel errors for the inference engine.
var (
	// ErrMalformedNetwork indicates the network definition failed validation:
	// a CPT row does not sum to 1, a duplicate or unknown variable, a wrong
	// table length, or a cycle in the parent relation.
	ErrMalformedNetwork = errors.New("malformed network")

	// ErrInvalidQuery indicates the query referenced an unknown variable,
	// listed a variable as both query and evidence, or supplied an evidence
	// value outside the variable's domain.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrScopeOverflow indicates an intermediate factor would exceed the
	// configured table cap. The query is aborted, not retried; the caller
	// may retry with a different elimination order or a simpler model.
	ErrScopeOverflow = errors.New("factor scope overflow")

	// ErrCancelled indicates cancellation was observed at an elimination
	// step boundary. Working state is discarded; no partial result escapes.
	ErrCancelled = errors.New("query cancelled")

	// ErrVariableNotInScope indicates an elimination or lookup referenced a
	// variable absent from a factor's scope. Inside the engine this is a
	// bookkeeping defect, not a user error.
	ErrVariableNotInScope = errors.New("variable not in factor scope")
)

// ScopeOverflowError reports the size an intermediate table would have
// reached and the cap that stopped it. Matches ErrScopeOverflow under
// errors.Is.
type ScopeOverflowError struct {
	// Entries is the number of table entries the product factor required.
	Entries int

	// Cap is the configured maximum table size.
	Cap int
}

func (e *ScopeOverflowError) Error() string {
	return fmt.Sprintf("factor scope overflow: %d entries exceeds cap %d", e.Entries, e.Cap)
}

func (e *ScopeOverflowError) Unwrap() error {
	return ErrScopeOverflow
}

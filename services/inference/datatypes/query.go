// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes defines the request and response types of the inference
// HTTP API.
package datatypes

import (
	"github.com/go-playground/validator/v10"

	"github.com/AleutianAI/AleutianBayes/pkg/validation"
)

// MaxQueryVariables bounds the number of variables a single query may name.
// Larger query sets are rejected at the API boundary before the engine sees
// them; the engine's own table cap still guards the elimination itself.
const MaxQueryVariables = 256

// queryValidate is the validator instance for query datatypes.
// Initialized in init() with custom validators.
var queryValidate *validator.Validate

func init() {
	queryValidate = validator.New()

	// Variable names become factor scope lookups and log fields.
	_ = queryValidate.RegisterValidation("identifier", validateIdentifier)
}

// validateIdentifier bridges pkg/validation into validator tag syntax.
func validateIdentifier(fl validator.FieldLevel) bool {
	return validation.ValidateIdentifier(fl.Field().String()) == nil
}

// MAPQueryRequest asks for the most probable assignment to MapVariables
// given Evidence. The network is named in the URL path.
type MAPQueryRequest struct {
	// MapVariables is the query set. Must be non-empty and disjoint from
	// the evidence.
	MapVariables []string `json:"map_variables" validate:"required,min=1,max=256,dive,identifier"`

	// Evidence maps observed variables to domain value labels.
	Evidence map[string]string `json:"evidence" validate:"omitempty,max=256,dive,keys,identifier,endkeys,required"`
}

// Validate checks the request against its declared constraints.
func (r *MAPQueryRequest) Validate() error {
	return queryValidate.Struct(r)
}

// MAPQueryResponse carries the result of a MAP query.
type MAPQueryResponse struct {
	QueryID     string            `json:"query_id"`
	Network     string            `json:"network"`
	Assignment  map[string]string `json:"assignment"`
	Probability float64           `json:"probability"`
}

// MarginalQueryRequest asks for the marginal distribution over Retain given
// Evidence.
type MarginalQueryRequest struct {
	// Retain is the set of variables the marginal ranges over. May be
	// empty, in which case the response is the total evidence mass.
	Retain []string `json:"retain" validate:"omitempty,max=256,dive,identifier"`

	// Evidence maps observed variables to domain value labels.
	Evidence map[string]string `json:"evidence" validate:"omitempty,max=256,dive,keys,identifier,endkeys,required"`

	// Normalize rescales the marginal to sum to one, turning the joint
	// mass into a posterior.
	Normalize bool `json:"normalize"`
}

// Validate checks the request against its declared constraints.
func (r *MarginalQueryRequest) Validate() error {
	return queryValidate.Struct(r)
}

// MarginalEntry is one row of a marginal distribution.
type MarginalEntry struct {
	Assignment  map[string]string `json:"assignment"`
	Probability float64           `json:"probability"`
}

// MarginalQueryResponse carries the result of a marginal query.
type MarginalQueryResponse struct {
	Network    string          `json:"network"`
	Normalized bool            `json:"normalized"`
	Entries    []MarginalEntry `json:"entries"`
}

// NetworkSummary describes a stored network.
type NetworkSummary struct {
	Name      string            `json:"name"`
	Variables []VariableSummary `json:"variables"`
}

// VariableSummary describes one variable of a stored network.
type VariableSummary struct {
	Name   string   `json:"name"`
	Domain []string `json:"domain"`
}

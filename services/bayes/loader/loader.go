// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package loader parses YAML network definitions into the immutable network
// model.
//
// # File Format
//
// A network file declares its variables (with explicit domains) and one CPT
// per variable:
//
//	name: burglary
//	variables:
//	  - name: Burglary
//	    domain: ["True", "False"]
//	  - name: Alarm
//	    domain: ["True", "False"]
//	nodes:
//	  - variable: Burglary
//	    table: [0.01, 0.99]
//	  - variable: Alarm
//	    parents: [Burglary]
//	    table: [0.95, 0.05, 0.001, 0.999]
//
// CPT tables are flat row-major lists: the owning variable varies fastest
// and the first listed parent varies slowest. Unknown YAML fields are
// rejected, so typos in field names fail loudly instead of silently
// producing a uniform CPT.
package loader

import (
	"bytes"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianBayes/pkg/validation"
	"github.com/AleutianAI/AleutianBayes/services/bayes"
)

// MaxFileBytes caps the size of a network definition file. Larger files are
// rejected before parsing to prevent memory exhaustion from hostile input.
const MaxFileBytes = 8 << 20

// NetworkFile is the YAML document root.
type NetworkFile struct {
	Name      string        `yaml:"name" validate:"required,identifier"`
	Variables []VariableDef `yaml:"variables" validate:"required,min=1,dive"`
	Nodes     []NodeDef     `yaml:"nodes" validate:"required,min=1,dive"`
}

// VariableDef declares one variable and its finite domain.
type VariableDef struct {
	Name   string   `yaml:"name" validate:"required,identifier"`
	Domain []string `yaml:"domain" validate:"required,min=1,dive,required"`
}

// NodeDef declares the CPT owned by one variable.
type NodeDef struct {
	Variable string    `yaml:"variable" validate:"required,identifier"`
	Parents  []string  `yaml:"parents" validate:"omitempty,dive,identifier"`
	Table    []float64 `yaml:"table" validate:"required,min=1"`
}

// fileValidate is the validator instance for network files.
// Initialized in init() with custom validators.
var fileValidate *validator.Validate

func init() {
	fileValidate = validator.New()

	// Names become store keys and URL path segments.
	_ = fileValidate.RegisterValidation("identifier", validateIdentifier)
}

// validateIdentifier bridges pkg/validation into validator tag syntax.
func validateIdentifier(fl validator.FieldLevel) bool {
	return validation.ValidateIdentifier(fl.Field().String()) == nil
}

// Parse decodes and validates a YAML network definition.
//
// Validation happens in three layers: size cap, schema (required fields,
// identifier syntax, unknown fields), then full semantic validation in
// bayes.NewNetwork (domains, CPT shapes, row normalization, acyclicity).
// All failures satisfy errors.Is(err, bayes.ErrMalformedNetwork).
func Parse(data []byte) (*bayes.Network, error) {
	if len(data) > MaxFileBytes {
		return nil, fmt.Errorf("%w: network file exceeds %d bytes", bayes.ErrMalformedNetwork, MaxFileBytes)
	}

	var file NetworkFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("%w: invalid YAML: %v", bayes.ErrMalformedNetwork, err)
	}
	if err := fileValidate.Struct(&file); err != nil {
		return nil, fmt.Errorf("%w: schema validation failed: %v", bayes.ErrMalformedNetwork, err)
	}

	variables := make([]bayes.Variable, 0, len(file.Variables))
	for _, v := range file.Variables {
		variables = append(variables, bayes.Variable{Name: v.Name, Domain: v.Domain})
	}
	nodes := make([]bayes.Node, 0, len(file.Nodes))
	for _, n := range file.Nodes {
		nodes = append(nodes, bayes.Node{Variable: n.Variable, Parents: n.Parents, Table: n.Table})
	}
	return bayes.NewNetwork(file.Name, variables, nodes)
}

// Load reads and parses a YAML network definition from disk.
func Load(path string) (*bayes.Network, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat network file: %w", err)
	}
	if info.Size() > MaxFileBytes {
		return nil, fmt.Errorf("%w: network file exceeds %d bytes", bayes.ErrMalformedNetwork, MaxFileBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read network file: %w", err)
	}
	return Parse(data)
}

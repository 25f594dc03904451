// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/AleutianBayes/pkg/validation"
	"github.com/AleutianAI/AleutianBayes/services/bayes"
	"github.com/AleutianAI/AleutianBayes/services/bayes/store"
	"github.com/AleutianAI/AleutianBayes/services/inference/datatypes"
	"github.com/AleutianAI/AleutianBayes/services/inference/observability"
)

var queryTracer = otel.Tracer("aleutian.inference.handlers")

// HandleMAPQuery runs a MAP query against a stored network.
func HandleMAPQuery(s *store.Store, metrics *observability.QueryMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := queryTracer.Start(c.Request.Context(), "HandleMAPQuery")
		defer span.End()
		start := time.Now()

		name := c.Param("name")
		span.SetAttributes(attribute.String("network", name))
		if err := validation.ValidateIdentifier(name); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		var req datatypes.MAPQueryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		net, err := s.Get(ctx, name)
		if err != nil {
			writeQueryError(c, metrics, observability.EndpointMAP, err)
			return
		}

		res, err := bayes.ComputeMAP(ctx, net, req.MapVariables, bayes.Assignment(req.Evidence))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			writeQueryError(c, metrics, observability.EndpointMAP, err)
			return
		}

		if metrics != nil {
			metrics.RecordQuery(observability.EndpointMAP, true, time.Since(start).Seconds())
		}
		c.JSON(http.StatusOK, datatypes.MAPQueryResponse{
			QueryID:     res.QueryID,
			Network:     name,
			Assignment:  res.Assignment,
			Probability: res.Probability,
		})
	}
}

// HandleMarginalQuery runs a marginal query against a stored network.
func HandleMarginalQuery(s *store.Store, metrics *observability.QueryMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := queryTracer.Start(c.Request.Context(), "HandleMarginalQuery")
		defer span.End()
		start := time.Now()

		name := c.Param("name")
		span.SetAttributes(attribute.String("network", name))
		if err := validation.ValidateIdentifier(name); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		var req datatypes.MarginalQueryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		net, err := s.Get(ctx, name)
		if err != nil {
			writeQueryError(c, metrics, observability.EndpointMarginal, err)
			return
		}

		f, err := bayes.ComputeMarginal(ctx, net, req.Retain, bayes.Assignment(req.Evidence))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			writeQueryError(c, metrics, observability.EndpointMarginal, err)
			return
		}
		if req.Normalize {
			f, err = f.Normalize()
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				slog.Error("marginal normalization failed", "network", name, "error", err)
				c.JSON(http.StatusUnprocessableEntity,
					gin.H{"error": "marginal has zero mass under this evidence"})
				return
			}
		}

		entries, err := enumerate(f)
		if err != nil {
			slog.Error("marginal enumeration failed", "network", name, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enumerate marginal"})
			return
		}

		if metrics != nil {
			metrics.RecordQuery(observability.EndpointMarginal, true, time.Since(start).Seconds())
		}
		c.JSON(http.StatusOK, datatypes.MarginalQueryResponse{
			Network:    name,
			Normalized: req.Normalize,
			Entries:    entries,
		})
	}
}

// enumerate walks every assignment of the factor's scope in canonical order
// and pairs it with its probability.
func enumerate(f *bayes.Factor) ([]datatypes.MarginalEntry, error) {
	scope := f.Scope()
	entries := make([]datatypes.MarginalEntry, 0, f.Size())

	indices := make([]int, len(scope))
	for {
		assignment := make(map[string]int, len(scope))
		labels := make(map[string]string, len(scope))
		for i, v := range scope {
			assignment[v.Name] = indices[i]
			labels[v.Name] = v.Domain[indices[i]]
		}
		p, err := f.Value(assignment)
		if err != nil {
			return nil, err
		}
		entries = append(entries, datatypes.MarginalEntry{Assignment: labels, Probability: p})

		// Advance the mixed-radix counter, last variable fastest.
		i := len(indices) - 1
		for ; i >= 0; i-- {
			indices[i]++
			if indices[i] < scope[i].Cardinality() {
				break
			}
			indices[i] = 0
		}
		if i < 0 {
			return entries, nil
		}
	}
}

// writeQueryError maps engine and store errors onto HTTP status codes and
// records the failure in metrics.
func writeQueryError(c *gin.Context, metrics *observability.QueryMetrics,
	endpoint observability.Endpoint, err error) {

	var status int
	var code observability.ErrorCode
	switch {
	case errors.Is(err, bayes.ErrInvalidQuery):
		status, code = http.StatusBadRequest, observability.ErrorCodeInvalidQuery
	case errors.Is(err, store.ErrNotFound):
		status, code = http.StatusNotFound, observability.ErrorCodeNotFound
	case errors.Is(err, bayes.ErrScopeOverflow):
		status, code = http.StatusRequestEntityTooLarge, observability.ErrorCodeScopeOverflow
	case errors.Is(err, bayes.ErrMalformedNetwork):
		status, code = http.StatusUnprocessableEntity, observability.ErrorCodeMalformedNetwork
	case errors.Is(err, bayes.ErrCancelled):
		status, code = http.StatusRequestTimeout, observability.ErrorCodeCancelled
	default:
		status, code = http.StatusInternalServerError, observability.ErrorCodeInternal
		slog.Error("query failed", "endpoint", string(endpoint), "error", err)
	}

	if metrics != nil {
		metrics.RecordQuery(endpoint, false, 0)
		metrics.RecordError(endpoint, code)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
